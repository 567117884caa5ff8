package payment

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Method string

const (
	MethodCard   Method = "card"
	MethodQR     Method = "qr"
	MethodCrypto Method = "crypto"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCard, MethodQR, MethodCrypto:
		return true
	}
	return false
}

// Payment is one attempt to pay for either a ride (ReservationID set) or a
// shop order (Items set).
type Payment struct {
	ID            uuid.UUID       `db:"id"`
	CustomerID    uuid.UUID       `db:"customer_id"`
	ReservationID uuid.NullUUID   `db:"reservation_id"`
	Amount        decimal.Decimal `db:"amount"`
	Currency      string          `db:"currency"`
	Method        Method          `db:"method"`
	Status        Status          `db:"status"`
	TransactionID sql.NullString  `db:"transaction_id"`
	CheckoutURL   sql.NullString  `db:"checkout_url"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`

	Items []Item `db:"-"`
}

// Item is a shop line captured at checkout time.
type Item struct {
	PaymentID uuid.UUID       `db:"payment_id"`
	ProductID uuid.UUID       `db:"product_id"`
	Name      string          `db:"name"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// IsOrder reports whether the payment is for shop items rather than a ride.
func (p Payment) IsOrder() bool {
	return !p.ReservationID.Valid
}

// MinorUnits converts an amount to the integer minor units payment providers expect.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
