package reservation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusReserved       Status = "reserved"
	StatusInProgress     Status = "in_progress"
	StatusPaymentPending Status = "completed-payment-pending"
	StatusPaid           Status = "completed-paid"
	StatusCancelled      Status = "cancelled"
)

// Active reports whether the reservation still holds its bike.
func (s Status) Active() bool {
	return s == StatusReserved || s == StatusInProgress
}

// Completed reports whether the ride has ended, paid or not.
func (s Status) Completed() bool {
	return s == StatusPaymentPending || s == StatusPaid
}

// Reservation is a customer's claim on a bike and, once started, the ride itself.
type Reservation struct {
	ID         uuid.UUID `db:"id"`
	CustomerID uuid.UUID `db:"customer_id"`
	BikeID     uuid.UUID `db:"bike_id"`
	Status     Status    `db:"status"`

	UnlockCode          sql.NullString `db:"unlock_code"`
	UnlockCodeExpiresAt sql.NullTime   `db:"unlock_code_expires_at"`

	StartTime     sql.NullTime `db:"start_time"`
	EndTime       sql.NullTime `db:"end_time"`
	StartLocation pgtype.Point `db:"start_location"`
	EndLocation   pgtype.Point `db:"end_location"`

	DistanceKm sql.NullFloat64     `db:"distance_km"`
	Cost       decimal.NullDecimal `db:"cost"`

	CreatedAt time.Time `db:"created_at"`
}

// Completion carries the facts recorded when a ride ends.
type Completion struct {
	EndLocation pgtype.Point
	DistanceKm  float64
	Cost        decimal.Decimal
}
