package customer

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID            uuid.UUID
	Auth0ID       string         `db:"auth0_id"`
	Email         sql.NullString `db:"email"`
	Name          sql.NullString `db:"name"`
	LoyaltyPoints int            `db:"loyalty_points"`
	CreatedAt     time.Time      `db:"created_at"`
}

// Card is a saved payment card. Only the brand and last four digits are kept.
type Card struct {
	ID         uuid.UUID `db:"id"`
	CustomerID uuid.UUID `db:"customer_id"`
	HolderName string    `db:"holder_name"`
	Brand      string    `db:"brand"`
	Last4      string    `db:"last4"`
	ExpMonth   int       `db:"exp_month"`
	ExpYear    int       `db:"exp_year"`
	CreatedAt  time.Time `db:"created_at"`
}

var (
	ErrInvalidCardNumber = errors.New("invalid card number")
	ErrCardExpired       = errors.New("card expired")
)

// NewCard validates a raw card number and expiry and returns the masked card.
func NewCard(customerID uuid.UUID, holder, number string, expMonth, expYear int, now time.Time) (Card, error) {
	digits := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)

	if len(digits) < 12 || len(digits) > 19 || !luhn(digits) {
		return Card{}, ErrInvalidCardNumber
	}
	if expMonth < 1 || expMonth > 12 {
		return Card{}, ErrCardExpired
	}
	if expYear < 100 {
		expYear += 2000
	}
	// valid through the last day of the expiry month
	expiry := time.Date(expYear, time.Month(expMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.Before(expiry) {
		return Card{}, ErrCardExpired
	}

	return Card{
		ID:         uuid.New(),
		CustomerID: customerID,
		HolderName: strings.TrimSpace(holder),
		Brand:      brand(digits),
		Last4:      digits[len(digits)-4:],
		ExpMonth:   expMonth,
		ExpYear:    expYear,
	}, nil
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func brand(digits string) string {
	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "amex"
	case digits[0] == '5' && digits[1] >= '1' && digits[1] <= '5':
		return "mastercard"
	case strings.HasPrefix(digits, "2"):
		return "mastercard"
	case strings.HasPrefix(digits, "6"):
		return "discover"
	}
	return "unknown"
}
