package cart

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmpty           = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Item is a cart line joined with the product's current name, price and stock.
type Item struct {
	CustomerID uuid.UUID       `db:"customer_id"`
	ProductID  uuid.UUID       `db:"product_id"`
	Quantity   int             `db:"quantity"`
	Name       string          `db:"name"`
	UnitPrice  decimal.Decimal `db:"unit_price"`
	Stock      int             `db:"stock"`
}

func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums every line of a cart.
func Total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, i := range items {
		sum = sum.Add(i.Total())
	}
	return sum
}

// Shortages returns the lines whose quantity exceeds what is in stock.
func Shortages(items []Item) []Item {
	var out []Item
	for _, i := range items {
		if i.Quantity > i.Stock {
			out = append(out, i)
		}
	}
	return out
}
