package product

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryAccessory Category = "accessory"
	CategoryBike      Category = "bike"
)

// Product is something sold in the shop: accessories, or whole bikes which
// come with an ownership certificate.
type Product struct {
	ID          uuid.UUID       `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Category    Category        `db:"category"`
	Price       decimal.Decimal `db:"price"`
	Stock       int             `db:"stock"`
	ImageURL    *string         `db:"image_url"`
}

// StockChange removes Quantity units of a product from stock.
type StockChange struct {
	ProductID uuid.UUID
	Quantity  int
}
