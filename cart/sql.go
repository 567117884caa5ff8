package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetCart(ctx context.Context, customerID uuid.UUID) ([]Item, error) {
	var items []Item
	err := r.db.SelectContext(ctx, &items, getCartQuery, customerID)
	return items, err
}

const getCartQuery = `
SELECT ci.customer_id, ci.product_id, ci.quantity, p.name, p.price AS unit_price, p.stock
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.customer_id = $1
ORDER BY p.name
`

// AddItem increases the quantity of a product already in the cart, or adds it.
func (r *Repository) AddItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	_, err := r.db.ExecContext(ctx, addItemQuery, customerID, productID, quantity)
	return err
}

const addItemQuery = `
INSERT INTO cart_items (customer_id, product_id, quantity) VALUES ($1, $2, $3)
ON CONFLICT (customer_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
`

// SetItem sets the quantity of a line; zero removes it.
func (r *Repository) SetItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		return r.RemoveItem(ctx, customerID, productID)
	}
	_, err := r.db.ExecContext(ctx, setItemQuery, customerID, productID, quantity)
	return err
}

const setItemQuery = `
INSERT INTO cart_items (customer_id, product_id, quantity) VALUES ($1, $2, $3)
ON CONFLICT (customer_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
`

func (r *Repository) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, removeItemQuery, customerID, productID)
	return err
}

const removeItemQuery = `DELETE FROM cart_items WHERE customer_id = $1 AND product_id = $2`

func (r *Repository) Clear(ctx context.Context, customerID uuid.UUID) error {
	return ClearTx(ctx, r.db, customerID)
}

// ClearTx empties a cart as part of a larger transaction.
func ClearTx(ctx context.Context, tx sqlx.ExecerContext, customerID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, clearQuery, customerID)
	return err
}

const clearQuery = `DELETE FROM cart_items WHERE customer_id = $1`
