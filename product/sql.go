package product

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound   = errors.New("product not found")
	ErrOutOfStock = errors.New("product out of stock")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetProducts(ctx context.Context, category Category) ([]Product, error) {
	var products []Product
	var err error
	if category != "" {
		err = r.db.SelectContext(ctx, &products, getProductsByCategory, category)
	} else {
		err = r.db.SelectContext(ctx, &products, getProducts)
	}
	return products, err
}

const getProducts = `SELECT * FROM products ORDER BY name`

const getProductsByCategory = `SELECT * FROM products WHERE category = $1 ORDER BY name`

func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	err := r.db.GetContext(ctx, &p, getProduct, id)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

const getProduct = `SELECT * FROM products WHERE id = $1`

// DecrementStock applies all changes or none.
func (r *Repository) DecrementStock(ctx context.Context, changes []StockChange) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := DecrementStockTx(ctx, tx, changes); err != nil {
		return err
	}

	return tx.Commit()
}

// DecrementStockTx takes stock inside a caller's transaction. On
// ErrOutOfStock the caller must roll back to undo earlier lines.
func DecrementStockTx(ctx context.Context, tx sqlx.ExecerContext, changes []StockChange) error {
	for _, c := range changes {
		res, err := tx.ExecContext(ctx, decrementStock, c.ProductID, c.Quantity)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrOutOfStock
		}
	}
	return nil
}

const decrementStock = `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`
