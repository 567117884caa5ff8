package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanujarubasinghe/cyclechain/cart"
	"github.com/sanujarubasinghe/cyclechain/product"
	"github.com/sanujarubasinghe/cyclechain/reservation"
)

var (
	ErrNotFound          = errors.New("payment not found")
	ErrAlreadyFinalized  = errors.New("payment already finalized")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a payment together with its order lines.
func (r *Repository) Create(ctx context.Context, p *Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	items := p.Items
	err = tx.GetContext(ctx, p, createQuery,
		p.ID, p.CustomerID, p.ReservationID, p.Amount, p.Currency, p.Method, p.Status)
	if err != nil {
		return err
	}

	for i := range items {
		items[i].PaymentID = p.ID
		_, err = tx.NamedExecContext(ctx, createItemQuery, items[i])
		if err != nil {
			return err
		}
	}
	p.Items = items

	return tx.Commit()
}

const createQuery = `
INSERT INTO payments (id, customer_id, reservation_id, amount, currency, method, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
RETURNING *
`

const createItemQuery = `
INSERT INTO payment_items (payment_id, product_id, name, quantity, unit_price)
VALUES (:payment_id, :product_id, :name, :quantity, :unit_price)
`

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, getByIDQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	p.Items, err = r.items(ctx, id)
	return p, err
}

const getByIDQuery = `SELECT * FROM payments WHERE id = $1`

// GetByTransactionID finds the payment a provider session belongs to.
func (r *Repository) GetByTransactionID(ctx context.Context, transactionID string) (Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, getByTransactionIDQuery, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	p.Items, err = r.items(ctx, p.ID)
	return p, err
}

const getByTransactionIDQuery = `SELECT * FROM payments WHERE transaction_id = $1`

func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Payment, error) {
	var out []Payment
	err := r.db.SelectContext(ctx, &out, listByCustomerQuery, customerID)
	return out, err
}

const listByCustomerQuery = `SELECT * FROM payments WHERE customer_id = $1 ORDER BY created_at DESC`

// Attach records the provider reference of a payment that is still pending.
func (r *Repository) Attach(ctx context.Context, id uuid.UUID, transactionID, checkoutURL string) error {
	_, err := r.db.ExecContext(ctx, attachQuery, id, transactionID, checkoutURL)
	return err
}

const attachQuery = `
UPDATE payments SET transaction_id = NULLIF($2, ''), checkout_url = NULLIF($3, ''), updated_at = now()
WHERE id = $1
`

// Finalize moves a pending payment to completed or failed. Finalizing an
// already finalized payment returns ErrAlreadyFinalized.
func (r *Repository) Finalize(ctx context.Context, id uuid.UUID, status Status) (Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, finalizeQuery, id, status)
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, r.notPending(ctx, id)
	}
	if err != nil {
		return Payment{}, err
	}
	p.Items, err = r.items(ctx, id)
	return p, err
}

func (r *Repository) notPending(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, id); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return ErrAlreadyFinalized
}

// Complete finalizes a pending payment and settles what it paid for in the
// same transaction: the ride is marked paid, or the order's stock is taken
// and the cart cleared. If the ride was already settled or the stock is gone,
// nothing is applied and the payment is marked failed instead.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID) (Payment, error) {
	p, err := r.complete(ctx, id)
	if errors.Is(err, product.ErrOutOfStock) || errors.Is(err, reservation.ErrInvalidTransition) {
		if _, failErr := r.Finalize(ctx, id, StatusFailed); failErr != nil && !errors.Is(failErr, ErrAlreadyFinalized) {
			return Payment{}, errors.Join(err, failErr)
		}
	}
	return p, err
}

func (r *Repository) complete(ctx context.Context, id uuid.UUID) (Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Payment{}, err
	}
	defer tx.Rollback()

	var p Payment
	err = tx.GetContext(ctx, &p, finalizeQuery, id, StatusCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, r.notPending(ctx, id)
	}
	if err != nil {
		return Payment{}, err
	}
	err = tx.SelectContext(ctx, &p.Items, itemsQuery, id)
	if err != nil {
		return Payment{}, err
	}

	if p.IsOrder() {
		changes := make([]product.StockChange, 0, len(p.Items))
		for _, i := range p.Items {
			changes = append(changes, product.StockChange{ProductID: i.ProductID, Quantity: i.Quantity})
		}
		if err := product.DecrementStockTx(ctx, tx, changes); err != nil {
			return Payment{}, err
		}
		if err := cart.ClearTx(ctx, tx, p.CustomerID); err != nil {
			return Payment{}, err
		}
	} else {
		if err := reservation.MarkPaidTx(ctx, tx, p.ReservationID.UUID); err != nil {
			return Payment{}, err
		}
	}

	return p, tx.Commit()
}

const finalizeQuery = `
UPDATE payments SET status = $2, updated_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING *
`

func (r *Repository) items(ctx context.Context, paymentID uuid.UUID) ([]Item, error) {
	var items []Item
	err := r.db.SelectContext(ctx, &items, itemsQuery, paymentID)
	return items, err
}

const itemsQuery = `SELECT * FROM payment_items WHERE payment_id = $1 ORDER BY name`
