package customer

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

var (
	ErrNotFound     = errors.New("customer not found")
	ErrCardNotFound = errors.New("card not found")
)

func (r *Repository) GetCustomerByAuth0ID(ctx context.Context, auth0ID string) (*Customer, error) {
	var customer Customer
	err := r.db.GetContext(ctx, &customer, getCustomerByAuth0IDQuery, auth0ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, err
	}
	return &customer, nil
}

const getCustomerByAuth0IDQuery = "SELECT * FROM customers WHERE auth0_id = $1"

// CreateCustomer inserts a customer for a first-time identity. Concurrent
// first requests for the same identity both get the single stored row.
func (r *Repository) CreateCustomer(ctx context.Context, auth0ID string) (*Customer, error) {
	var customer Customer
	err := r.db.GetContext(ctx, &customer, createCustomerQuery, uuid.New(), auth0ID)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

const createCustomerQuery = `
INSERT INTO customers (id, auth0_id, loyalty_points, created_at) VALUES ($1, $2, 0, now())
ON CONFLICT (auth0_id) DO UPDATE SET auth0_id = EXCLUDED.auth0_id
RETURNING *
`

func (r *Repository) UpdateProfile(ctx context.Context, auth0ID, email, name string) error {
	_, err := r.db.ExecContext(ctx, updateProfileQuery, email, name, auth0ID)
	return err
}

const updateProfileQuery = `UPDATE customers SET email = NULLIF($1, ''), name = NULLIF($2, '') WHERE auth0_id = $3`

// SetLoyaltyPoints overwrites the derived loyalty total.
func (r *Repository) SetLoyaltyPoints(ctx context.Context, id uuid.UUID, points int) error {
	_, err := r.db.ExecContext(ctx, setLoyaltyPointsQuery, id, points)
	return err
}

const setLoyaltyPointsQuery = `UPDATE customers SET loyalty_points = $2 WHERE id = $1`

func (r *Repository) AddLoyaltyPoints(ctx context.Context, id uuid.UUID, points int) error {
	_, err := r.db.ExecContext(ctx, addLoyaltyPointsQuery, id, points)
	return err
}

const addLoyaltyPointsQuery = `UPDATE customers SET loyalty_points = loyalty_points + $2 WHERE id = $1`

func (r *Repository) GetCards(ctx context.Context, customerID uuid.UUID) ([]Card, error) {
	var cards []Card
	err := r.db.SelectContext(ctx, &cards, getCardsQuery, customerID)
	return cards, err
}

const getCardsQuery = `SELECT * FROM customer_cards WHERE customer_id = $1 ORDER BY created_at`

func (r *Repository) AddCard(ctx context.Context, card *Card) error {
	return r.db.GetContext(ctx, card, addCardQuery,
		card.ID, card.CustomerID, card.HolderName, card.Brand, card.Last4, card.ExpMonth, card.ExpYear)
}

const addCardQuery = `
INSERT INTO customer_cards (id, customer_id, holder_name, brand, last4, exp_month, exp_year, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
RETURNING *
`

func (r *Repository) DeleteCard(ctx context.Context, customerID, cardID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, deleteCardQuery, cardID, customerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCardNotFound
	}
	return nil
}

const deleteCardQuery = `DELETE FROM customer_cards WHERE id = $1 AND customer_id = $2`
