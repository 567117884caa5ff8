package feedback

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
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, f *Feedback) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return r.db.GetContext(ctx, f, createQuery, f.ID, f.CustomerID, f.BikeID, f.ReservationID, f.Rating, f.Comment)
}

const createQuery = `
INSERT INTO feedback (id, customer_id, bike_id, reservation_id, rating, comment, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
RETURNING *
`

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Feedback, error) {
	var f Feedback
	err := r.db.GetContext(ctx, &f, getByIDQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Feedback{}, ErrNotFound
	}
	return f, err
}

const getByIDQuery = `SELECT * FROM feedback WHERE id = $1`

func (r *Repository) Update(ctx context.Context, f *Feedback) error {
	if err := f.Validate(); err != nil {
		return err
	}
	err := r.db.GetContext(ctx, f, updateQuery, f.ID, f.Rating, f.Comment)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const updateQuery = `
UPDATE feedback SET rating = $2, comment = $3, updated_at = now()
WHERE id = $1
RETURNING *
`

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, deleteQuery, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const deleteQuery = `DELETE FROM feedback WHERE id = $1`

func (r *Repository) ListByBike(ctx context.Context, bikeID uuid.UUID) ([]Feedback, error) {
	var out []Feedback
	err := r.db.SelectContext(ctx, &out, listByBikeQuery, bikeID)
	return out, err
}

const listByBikeQuery = `SELECT * FROM feedback WHERE bike_id = $1 ORDER BY created_at DESC`

func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Feedback, error) {
	var out []Feedback
	err := r.db.SelectContext(ctx, &out, listByCustomerQuery, customerID)
	return out, err
}

const listByCustomerQuery = `SELECT * FROM feedback WHERE customer_id = $1 ORDER BY created_at DESC`
