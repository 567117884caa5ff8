package reservation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound          = errors.New("reservation not found")
	ErrBikeNotFound      = errors.New("bike not found")
	ErrBikeUnavailable   = errors.New("bike is not available")
	ErrActiveReservation = errors.New("customer already has an active reservation")
	ErrInvalidTransition = errors.New("reservation is not in a state that allows this action")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a reserved reservation and takes the bike out of circulation.
func (r *Repository) Create(ctx context.Context, res *Reservation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Serializes creates by the same customer; the active check below would
	// otherwise find no rows to lock.
	_, err = tx.ExecContext(ctx, lockCustomerQuery, res.CustomerID)
	if err != nil {
		return err
	}

	var available bool
	err = tx.GetContext(ctx, &available, lockBikeQuery, res.BikeID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBikeNotFound
	}
	if err != nil {
		return err
	}
	if !available {
		return ErrBikeUnavailable
	}

	var active []uuid.UUID
	err = tx.SelectContext(ctx, &active, activeForCustomerQuery, res.CustomerID)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return ErrActiveReservation
	}

	err = tx.GetContext(ctx, res, createQuery, res.ID, res.CustomerID, res.BikeID)
	if isUniqueViolation(err, activeReservationIndex) {
		return ErrActiveReservation
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, setBikeAvailableQuery, res.BikeID, false)
	if err != nil {
		return err
	}

	return tx.Commit()
}

const lockCustomerQuery = `SELECT id FROM customers WHERE id = $1 FOR UPDATE`

const lockBikeQuery = `SELECT available FROM bikes WHERE id = $1 FOR UPDATE`

const activeForCustomerQuery = `
SELECT id FROM reservations
WHERE customer_id = $1 AND status IN ('reserved', 'in_progress')
`

const activeReservationIndex = "reservations_one_active_per_customer"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

const createQuery = `
INSERT INTO reservations (id, customer_id, bike_id, status, created_at)
VALUES ($1, $2, $3, 'reserved', now())
RETURNING *
`

const setBikeAvailableQuery = `UPDATE bikes SET available = $2 WHERE id = $1`

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Reservation, error) {
	var res Reservation
	err := r.db.GetContext(ctx, &res, getByIDQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Reservation{}, ErrNotFound
	}
	return res, err
}

const getByIDQuery = `SELECT * FROM reservations WHERE id = $1`

// ListByCustomer returns a customer's reservations, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Reservation, error) {
	var out []Reservation
	err := r.db.SelectContext(ctx, &out, listByCustomerQuery, customerID)
	return out, err
}

const listByCustomerQuery = `SELECT * FROM reservations WHERE customer_id = $1 ORDER BY created_at DESC`

func (r *Repository) SetUnlockCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, setUnlockCodeQuery, id, code, expiresAt)
	if err != nil {
		return err
	}
	return expectOne(res)
}

const setUnlockCodeQuery = `
UPDATE reservations SET unlock_code = $2, unlock_code_expires_at = $3
WHERE id = $1 AND status = 'reserved'
`

// Start moves a reserved reservation to in_progress and clears its unlock code.
func (r *Repository) Start(ctx context.Context, id uuid.UUID, at pgtype.Point) (Reservation, error) {
	var res Reservation
	err := r.db.GetContext(ctx, &res, startQuery, id, at)
	if errors.Is(err, sql.ErrNoRows) {
		return Reservation{}, ErrInvalidTransition
	}
	return res, err
}

const startQuery = `
UPDATE reservations
SET status = 'in_progress', unlock_code = NULL, unlock_code_expires_at = NULL,
    start_time = now(), start_location = $2
WHERE id = $1 AND status = 'reserved'
RETURNING *
`

// End records the ride's completion and returns the bike, locked, to circulation.
func (r *Repository) End(ctx context.Context, id uuid.UUID, c Completion) (Reservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Reservation{}, err
	}
	defer tx.Rollback()

	var res Reservation
	err = tx.GetContext(ctx, &res, endQuery, id, c.EndLocation, c.DistanceKm, c.Cost)
	if errors.Is(err, sql.ErrNoRows) {
		return Reservation{}, ErrInvalidTransition
	}
	if err != nil {
		return Reservation{}, err
	}

	_, err = tx.ExecContext(ctx, releaseBikeQuery, res.BikeID, c.EndLocation)
	if err != nil {
		return Reservation{}, err
	}

	return res, tx.Commit()
}

const endQuery = `
UPDATE reservations
SET status = 'completed-payment-pending', end_time = now(), end_location = $2,
    distance_km = $3, cost = $4
WHERE id = $1 AND status = 'in_progress'
RETURNING *
`

const releaseBikeQuery = `UPDATE bikes SET available = true, is_locked = true, location = COALESCE($2, location) WHERE id = $1`

// MarkPaid settles a completed ride.
func (r *Repository) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return MarkPaidTx(ctx, r.db, id)
}

// MarkPaidTx is MarkPaid inside a caller's transaction.
func MarkPaidTx(ctx context.Context, tx sqlx.ExecerContext, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, markPaidQuery, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

const markPaidQuery = `
UPDATE reservations SET status = 'completed-paid'
WHERE id = $1 AND status = 'completed-payment-pending'
`

// Cancel releases a reservation that has not started yet.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (Reservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Reservation{}, err
	}
	defer tx.Rollback()

	var res Reservation
	err = tx.GetContext(ctx, &res, cancelQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Reservation{}, ErrInvalidTransition
	}
	if err != nil {
		return Reservation{}, err
	}

	_, err = tx.ExecContext(ctx, setBikeAvailableQuery, res.BikeID, true)
	if err != nil {
		return Reservation{}, err
	}

	return res, tx.Commit()
}

const cancelQuery = `
UPDATE reservations SET status = 'cancelled', unlock_code = NULL, unlock_code_expires_at = NULL
WHERE id = $1 AND status = 'reserved'
RETURNING *
`

// CompletedDistances returns the distance of every ended ride of a customer.
func (r *Repository) CompletedDistances(ctx context.Context, customerID uuid.UUID) ([]float64, error) {
	var out []float64
	err := r.db.SelectContext(ctx, &out, completedDistancesQuery, customerID)
	return out, err
}

const completedDistancesQuery = `
SELECT COALESCE(distance_km, 0) FROM reservations
WHERE customer_id = $1 AND status IN ('completed-payment-pending', 'completed-paid')
`

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}
