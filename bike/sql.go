package bike

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("bike not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetBikes lists bikes, optionally only those docked at a station.
func (r *Repository) GetBikes(ctx context.Context, stationID *uuid.UUID) ([]Bike, error) {
	var bikes []Bike
	var err error
	if stationID != nil {
		err = r.db.SelectContext(ctx, &bikes, getBikesByStation, *stationID)
	} else {
		err = r.db.SelectContext(ctx, &bikes, getBikes)
	}
	return bikes, err
}

const getBikes = `SELECT * FROM bikes ORDER BY label`

const getBikesByStation = `SELECT * FROM bikes WHERE station_id = $1 ORDER BY label`

func (r *Repository) GetBike(ctx context.Context, id uuid.UUID) (Bike, error) {
	var bike Bike

	err := r.db.GetContext(ctx, &bike, getBike, id)
	if errors.Is(err, sql.ErrNoRows) {
		return bike, ErrNotFound
	}

	return bike, err
}

const getBike = `SELECT * FROM bikes WHERE id = $1`

// GetBikeByLabel fetches a bike by the label printed on its QR sticker.
func (r *Repository) GetBikeByLabel(ctx context.Context, label string) (Bike, error) {
	var bike Bike

	err := r.db.GetContext(ctx, &bike, getBikeByLabel, label)
	if errors.Is(err, sql.ErrNoRows) {
		return bike, ErrNotFound
	}

	return bike, err
}

const getBikeByLabel = `SELECT * FROM bikes WHERE label = $1`

func (r *Repository) SetLocked(ctx context.Context, id uuid.UUID, locked bool) error {
	res, err := r.db.ExecContext(ctx, setLocked, id, locked)
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

const setLocked = `UPDATE bikes SET is_locked = $2 WHERE id = $1`
