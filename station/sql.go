package station

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("station not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetStations(ctx context.Context) ([]Station, error) {
	var stations []Station
	err := r.db.SelectContext(ctx, &stations, getStations)
	return stations, err
}

const getStations = `
SELECT s.*, COUNT(b.id) FILTER (WHERE b.available) AS available_bikes
FROM stations s
LEFT JOIN bikes b ON b.station_id = s.id
GROUP BY s.id
ORDER BY s.name
`

func (r *Repository) GetStation(ctx context.Context, id uuid.UUID) (Station, error) {
	var station Station
	err := r.db.GetContext(ctx, &station, getStation, id)
	if errors.Is(err, sql.ErrNoRows) {
		return station, ErrNotFound
	}
	return station, err
}

const getStation = `
SELECT s.*, COUNT(b.id) FILTER (WHERE b.available) AS available_bikes
FROM stations s
LEFT JOIN bikes b ON b.station_id = s.id
WHERE s.id = $1
GROUP BY s.id
`
