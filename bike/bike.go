// Package bike
package bike

import (
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeCity     Type = "city"
	TypeMountain Type = "mountain"
	TypeCargo    Type = "cargo"
)

// Bike represents an e-bike which can be reserved and ridden.
type Bike struct {
	// ID is an internal identifier for a bike
	ID uuid.UUID
	// Label is a physical label which is on the bike and encoded in its QR sticker (e.g. "B001").
	Label string
	// Name is a user-friendly name for the bike model.
	Name string
	Type Type

	// Location is the last position reported for the bike.
	Location pgtype.Point

	// IsLocked mirrors the physical lock. It is flipped by unlock and end ride, not by the lock itself.
	IsLocked bool `db:"is_locked"`
	// Available is false while the bike is held by a reservation.
	Available bool

	BatteryLevel int             `db:"battery_level"`
	PricePerKm   decimal.Decimal `db:"price_per_km"`

	StationID *uuid.UUID `db:"station_id"`
	ImageURL  *string    `db:"image_url"`
}

func (t Type) MarshalJSON() ([]byte, error) {
	if t == "" {
		return json.Marshal(string(TypeCity))
	}
	return json.Marshal(string(t))
}
