package station

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Type int

const (
	Public Type = iota
	Private
)

// Station is a docking point bikes are picked up from and returned to.
type Station struct {
	ID           uuid.UUID
	Name         string
	Address      string
	OpeningHours string `db:"opening_hours"`
	Location     pgtype.Point
	Type         Type

	AvailableBikes int `db:"available_bikes"`
}

func (t Type) String() string {
	return [...]string{"public", "private"}[t]
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) Scan(i any) error {
	var v string
	switch s := i.(type) {
	case string:
		v = s
	case []byte:
		v = string(s)
	default:
		return fmt.Errorf("station type: unsupported scan type %T", i)
	}
	switch v {
	case "public":
		*t = Public
	case "private":
		*t = Private
	default:
		return fmt.Errorf("station type: unknown value %q", v)
	}
	return nil
}
