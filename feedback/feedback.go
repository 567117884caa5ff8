package feedback

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5

	maxCommentLength = 2000
)

var (
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
	ErrCommentTooLong = errors.New("comment is too long")
	ErrNotFound       = errors.New("feedback not found")
	ErrNotAuthorized  = errors.New("not authorized to modify this feedback")
)

type Feedback struct {
	ID            uuid.UUID     `db:"id"`
	CustomerID    uuid.UUID     `db:"customer_id"`
	BikeID        uuid.UUID     `db:"bike_id"`
	ReservationID uuid.NullUUID `db:"reservation_id"`
	Rating        int           `db:"rating"`
	Comment       string        `db:"comment"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

// ValidateRating enforces MinRating <= rating <= MaxRating.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}
	return nil
}

// Validate checks the user-editable fields.
func (f *Feedback) Validate() error {
	if err := ValidateRating(f.Rating); err != nil {
		return err
	}
	f.Comment = strings.TrimSpace(f.Comment)
	if len(f.Comment) > maxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}
