package reservation

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// UnlockCodeTTL is how long an emailed unlock code stays valid.
const UnlockCodeTTL = 10 * time.Minute

var (
	ErrCodeMismatch = errors.New("unlock code does not match")
	ErrCodeExpired  = errors.New("unlock code expired")
)

// NewUnlockCode returns a random 4-digit numeric code, zero padded.
func NewUnlockCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// Code is an unlock code as typed by a rider. Apps send it either as a JSON
// string or as a bare number, so both decode to the same value.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("unlock code must be a string or number: %w", err)
	}
	// 42, 42.0 and 4.2e1 are the same number.
	d, err := decimal.NewFromString(n.String())
	if err != nil || !d.IsInteger() || d.IsNegative() {
		*c = Code(n.String())
		return nil
	}
	*c = Code(d.String())
	return nil
}

// CheckCode compares the submitted code with the one stored on the
// reservation. A leading-zero code typed as a number ("0042" sent as 42)
// still matches.
func (r Reservation) CheckCode(submitted Code, now time.Time) error {
	if !r.UnlockCode.Valid || r.UnlockCode.String == "" {
		return ErrCodeMismatch
	}
	if r.UnlockCodeExpiresAt.Valid && now.After(r.UnlockCodeExpiresAt.Time) {
		return ErrCodeExpired
	}
	if normalizeCode(string(submitted)) != normalizeCode(r.UnlockCode.String) {
		return ErrCodeMismatch
	}
	return nil
}

func normalizeCode(s string) string {
	s = strings.TrimSpace(s)
	t := strings.TrimLeft(s, "0")
	if t == "" && s != "" {
		return "0"
	}
	return t
}
