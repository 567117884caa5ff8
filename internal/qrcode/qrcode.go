// Package qrcode renders payment deep links as scannable images.
package qrcode

import (
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
	qr "github.com/skip2/go-qrcode"
)

const size = 256

// PaymentLink builds the deep link a wallet app opens to pay.
func PaymentLink(base, paymentID string, amount decimal.Decimal, currency string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse qr base url: %w", err)
	}
	q := u.Query()
	q.Set("payment", paymentID)
	q.Set("amount", amount.StringFixed(2))
	q.Set("currency", currency)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DataURL encodes content as a PNG QR code inlined in a data URL.
func DataURL(content string) (string, error) {
	png, err := qr.Encode(content, qr.Medium, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
