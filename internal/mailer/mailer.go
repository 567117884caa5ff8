// Package mailer delivers unlock codes to riders.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

type UnlockCode struct {
	To       string
	Name     string
	Code     string
	BikeName string
	ValidFor string
}

var unlockTemplate = template.Must(template.New("unlock").Parse(`<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>Your unlock code for <strong>{{.BikeName}}</strong> is</p>
<p style="font-size:28px;letter-spacing:6px"><strong>{{.Code}}</strong></p>
<p>The code is valid for {{.ValidFor}}. Enter it in the app to start your ride.</p>`))

func renderUnlock(msg UnlockCode) (string, error) {
	var buf bytes.Buffer
	if err := unlockTemplate.Execute(&buf, msg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Resend sends mail through the Resend API.
type Resend struct {
	client *resend.Client
	from   string
}

func NewResend(apiKey, from string) *Resend {
	return &Resend{client: resend.NewClient(apiKey), from: from}
}

func (r *Resend) SendUnlockCode(ctx context.Context, msg UnlockCode) error {
	html, err := renderUnlock(msg)
	if err != nil {
		return err
	}
	_, err = r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: "Your CycleChain unlock code",
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("send unlock code: %w", err)
	}
	return nil
}

// Log writes the message to the logger instead of sending it. Used when no
// mail provider is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) SendUnlockCode(ctx context.Context, msg UnlockCode) error {
	l.logger.InfoContext(ctx, "unlock code (mail delivery disabled)",
		"to", msg.To, "bike", msg.BikeName, "code", msg.Code)
	return nil
}
