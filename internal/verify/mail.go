// Package verify runs the black-box checks against the mail and auth
// service and narrates each step to a transcript.
package verify

import (
	"context"

	"github.com/shineum/smtp-verify-lite/internal/config"
	"github.com/shineum/smtp-verify-lite/internal/email"
	"github.com/shineum/smtp-verify-lite/internal/provider"
	"github.com/shineum/smtp-verify-lite/internal/report"
)

// ProbeMessage builds the configured probe message.
func ProbeMessage(msg config.MessageConfig) *email.Email {
	format := email.FormatPlain
	if msg.Format == "alternative" {
		format = email.FormatAlternative
	}
	return &email.Email{
		From:     msg.From,
		To:       append([]string(nil), msg.To...),
		Subject:  msg.Subject,
		TextBody: msg.Body,
		Format:   format,
	}
}

// SendTestEmail sends the probe message once and reports whether it was
// accepted. Failures are printed, never returned.
func SendTestEmail(ctx context.Context, cfg *config.Config, p provider.Provider, out *report.Transcript) bool {
	if err := p.Send(ctx, ProbeMessage(cfg.Message)); err != nil {
		out.Printf("Error sending email: %v", err)
		return false
	}
	out.Println("Email sent successfully!")
	return true
}
