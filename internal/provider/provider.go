// Package provider defines the interface for probe message delivery backends.
package provider

import (
	"context"

	"github.com/shineum/smtp-verify-lite/internal/email"
)

// Provider delivers a probe message toward the service under test.
// Each provider handles the actual transport (direct SMTP, an external
// relay, or a dry-run writer).
type Provider interface {
	// Send delivers an email message through this provider.
	// It returns an error if the delivery fails.
	Send(ctx context.Context, msg *email.Email) error

	// Name returns the human-readable name of this provider.
	Name() string
}
