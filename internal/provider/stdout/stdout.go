// Package stdout implements a dry-run Provider that prints the composed
// message instead of delivering it.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/smtp-verify-lite/internal/email"
)

const separator = "========================================\n"

// Provider writes the wire form of each message between separator lines.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a stdout Provider that writes to the given writer.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send composes msg and prints the envelope followed by the raw message.
func (p *Provider) Send(_ context.Context, msg *email.Email) error {
	raw, err := msg.Compose()
	if err != nil {
		return fmt.Errorf("failed to compose message: %w", err)
	}

	var b strings.Builder
	b.WriteString(separator)
	fmt.Fprintf(&b, "MAIL FROM: %s\n", msg.From)
	fmt.Fprintf(&b, "RCPT TO: %s\n", strings.Join(msg.To, ", "))
	b.WriteString("\n")
	b.WriteString(strings.ReplaceAll(string(raw), "\r\n", "\n"))
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(separator)

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}
