// Package email defines the probe message model and its RFC 5322 encoding.
package email

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/google/uuid"
)

// Format selects the MIME layout used when composing a message.
type Format int

const (
	// FormatPlain writes a single text/plain entity.
	FormatPlain Format = iota
	// FormatAlternative wraps the text/plain body in multipart/alternative.
	FormatAlternative
)

// Email represents a probe message sent to, or read back from, the
// service under test.
type Email struct {
	From      string
	To        []string
	Subject   string
	TextBody  string
	HtmlBody  string
	MessageID string
	Date      time.Time
	Format    Format
}

// Compose encodes the message into its wire form. Message-ID and Date are
// generated when unset.
func (e *Email) Compose() ([]byte, error) {
	if e.From == "" {
		return nil, fmt.Errorf("message has no sender")
	}
	if len(e.To) == 0 {
		return nil, fmt.Errorf("message has no recipients")
	}

	if e.MessageID == "" {
		e.MessageID = NewMessageID(e.From)
	}
	if e.Date.IsZero() {
		e.Date = time.Now()
	}

	var h message.Header
	h.Set("From", e.From)
	h.Set("To", strings.Join(e.To, ", "))
	h.Set("Subject", e.Subject)
	h.Set("Date", e.Date.Format(time.RFC1123Z))
	h.Set("Message-Id", e.MessageID)
	h.Set("MIME-Version", "1.0")

	var buf bytes.Buffer

	switch e.Format {
	case FormatAlternative:
		h.SetContentType("multipart/alternative", nil)
		w, err := message.CreateWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create multipart writer: %w", err)
		}

		var ph message.Header
		ph.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		part, err := w.CreatePart(ph)
		if err != nil {
			return nil, fmt.Errorf("failed to create text part: %w", err)
		}
		if _, err := part.Write([]byte(e.TextBody)); err != nil {
			return nil, fmt.Errorf("failed to write text part: %w", err)
		}
		if err := part.Close(); err != nil {
			return nil, fmt.Errorf("failed to close text part: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close multipart writer: %w", err)
		}

	default:
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := message.CreateWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create message writer: %w", err)
		}
		if _, err := w.Write([]byte(e.TextBody)); err != nil {
			return nil, fmt.Errorf("failed to write body: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close message writer: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// NewMessageID returns a unique angle-bracketed Message-ID using the domain
// part of the sender address.
func NewMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.Trim(from[at+1:], "<> ")
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
