package parser

import (
	"strings"
	"testing"

	"github.com/shineum/smtp-verify-lite/internal/email"
)

func TestParsePlainTextEmail(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: E2E Test Email",
		"Message-Id: <test123@example.com>",
		"Content-Type: text/plain",
		"",
		"This is a test email sent during end-to-end verification.",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.From != "sender@example.com" {
		t.Errorf("From: got %q, want %q", msg.From, "sender@example.com")
	}
	if len(msg.To) != 1 || msg.To[0] != "recipient@example.com" {
		t.Errorf("To: got %v, want [recipient@example.com]", msg.To)
	}
	if msg.Subject != "E2E Test Email" {
		t.Errorf("Subject: got %q, want %q", msg.Subject, "E2E Test Email")
	}
	if msg.MessageID != "<test123@example.com>" {
		t.Errorf("MessageID: got %q, want %q", msg.MessageID, "<test123@example.com>")
	}
	if msg.TextBody != "This is a test email sent during end-to-end verification." {
		t.Errorf("TextBody: got %q", msg.TextBody)
	}
	if msg.Format != email.FormatPlain {
		t.Errorf("Format: got %v, want FormatPlain", msg.Format)
	}
}

func TestParseBareSubjectOnly(t *testing.T) {
	t.Parallel()

	// Minimal form some clients emit: a single Subject header and a body.
	raw := []byte("Subject: E2E Test Email\r\n\r\nbody text")

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Subject != "E2E Test Email" {
		t.Errorf("Subject: got %q", msg.Subject)
	}
	if msg.TextBody != "body text" {
		t.Errorf("TextBody: got %q, want %q", msg.TextBody, "body text")
	}
	if msg.From != "" || len(msg.To) != 0 {
		t.Errorf("expected empty addresses, got From=%q To=%v", msg.From, msg.To)
	}
}

func TestParseMultipartAlternative(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: alice@example.com, bob@example.com",
		"Subject: Multipart Test",
		"Content-Type: multipart/alternative; boundary=boundary123",
		"",
		"--boundary123",
		"Content-Type: text/plain",
		"",
		"Plain text body",
		"--boundary123",
		"Content-Type: text/html",
		"",
		"<p>HTML body</p>",
		"--boundary123--",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(msg.To) != 2 {
		t.Fatalf("To: got %d recipients, want 2", len(msg.To))
	}
	if msg.To[1] != "bob@example.com" {
		t.Errorf("To[1]: got %q, want %q", msg.To[1], "bob@example.com")
	}
	if msg.TextBody != "Plain text body" {
		t.Errorf("TextBody: got %q, want %q", msg.TextBody, "Plain text body")
	}
	if msg.HtmlBody != "<p>HTML body</p>" {
		t.Errorf("HtmlBody: got %q, want %q", msg.HtmlBody, "<p>HTML body</p>")
	}
	if msg.Format != email.FormatAlternative {
		t.Errorf("Format: got %v, want FormatAlternative", msg.Format)
	}
}

func TestParseNestedMultipart(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: r@example.com",
		"Subject: Nested",
		"Content-Type: multipart/mixed; boundary=outer",
		"",
		"--outer",
		"Content-Type: multipart/alternative; boundary=inner",
		"",
		"--inner",
		"Content-Type: text/plain",
		"",
		"nested text",
		"--inner--",
		"--outer",
		"Content-Type: application/octet-stream",
		"",
		"binary",
		"--outer--",
	}, "\r\n"))

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.TextBody != "nested text" {
		t.Errorf("TextBody: got %q, want %q", msg.TextBody, "nested text")
	}
}

func TestParseComposedRoundTrip(t *testing.T) {
	t.Parallel()

	in := &email.Email{
		From:     "test@example.com",
		To:       []string{"recipient@example.com"},
		Subject:  "Test Email from SMTP Service",
		TextBody: "Hi,\nThis is a test email.\n",
		Format:   email.FormatAlternative,
	}
	raw, err := in.Compose()
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	out, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out.Subject != in.Subject {
		t.Errorf("Subject: got %q, want %q", out.Subject, in.Subject)
	}
	if out.TextBody != in.TextBody {
		t.Errorf("TextBody: got %q, want %q", out.TextBody, in.TextBody)
	}
	if out.MessageID != in.MessageID {
		t.Errorf("MessageID: got %q, want %q", out.MessageID, in.MessageID)
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("not a header line without colon\r\n")); err == nil {
		t.Error("expected error for malformed message")
	}
}
