package stdout

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shineum/smtp-verify-lite/internal/email"
)

func TestSend_PrintsComposedMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	msg := &email.Email{
		From:     "test@example.com",
		To:       []string{"alice@example.com", "bob@example.com"},
		Subject:  "Test Email from SMTP Service",
		TextBody: "Hi,\nThis is a test email sent from your self-hosted SMTP server.\n",
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"MAIL FROM: test@example.com\n",
		"RCPT TO: alice@example.com, bob@example.com\n",
		"Subject: Test Email from SMTP Service",
		"Message-Id: <",
		"This is a test email sent from your self-hosted SMTP server.",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "\r\n") {
		t.Error("output should use bare newlines")
	}
	if !strings.HasPrefix(output, separator) {
		t.Error("output should start with separator line")
	}
	if !strings.HasSuffix(output, separator) {
		t.Error("output should end with separator line")
	}
}

func TestSend_AlternativeFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	msg := &email.Email{
		From:     "test@example.com",
		To:       []string{"recipient@example.com"},
		Subject:  "Alt",
		TextBody: "hello",
		Format:   email.FormatAlternative,
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "multipart/alternative") {
		t.Errorf("output missing multipart content type:\n%s", buf.String())
	}
}

func TestSend_ComposeError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	if err := p.Send(context.Background(), &email.Email{To: []string{"a@example.com"}}); err == nil {
		t.Fatal("expected error for message without sender")
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestSend_WriteError(t *testing.T) {
	t.Parallel()

	p := NewWithWriter(failingWriter{})
	msg := &email.Email{From: "a@example.com", To: []string{"b@example.com"}, TextBody: "x"}

	if err := p.Send(context.Background(), msg); err == nil {
		t.Fatal("expected write error")
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	if got := New().Name(); got != "stdout" {
		t.Errorf("Name(): got %q, want %q", got, "stdout")
	}
}
