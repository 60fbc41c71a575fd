// Package parser decodes RFC 5322 messages captured off the wire back into
// the probe message model.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/shineum/smtp-verify-lite/internal/email"
)

// Parse parses a raw message into an Email. Plain and multipart bodies are
// supported; the first text/plain and text/html parts win. Non-text parts
// are skipped with a warning.
func Parse(raw []byte) (*email.Email, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	h := mail.Header{Header: entity.Header}
	result := &email.Email{
		From: firstAddress(h, "From"),
		To:   addressList(h, "To"),
	}

	if subject, err := h.Subject(); err == nil {
		result.Subject = subject
	} else {
		result.Subject = h.Get("Subject")
	}
	if id := h.Get("Message-Id"); id != "" {
		result.MessageID = id
	}
	if date, err := h.Date(); err == nil {
		result.Date = date
	}

	if mr := entity.MultipartReader(); mr != nil {
		result.Format = email.FormatAlternative
		if err := walkMultipart(mr, result); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return result, nil
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	mediaType, _, _ := entity.Header.ContentType()
	if mediaType == "text/html" {
		result.HtmlBody = string(body)
	} else {
		result.TextBody = string(body)
	}

	return result, nil
}

// walkMultipart extracts text parts, descending into nested multiparts.
func walkMultipart(mr message.MultipartReader, result *email.Email) error {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		if nested := part.MultipartReader(); nested != nil {
			if err := walkMultipart(nested, result); err != nil {
				slog.Warn("failed to parse nested multipart", "error", err)
			}
			continue
		}

		mediaType, _, err := part.Header.ContentType()
		if err != nil || mediaType == "" {
			mediaType = "text/plain"
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			slog.Warn("failed to read part content",
				"content_type", mediaType,
				"error", err,
			)
			continue
		}

		switch mediaType {
		case "text/plain":
			if result.TextBody == "" {
				result.TextBody = string(content)
			}
		case "text/html":
			if result.HtmlBody == "" {
				result.HtmlBody = string(content)
			}
		default:
			slog.Warn("skipping non-text MIME part", "content_type", mediaType)
		}
	}
}

func firstAddress(h mail.Header, key string) string {
	list := addressList(h, key)
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

// addressList returns bare addresses for a header, falling back to a comma
// split when the header is not RFC 5322 compliant.
func addressList(h mail.Header, key string) []string {
	raw := h.Get(key)
	if raw == "" {
		return nil
	}

	addrs, err := h.AddressList(key)
	if err != nil {
		var result []string
		for _, p := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		result = append(result, addr.Address)
	}
	return result
}
