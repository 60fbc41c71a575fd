package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token    string `json:"token"`
	Type     string `json:"type"`
	Username string `json:"username"`
	Roles    any    `json:"roles"`
}

// User is the subset of the profile returned by the me endpoint.
type User struct {
	Username string `json:"username"`
}

// InboxEntry is one stored message as returned by the emails endpoint.
type InboxEntry struct {
	Subject    string    `json:"subject"`
	Body       string    `json:"body,omitempty"`
	BodyText   string    `json:"bodyText,omitempty"`
	Sender     string    `json:"sender,omitempty"`
	Recipient  string    `json:"recipient,omitempty"`
	Recipients Addresses `json:"recipients,omitempty"`
}

// Matches reports whether the entry carries subject and body. Trailing line
// terminators are ignored since SMTP DATA always ends the body with CRLF.
func (e InboxEntry) Matches(subject, body string) bool {
	if e.Subject != subject {
		return false
	}
	want := trimEOL(body)
	return trimEOL(e.Body) == want || (e.BodyText != "" && trimEOL(e.BodyText) == want)
}

func trimEOL(s string) string {
	return strings.TrimRight(s, "\r\n")
}

// Addresses decodes either a JSON array of addresses or a single
// comma-separated string.
type Addresses []string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Addresses) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = list
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("recipients: want string or array: %w", err)
	}
	*a = nil
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*a = append(*a, part)
		}
	}
	return nil
}

// ErrNoToken is returned by DecodeLogin when the body lacks a token.
var ErrNoToken = errors.New("login response has no token")

// DecodeLogin parses a login body and requires a non-empty token.
func DecodeLogin(body string) (*LoginResponse, error) {
	var lr LoginResponse
	if err := json.Unmarshal([]byte(body), &lr); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if lr.Token == "" {
		return nil, ErrNoToken
	}
	return &lr, nil
}

// DecodeUser parses a me endpoint body.
func DecodeUser(body string) (*User, error) {
	var u User
	if err := json.Unmarshal([]byte(body), &u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &u, nil
}

// DecodeInbox parses an inbox body. Both a bare JSON array and a paged
// object holding the array in "content" are accepted.
func DecodeInbox(body string) ([]InboxEntry, error) {
	trimmed := strings.TrimSpace(body)

	if strings.HasPrefix(trimmed, "[") {
		var entries []InboxEntry
		if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
			return nil, fmt.Errorf("failed to decode inbox: %w", err)
		}
		return entries, nil
	}

	var page struct {
		Content *[]InboxEntry `json:"content"`
	}
	if err := json.Unmarshal([]byte(trimmed), &page); err != nil {
		return nil, fmt.Errorf("failed to decode inbox: %w", err)
	}
	if page.Content == nil {
		return nil, fmt.Errorf("failed to decode inbox: no content array")
	}
	return *page.Content, nil
}

// FindMessage returns the index of the first entry matching subject and
// body, or -1.
func FindMessage(entries []InboxEntry, subject, body string) int {
	for i, e := range entries {
		if e.Matches(subject, body) {
			return i
		}
	}
	return -1
}
