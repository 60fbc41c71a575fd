// Package smtp implements a Provider that submits messages directly to an
// SMTP server, optionally upgrading with STARTTLS and authenticating with
// AUTH PLAIN.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/shineum/smtp-verify-lite/internal/email"
)

// StartTLSMode controls STARTTLS negotiation after the first EHLO.
type StartTLSMode string

const (
	// StartTLSNone never negotiates encryption.
	StartTLSNone StartTLSMode = "none"
	// StartTLSOpportunistic upgrades only when the server advertises STARTTLS.
	StartTLSOpportunistic StartTLSMode = "opportunistic"
	// StartTLSRequired fails the send when STARTTLS is not advertised.
	StartTLSRequired StartTLSMode = "required"
)

// ParseStartTLSMode validates a mode string. Empty means StartTLSNone.
func ParseStartTLSMode(s string) (StartTLSMode, error) {
	switch StartTLSMode(s) {
	case "", StartTLSNone:
		return StartTLSNone, nil
	case StartTLSOpportunistic, StartTLSRequired:
		return StartTLSMode(s), nil
	default:
		return "", fmt.Errorf("unknown starttls mode %q", s)
	}
}

// ErrStartTLSUnavailable is returned in StartTLSRequired mode when the
// server does not advertise the extension.
var ErrStartTLSUnavailable = errors.New("server does not advertise STARTTLS")

// defaultTimeout applies when Config.Timeout is zero.
const defaultTimeout = 30 * time.Second

// Config holds the settings for an SMTP Provider.
type Config struct {
	Host string
	Port int

	// HeloName is the name sent with EHLO. Defaults to "localhost".
	HeloName string

	StartTLS  StartTLSMode
	TLSConfig *tls.Config

	// Username and Password enable AUTH PLAIN when both are set.
	Username string
	Password string

	// Timeout bounds the whole SMTP dialogue.
	Timeout time.Duration

	// Debug receives a client/server wire trace of the plaintext part of
	// the dialogue when non-nil.
	Debug io.Writer

	// Progress receives human-readable milestones such as the STARTTLS
	// switch.
	Progress func(string)
}

// Provider submits messages over a fresh SMTP connection per Send.
type Provider struct {
	config Config
}

// New creates an SMTP Provider, filling defaults.
func New(cfg Config) *Provider {
	if cfg.HeloName == "" {
		cfg.HeloName = "localhost"
	}
	if cfg.StartTLS == "" {
		cfg.StartTLS = StartTLSNone
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Progress == nil {
		cfg.Progress = func(string) {}
	}
	return &Provider{config: cfg}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}

// Addr returns the server address in host:port form.
func (p *Provider) Addr() string {
	return net.JoinHostPort(p.config.Host, strconv.Itoa(p.config.Port))
}

// Send composes msg and runs EHLO, optional STARTTLS and AUTH, then
// MAIL/RCPT/DATA/QUIT. No retries are attempted.
func (p *Provider) Send(ctx context.Context, msg *email.Email) error {
	raw, err := msg.Compose()
	if err != nil {
		return fmt.Errorf("failed to compose message: %w", err)
	}

	dialer := net.Dialer{Timeout: p.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", p.Addr(), err)
	}
	if err := conn.SetDeadline(time.Now().Add(p.config.Timeout)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	var trace *traceConn
	if p.config.Debug != nil {
		trace = &traceConn{Conn: conn, w: p.config.Debug}
		conn = trace
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	client, err := gosmtp.NewClient(conn, p.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp.NewClient: %w", err)
	}
	defer client.Close()

	if err := client.Hello(p.config.HeloName); err != nil {
		return fmt.Errorf("client.Hello: %w", err)
	}

	if err := p.negotiateTLS(client, trace); err != nil {
		return err
	}

	if p.config.Username != "" && p.config.Password != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return fmt.Errorf("server does not advertise AUTH")
		}
		auth := sasl.NewPlainClient("", p.config.Username, p.config.Password)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("client.Auth: %w", err)
		}
	}

	if err := client.Mail(msg.From, nil); err != nil {
		return fmt.Errorf("client.Mail: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("client.Rcpt %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("client.Data: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		writer.Close()
		return fmt.Errorf("writer.Write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("writer.Close: %w", err)
	}

	if err := client.Quit(); err != nil {
		slog.Debug("SMTP QUIT failed after accepted message", "error", err)
	}

	slog.Debug("message submitted",
		"addr", p.Addr(),
		"message_id", msg.MessageID,
		"recipients", len(msg.To),
	)
	return nil
}

func (p *Provider) negotiateTLS(client *gosmtp.Client, trace *traceConn) error {
	if p.config.StartTLS == StartTLSNone {
		return nil
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		if p.config.StartTLS == StartTLSRequired {
			return ErrStartTLSUnavailable
		}
		slog.Debug("STARTTLS not advertised, continuing in plaintext", "addr", p.Addr())
		return nil
	}

	p.config.Progress("SMTP: Switching to STARTTLS")

	tlsConfig := p.config.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: p.config.Host, MinVersion: tls.VersionTLS12}
	}
	if trace != nil {
		trace.mute()
	}
	// StartTLS re-issues EHLO on the encrypted channel.
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("client.StartTLS: %w", err)
	}
	return nil
}
