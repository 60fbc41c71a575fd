package smtptest

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/shineum/smtp-verify-lite/internal/parser"
)

// Session states for the SMTP state machine.
const (
	stateConnected = iota
	stateGreeted
	stateAuthOK
	stateMailFrom
	stateRcptTo
)

// idleTimeout is the maximum time a session can remain idle before being closed.
const idleTimeout = 30 * time.Second

// maxMessageSize is the SIZE advertised in the EHLO reply (10 MB).
const maxMessageSize = 10 * 1024 * 1024

// session is a single client connection driven through the SMTP state machine.
type session struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	state  int

	tlsActive bool

	// Current transaction
	mailFrom string
	rcptTo   []string
}

func newSession(conn net.Conn, server *Server) *session {
	return &session{
		server: server,
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		state:  stateConnected,
	}
}

// handle runs the session until the client quits or the connection drops.
func (s *session) handle(ctx context.Context) {
	defer func() { s.conn.Close() }()

	s.writeLine("220 %s ESMTP smtptest", s.server.config.Hostname)

	for {
		select {
		case <-ctx.Done():
			s.writeLine("421 Service shutting down")
			return
		default:
		}

		if err := s.conn.SetDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				slog.Debug("smtptest read error", "error", err)
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		cmd, arg := parseCommand(line)
		s.server.recordCommand(cmd)
		if done := s.handleCommand(cmd, arg); done {
			return
		}
	}
}

// handleCommand processes a single command and returns true if the session should end.
func (s *session) handleCommand(cmd, arg string) bool {
	switch cmd {
	case "EHLO", "HELO":
		s.handleEHLO(cmd, arg)
	case "STARTTLS":
		s.handleSTARTTLS()
	case "AUTH":
		s.handleAUTH(arg)
	case "MAIL":
		s.handleMAIL(arg)
	case "RCPT":
		s.handleRCPT(arg)
	case "DATA":
		s.handleDATA()
	case "RSET":
		s.resetTransaction()
		s.writeLine("250 OK")
	case "NOOP":
		s.writeLine("250 OK")
	case "QUIT":
		s.writeLine("221 Bye")
		return true
	default:
		s.writeLine("500 Unrecognized command")
	}
	return false
}

func (s *session) handleEHLO(cmd, arg string) {
	if arg == "" {
		s.writeLine("501 Syntax: %s hostname", cmd)
		return
	}

	s.state = stateGreeted
	if cmd == "HELO" {
		s.writeLine("250 %s Hello %s", s.server.config.Hostname, arg)
		return
	}

	s.writeLine("250-%s Hello %s", s.server.config.Hostname, arg)
	if s.server.config.TLSConfig != nil && !s.tlsActive {
		s.writeLine("250-STARTTLS")
	}
	if s.server.auth.enabled() {
		s.writeLine("250-AUTH PLAIN")
	}
	s.writeLine("250-SIZE %d", maxMessageSize)
	s.writeLine("250 OK")
}

func (s *session) handleSTARTTLS() {
	if s.server.config.TLSConfig == nil {
		s.writeLine("454 TLS not available")
		return
	}
	if s.tlsActive {
		s.writeLine("454 TLS already active")
		return
	}

	s.writeLine("220 Ready to start TLS")

	tlsConn := tls.Server(s.conn, s.server.config.TLSConfig)
	if err := tlsConn.Handshake(); err != nil {
		slog.Debug("smtptest TLS handshake failed", "error", err)
		return
	}

	s.conn = tlsConn
	s.reader = bufio.NewReader(tlsConn)
	s.writer = bufio.NewWriter(tlsConn)
	s.tlsActive = true
	// RFC 3207: the client must greet again after the upgrade.
	s.state = stateConnected
	s.resetTransaction()
}

func (s *session) handleAUTH(arg string) {
	if s.state < stateGreeted {
		s.writeLine("503 Send EHLO/HELO first")
		return
	}
	if !s.server.auth.enabled() {
		s.writeLine("503 AUTH not available")
		return
	}

	parts := strings.SplitN(arg, " ", 2)
	if strings.ToUpper(parts[0]) != "PLAIN" {
		s.writeLine("504 Unrecognized authentication type")
		return
	}

	var encoded string
	if len(parts) > 1 && parts[1] != "" {
		encoded = parts[1]
	} else {
		s.writeLine("334 ")
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return
		}
		encoded = strings.TrimRight(line, "\r\n")
	}

	if encoded == "*" {
		s.writeLine("501 Authentication cancelled")
		return
	}
	if err := s.server.auth.verifyPlain(encoded); err != nil {
		s.writeLine("535 Authentication failed")
		return
	}

	s.state = stateAuthOK
	s.writeLine("235 Authentication successful")
}

func (s *session) handleMAIL(arg string) {
	if s.state < stateGreeted {
		s.writeLine("503 Send EHLO/HELO first")
		return
	}
	if s.server.auth.enabled() && s.state < stateAuthOK {
		s.writeLine("530 Authentication required")
		return
	}

	if !strings.HasPrefix(strings.ToUpper(arg), "FROM:") {
		s.writeLine("501 Syntax: MAIL FROM:<address>")
		return
	}

	addr := extractAddress(arg[5:])
	if addr == "" {
		s.writeLine("501 Syntax: MAIL FROM:<address>")
		return
	}

	s.mailFrom = addr
	s.rcptTo = nil
	s.state = stateMailFrom
	s.writeLine("250 OK")
}

func (s *session) handleRCPT(arg string) {
	if s.state < stateMailFrom {
		s.writeLine("503 Send MAIL FROM first")
		return
	}

	if !strings.HasPrefix(strings.ToUpper(arg), "TO:") {
		s.writeLine("501 Syntax: RCPT TO:<address>")
		return
	}

	addr := extractAddress(arg[3:])
	if addr == "" {
		s.writeLine("501 Syntax: RCPT TO:<address>")
		return
	}

	s.rcptTo = append(s.rcptTo, addr)
	s.state = stateRcptTo
	s.writeLine("250 OK")
}

func (s *session) handleDATA() {
	if s.state < stateRcptTo {
		s.writeLine("503 Send RCPT TO first")
		return
	}

	s.writeLine("354 Start mail input; end with <CRLF>.<CRLF>")

	var data strings.Builder
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			slog.Debug("smtptest error reading DATA", "error", err)
			return
		}

		if strings.TrimRight(line, "\r\n") == "." {
			break
		}
		// Dot-stuffing: a leading ".." carries one literal dot.
		if strings.HasPrefix(line, "..") {
			line = line[1:]
		}
		data.WriteString(line)
	}

	raw := []byte(data.String())
	parsed, err := parser.Parse(raw)
	if err != nil {
		s.writeLine("550 Failed to process message")
		s.resetTransaction()
		return
	}

	msg := Message{
		From:   s.mailFrom,
		To:     append([]string(nil), s.rcptTo...),
		Raw:    raw,
		Parsed: parsed,
		TLS:    s.tlsActive,
	}
	if err := s.server.deliver(msg); err != nil {
		s.writeLine("451 Temporary failure, please try again later")
		s.resetTransaction()
		return
	}

	s.writeLine("250 OK message queued")
	s.resetTransaction()
}

// resetTransaction clears the mail transaction without touching greeting
// or auth state.
func (s *session) resetTransaction() {
	s.mailFrom = ""
	s.rcptTo = nil

	if s.server.auth.enabled() && s.state >= stateAuthOK {
		s.state = stateAuthOK
	} else if s.state >= stateGreeted {
		s.state = stateGreeted
	}
}

func (s *session) writeLine(format string, args ...any) {
	if _, err := s.writer.WriteString(fmt.Sprintf(format, args...) + "\r\n"); err != nil {
		return
	}
	_ = s.writer.Flush()
}

// parseCommand splits a command line into its upper-cased verb and argument.
func parseCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	cmd := strings.ToUpper(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}
	return cmd, arg
}

// extractAddress extracts an address from a MAIL/RCPT parameter, handling
// angle-bracket and bare formats and trailing ESMTP parameters.
func extractAddress(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "<") {
		end := strings.Index(s, ">")
		if end < 0 {
			return ""
		}
		return s[1:end]
	}

	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	return s
}
