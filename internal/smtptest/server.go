// Package smtptest provides an in-process SMTP server that captures
// delivered messages, for exercising SMTP clients in tests.
package smtptest

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shineum/smtp-verify-lite/internal/email"
)

// shutdownTimeout bounds how long Close waits for in-flight sessions.
const shutdownTimeout = 5 * time.Second

// Config holds the configuration for a capture server.
type Config struct {
	// Hostname is the server hostname used in the greeting and EHLO reply.
	Hostname string

	// TLSConfig enables STARTTLS. If nil, STARTTLS is not advertised.
	TLSConfig *tls.Config

	// Username and Password enable AUTH PLAIN and make it mandatory
	// before MAIL FROM.
	Username string
	Password string

	// OnMessage is called for every accepted message. A non-nil error is
	// reported to the client as a 451 temporary failure.
	OnMessage func(Message) error
}

// Message is a captured mail transaction.
type Message struct {
	From   string
	To     []string
	Raw    []byte
	Parsed *email.Email
	TLS    bool
}

// Server is an SMTP server bound to a loopback port.
type Server struct {
	config   Config
	auth     authenticator
	listener net.Listener
	cancel   context.CancelFunc

	// wg tracks in-flight session goroutines.
	wg sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	messages []Message
	commands []string
}

// NewServer creates a capture server. Call Start to begin accepting.
func NewServer(cfg Config) *Server {
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}
	return &Server{
		config: cfg,
		auth:   authenticator{username: cfg.Username, password: cfg.Password},
		conns:  make(map[net.Conn]struct{}),
	}
}

// Start starts a capture server for the duration of the test.
func Start(t testing.TB, cfg Config) *Server {
	t.Helper()

	s := NewServer(cfg)
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start SMTP capture server: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Start listens on an ephemeral loopback port and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.listener = ln

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(ctx)
	}()
	return nil
}

func (s *Server) serve(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				slog.Debug("smtptest accept error", "error", err)
				return
			}
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
			}()
			newSession(conn, s).handle(ctx)
		}()
	}
}

// Close stops the listener and waits for sessions to finish.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}

	// Unblock sessions parked in a read.
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		slog.Warn("smtptest shutdown timeout reached")
	}
}

// Addr returns the listener address in host:port form.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Host returns the listener host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listener port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// Messages returns a copy of all captured messages.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Commands returns the command verbs received across all sessions, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) recordCommand(cmd string) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()
}

func (s *Server) deliver(msg Message) error {
	if s.config.OnMessage != nil {
		if err := s.config.OnMessage(msg); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return nil
}
