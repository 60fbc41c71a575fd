package verify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/shineum/smtp-verify-lite/internal/api"
	"github.com/shineum/smtp-verify-lite/internal/config"
	"github.com/shineum/smtp-verify-lite/internal/report"
	"github.com/shineum/smtp-verify-lite/internal/smtptest"
	"github.com/shineum/smtp-verify-lite/internal/token"
)

// fakeService is an in-memory stand-in for the auth and inbox API. Messages
// accepted by a smtptest server are fed to it through deliver.
type fakeService struct {
	mu sync.Mutex

	users map[string]string
	inbox map[string][]api.InboxEntry

	// Overrides; zero means normal behavior.
	registerStatus int
	loginStatus    int
	wrongPassOK    bool
	emailsStatus   int
	role           string
	meUsername     string
	paged          bool
	hiddenPolls    int

	emailPolls int
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()

	fs := &fakeService{
		users: make(map[string]string),
		inbox: make(map[string][]api.InboxEntry),
		role:  "USER",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", fs.handleRegister)
	mux.HandleFunc("POST /api/auth/register", fs.handleRegister)
	mux.HandleFunc("POST /api/login", fs.handleLogin)
	mux.HandleFunc("POST /api/auth/login", fs.handleLogin)
	mux.HandleFunc("GET /api/me", fs.handleMe)
	mux.HandleFunc("GET /api/emails", fs.handleEmails)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeService) deliver(msg smtptest.Message) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, rcpt := range msg.To {
		fs.inbox[rcpt] = append(fs.inbox[rcpt], api.InboxEntry{
			Subject:    msg.Parsed.Subject,
			Body:       strings.TrimRight(msg.Parsed.TextBody, "\r\n"),
			Sender:     msg.From,
			Recipients: msg.To,
		})
	}
	return nil
}

// configure applies fn under the service lock.
func (fs *fakeService) configure(fn func(*fakeService)) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fn(fs)
}

func (fs *fakeService) polls() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.emailPolls
}

func (fs *fakeService) handleRegister(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.registerStatus != 0 {
		http.Error(w, "registration disabled", fs.registerStatus)
		return
	}
	var creds api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if _, ok := fs.users[creds.Username]; ok {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Username already exists"))
		return
	}
	fs.users[creds.Username] = creds.Password
	writeJSON(w, map[string]any{"id": len(fs.users), "username": creds.Username})
}

func (fs *fakeService) handleLogin(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.loginStatus != 0 {
		http.Error(w, "login disabled", fs.loginStatus)
		return
	}
	var creds api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if pw, ok := fs.users[creds.Username]; !ok || (pw != creds.Password && !fs.wrongPassOK) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("Invalid credentials"))
		return
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   creds.Username,
		"roles": fs.role,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, api.LoginResponse{Token: tok, Type: "Bearer", Username: creds.Username, Roles: fs.role})
}

func (fs *fakeService) subject(r *http.Request) (string, bool) {
	bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	claims, err := token.DecodeClaims(bearer)
	if err != nil {
		return "", false
	}
	sub, ok := claims["sub"].(string)
	return sub, ok
}

func (fs *fakeService) handleMe(w http.ResponseWriter, r *http.Request) {
	sub, ok := fs.subject(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.meUsername != "" {
		sub = fs.meUsername
	}
	writeJSON(w, map[string]any{"id": 1, "username": sub})
}

func (fs *fakeService) handleEmails(w http.ResponseWriter, r *http.Request) {
	if _, ok := fs.subject(r); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.emailPolls++

	if fs.emailsStatus != 0 {
		http.Error(w, "inbox unavailable", fs.emailsStatus)
		return
	}

	entries := fs.inbox[r.URL.Query().Get("recipient")]
	if fs.emailPolls <= fs.hiddenPolls {
		entries = nil
	}
	if entries == nil {
		entries = []api.InboxEntry{}
	}

	if fs.paged {
		writeJSON(w, map[string]any{"content": entries, "totalElements": len(entries)})
		return
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// testConfig returns tool defaults pointed at the fake service.
func testConfig(t *testing.T, tool config.Tool, srv *httptest.Server) *config.Config {
	t.Helper()
	cfg, err := config.Defaults(tool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.API.BaseURL = srv.URL + "/api"
	cfg.SMTP.Timeout = 5 * time.Second
	cfg.Inbox.PollInterval = 20 * time.Millisecond
	cfg.Inbox.Timeout = 2 * time.Second
	cfg.Log.File = ""
	return cfg
}

func newClient(cfg *config.Config) *api.Client {
	return api.New(cfg.API.BaseURL, api.Paths{
		Register: cfg.API.RegisterPath,
		Login:    cfg.API.LoginPath,
		Me:       cfg.API.MePath,
		Emails:   cfg.API.EmailsPath,
	}, api.WithTimeout(5*time.Second))
}

func newTranscript(t *testing.T, timestamps bool) (*report.Transcript, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	tr, err := report.New(report.Options{Console: &buf, Timestamps: timestamps})
	if err != nil {
		t.Fatalf("failed to create transcript: %v", err)
	}
	return tr, &buf
}

func assertLines(t *testing.T, transcript string, want ...string) {
	t.Helper()
	for _, line := range want {
		if !strings.Contains(transcript, line) {
			t.Errorf("transcript missing %q:\n%s", line, transcript)
		}
	}
}

func refuteLines(t *testing.T, transcript string, unwanted ...string) {
	t.Helper()
	for _, line := range unwanted {
		if strings.Contains(transcript, line) {
			t.Errorf("transcript unexpectedly contains %q:\n%s", line, transcript)
		}
	}
}
