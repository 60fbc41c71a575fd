package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v4"

	"github.com/shineum/smtp-verify-lite/internal/api"
	"github.com/shineum/smtp-verify-lite/internal/config"
	"github.com/shineum/smtp-verify-lite/internal/report"
	"github.com/shineum/smtp-verify-lite/internal/token"
)

// API is the subset of the HTTP API the checks call.
type API interface {
	Register(ctx context.Context, creds api.Credentials) (*api.Response, error)
	Login(ctx context.Context, creds api.Credentials) (*api.Response, error)
	Me(ctx context.Context, bearer string) (*api.Response, error)
	ListEmails(ctx context.Context, bearer, recipient string) (*api.Response, error)
}

// Check is the outcome of one auth assertion.
type Check struct {
	Name   string
	Passed bool
}

// AuthReport summarizes an AuthCheck run.
type AuthReport struct {
	// Aborted is set when registration failed and no later step ran.
	Aborted bool
	Checks  []Check
}

// Passed reports whether the run completed with every check passing.
func (r *AuthReport) Passed() bool {
	if r.Aborted {
		return false
	}
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

func (r *AuthReport) record(name string, passed bool) {
	r.Checks = append(r.Checks, Check{Name: name, Passed: passed})
}

// AuthCheck registers the test account, logs in with correct and wrong
// passwords, inspects the issued token and, when configured, the profile
// endpoint. Only a failed registration stops the run early.
func AuthCheck(ctx context.Context, cfg *config.Config, client API, out *report.Transcript) *AuthReport {
	rep := &AuthReport{}
	creds := api.Credentials{Username: cfg.Account.Username, Password: cfg.Account.Password}

	out.Println("--- Testing Auth Service ---")

	out.Println("1. Registering...")
	resp, err := client.Register(ctx, creds)
	switch {
	case err != nil:
		out.Printf("   Failed: %v", err)
		rep.Aborted = true
		return rep
	case resp.OK():
		out.Println("   Success.")
	case resp.AlreadyExists():
		out.Println("   User already exists.")
	default:
		out.Printf("   Failed: %d - %s", resp.StatusCode, resp.Body)
		rep.Aborted = true
		return rep
	}
	rep.record("register", true)

	bearer := checkLogin(ctx, cfg, client, creds, rep, out)
	checkWrongPassword(ctx, cfg, client, rep, out)

	if cfg.API.MePath != "" {
		checkMe(ctx, cfg, client, bearer, rep, out)
	}

	slog.Debug("auth check finished", "checks", len(rep.Checks), "passed", rep.Passed())
	return rep
}

func checkLogin(ctx context.Context, cfg *config.Config, client API, creds api.Credentials, rep *AuthReport, out *report.Transcript) string {
	out.Println("2. Logging in (Correct Credentials)...")
	resp, err := client.Login(ctx, creds)
	if err != nil {
		out.Printf("   Failed: %v", err)
		rep.record("login", false)
		return ""
	}
	if !resp.OK() {
		out.Printf("   Failed: %d - %s", resp.StatusCode, resp.Body)
		rep.record("login", false)
		return ""
	}

	login, err := api.DecodeLogin(resp.Body)
	if err != nil {
		out.Printf("   Failed: %v", err)
		rep.record("login", false)
		return ""
	}
	out.Printf("   Success. Token: %s", token.Preview(login.Token))
	rep.record("login", true)

	claims, err := token.DecodeClaims(login.Token)
	if err != nil {
		out.Printf("   Claims: undecodable (%v)", err)
	} else {
		out.Printf("   Claims: %s", describeClaims(claims))
	}

	if err == nil && token.HasRole(claims, cfg.Account.ExpectedRole) {
		out.Printf("   Roles verified: %s", cfg.Account.ExpectedRole)
		rep.record("roles", true)
	} else {
		out.Println("   FAILED: Roles missing or incorrect.")
		rep.record("roles", false)
	}
	return login.Token
}

func checkWrongPassword(ctx context.Context, cfg *config.Config, client API, rep *AuthReport, out *report.Transcript) {
	out.Println("3. Logging in (Incorrect Credentials)...")
	wrong := api.Credentials{Username: cfg.Account.Username, Password: cfg.Account.WrongPassword}
	resp, err := client.Login(ctx, wrong)
	switch {
	case err != nil:
		out.Printf("   Failed: %v", err)
		rep.record("wrong password", false)
	case resp.StatusCode == http.StatusUnauthorized:
		out.Println("   Success: Got 401 as expected.")
		rep.record("wrong password", true)
	default:
		out.Printf("   Failed: Expected 401, got %d - %s", resp.StatusCode, resp.Body)
		rep.record("wrong password", false)
	}
}

func checkMe(ctx context.Context, cfg *config.Config, client API, bearer string, rep *AuthReport, out *report.Transcript) {
	out.Println("4. Fetching Current User...")
	if bearer == "" {
		out.Println("   Skipped: no token from login.")
		rep.record("me", false)
		return
	}

	resp, err := client.Me(ctx, bearer)
	if err != nil {
		out.Printf("   Failed: %v", err)
		rep.record("me", false)
		return
	}
	if !resp.OK() {
		out.Printf("   Failed: %d - %s", resp.StatusCode, resp.Body)
		rep.record("me", false)
		return
	}

	user, err := api.DecodeUser(resp.Body)
	switch {
	case err != nil:
		out.Printf("   Failed: %v", err)
		rep.record("me", false)
	case user.Username != cfg.Account.Username:
		out.Printf("   Failed: Expected username %s, got %q", cfg.Account.Username, user.Username)
		rep.record("me", false)
	default:
		out.Printf("   Success. Username: %s", user.Username)
		rep.record("me", true)
	}
}

func describeClaims(claims jwt.MapClaims) string {
	encoded, err := json.Marshal(claims)
	if err != nil {
		return fmt.Sprintf("%v", claims)
	}
	return string(encoded)
}
