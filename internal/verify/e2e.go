package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/shineum/smtp-verify-lite/internal/api"
	"github.com/shineum/smtp-verify-lite/internal/config"
	"github.com/shineum/smtp-verify-lite/internal/provider"
	"github.com/shineum/smtp-verify-lite/internal/report"
)

// State is a stage of the end-to-end run.
type State string

const (
	StateStart      State = "START"
	StateRegistered State = "REGISTERED"
	StateLoggedIn   State = "LOGGED_IN"
	StateEmailSent  State = "EMAIL_SENT"
	StateVerified   State = "VERIFIED"
	StateAborted    State = "ABORTED"
)

// Step names the operation a failed run stopped at.
type Step string

const (
	StepRegister Step = "register"
	StepLogin    Step = "login"
	StepSend     Step = "send"
	StepInbox    Step = "inbox"
)

// ErrNotDelivered is returned when the inbox never showed the probe
// message within the poll timeout.
var ErrNotDelivered = errors.New("test email not found in inbox")

// Result is the outcome of an E2E run. Step and Err are set only when
// State is StateAborted.
type Result struct {
	State State
	Step  Step
	Err   error
}

// Passed reports whether the probe message was found in the inbox.
func (r Result) Passed() bool {
	return r.State == StateVerified
}

// e2eRun carries the state of a single E2E invocation.
type e2eRun struct {
	cfg    *config.Config
	client API
	sender provider.Provider
	out    *report.Transcript
	state  State
}

// E2E registers and logs in the test account, delivers the probe message
// and polls the inbox for it. The first failure aborts the run.
func E2E(ctx context.Context, cfg *config.Config, client API, sender provider.Provider, out *report.Transcript) Result {
	r := &e2eRun{cfg: cfg, client: client, sender: sender, out: out, state: StateStart}

	if err := r.register(ctx); err != nil {
		return r.abort(StepRegister, err)
	}
	r.advance(StateRegistered)

	bearer, err := r.login(ctx)
	if err != nil {
		return r.abort(StepLogin, err)
	}
	r.advance(StateLoggedIn)

	if err := r.send(ctx); err != nil {
		return r.abort(StepSend, err)
	}
	r.advance(StateEmailSent)

	if err := r.checkInbox(ctx, bearer); err != nil {
		return r.abort(StepInbox, err)
	}
	r.advance(StateVerified)

	return Result{State: r.state}
}

func (r *e2eRun) advance(next State) {
	slog.Debug("e2e state transition", "from", r.state, "to", next)
	r.state = next
}

func (r *e2eRun) abort(step Step, err error) Result {
	slog.Debug("e2e run aborted", "state", r.state, "step", step, "error", err)
	r.state = StateAborted
	return Result{State: StateAborted, Step: step, Err: err}
}

func (r *e2eRun) credentials() api.Credentials {
	return api.Credentials{Username: r.cfg.Account.Username, Password: r.cfg.Account.Password}
}

func (r *e2eRun) register(ctx context.Context) error {
	r.out.Println("1. Registering User...")
	resp, err := r.client.Register(ctx, r.credentials())
	if err != nil {
		r.out.Printf("API Request Error: %v", err)
		r.out.Println("   Registration failed.")
		return err
	}
	switch {
	case resp.OK():
		r.out.Println("   Registration successful.")
	case resp.AlreadyExists():
		r.out.Println("   User already exists, proceeding.")
	default:
		r.out.Printf("   Registration failed: %d - %s", resp.StatusCode, resp.Body)
		return resp.Err()
	}
	return nil
}

func (r *e2eRun) login(ctx context.Context) (string, error) {
	r.out.Println("2. Logging In...")
	resp, err := r.client.Login(ctx, r.credentials())
	if err != nil {
		r.out.Printf("API Request Error: %v", err)
		r.out.Println("   Login failed.")
		return "", err
	}
	if !resp.OK() {
		r.out.Printf("   Login failed: %d - %s", resp.StatusCode, resp.Body)
		return "", resp.Err()
	}

	login, err := api.DecodeLogin(resp.Body)
	if err != nil {
		r.out.Printf("   Login failed: %v", err)
		return "", err
	}
	r.out.Println("   Login successful. Token obtained.")
	return login.Token, nil
}

func (r *e2eRun) send(ctx context.Context) error {
	r.out.Println("3. Sending Email via SMTP...")
	r.out.Println("Sending email via SMTP...")
	if err := r.sender.Send(ctx, ProbeMessage(r.cfg.Message)); err != nil {
		r.out.Printf("SMTP Error: %v", err)
		r.out.Println("   Failed to send email.")
		return err
	}
	r.out.Println("SMTP: Email sent successfully.")
	return nil
}

func (r *e2eRun) checkInbox(ctx context.Context, bearer string) error {
	msg := r.cfg.Message
	if len(msg.To) == 0 {
		err := errors.New("no recipient to query")
		r.out.Printf("   Failed to check inbox: %v", err)
		return err
	}
	recipient := msg.To[0]

	r.out.Printf("   Waiting up to %s for persistence...", r.cfg.Inbox.Timeout)
	r.out.Println("4. Checking Inbox via API...")

	var (
		last  []api.InboxEntry
		polls int
	)
	err := wait.PollUntilContextTimeout(ctx, r.cfg.Inbox.PollInterval, r.cfg.Inbox.Timeout, true,
		func(ctx context.Context) (bool, error) {
			polls++
			resp, err := r.client.ListEmails(ctx, bearer, recipient)
			if err != nil {
				return false, fmt.Errorf("API request error: %w", err)
			}
			if !resp.OK() {
				return false, resp.Err()
			}
			entries, err := api.DecodeInbox(resp.Body)
			if err != nil {
				return false, err
			}
			last = entries
			return api.FindMessage(entries, msg.Subject, msg.Body) >= 0, nil
		})

	slog.Debug("inbox poll finished", "polls", polls, "error", err)

	var statusErr *api.StatusError
	switch {
	case err == nil:
		r.out.Printf("   Emails received: %d", len(last))
		r.out.Println("   SUCCESS: Test email found in inbox!")
		return nil

	case errors.As(err, &statusErr):
		r.out.Printf("   Failed to fetch emails: %d - %s", statusErr.StatusCode, statusErr.Body)
		return err

	case ctx.Err() != nil:
		r.out.Printf("   Interrupted while checking inbox: %v", ctx.Err())
		return ctx.Err()

	case wait.Interrupted(err):
		r.out.Printf("   Emails received: %d", len(last))
		r.out.Println("   FAILURE: Test email NOT found in inbox.")
		r.out.Printf("   Emails: %s", describeInbox(last))
		return ErrNotDelivered

	default:
		r.out.Printf("   Failed to fetch emails: %v", err)
		return err
	}
}

func describeInbox(entries []api.InboxEntry) string {
	if entries == nil {
		entries = []api.InboxEntry{}
	}
	encoded, err := json.Marshal(entries)
	if err != nil {
		return fmt.Sprintf("%v", entries)
	}
	return string(encoded)
}
