// Command send-test-email sends a single probe message through the
// configured delivery provider.
package main

import (
	"context"
	"os"

	"github.com/shineum/smtp-verify-lite/internal/cli"
	"github.com/shineum/smtp-verify-lite/internal/config"
	"github.com/shineum/smtp-verify-lite/internal/provider"
	"github.com/shineum/smtp-verify-lite/internal/report"
	"github.com/shineum/smtp-verify-lite/internal/verify"
)

func main() {
	cmd := cli.NewRootCommand(config.ToolSendMail, "Send one test email to the SMTP server", run)
	os.Exit(cli.Execute(cmd))
}

func run(ctx context.Context, cfg *config.Config) (bool, error) {
	out, err := report.New(report.Options{Console: os.Stdout, File: cfg.Log.File})
	if err != nil {
		return false, err
	}
	defer func() { _ = out.Sync() }()

	// The wire trace goes to stderr so stdout stays a clean transcript.
	sender, err := provider.Select(ctx, cfg, provider.Hooks{Progress: out.Println, Debug: os.Stderr})
	if err != nil {
		return false, err
	}
	return verify.SendTestEmail(ctx, cfg, sender, out), nil
}
