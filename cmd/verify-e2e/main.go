// Command verify-e2e registers a user, mails it through SMTP and confirms
// the message shows up in its inbox through the API.
package main

import (
	"context"
	"os"

	"github.com/shineum/smtp-verify-lite/internal/api"
	"github.com/shineum/smtp-verify-lite/internal/cli"
	"github.com/shineum/smtp-verify-lite/internal/config"
	"github.com/shineum/smtp-verify-lite/internal/provider"
	"github.com/shineum/smtp-verify-lite/internal/report"
	"github.com/shineum/smtp-verify-lite/internal/verify"
)

func main() {
	cmd := cli.NewRootCommand(config.ToolE2E, "Verify SMTP delivery end to end through the inbox API", run)
	os.Exit(cli.Execute(cmd))
}

func run(ctx context.Context, cfg *config.Config) (bool, error) {
	out, err := report.New(report.Options{
		Console:    os.Stdout,
		File:       cfg.Log.File,
		Header:     "Starting E2E Test",
		Timestamps: true,
	})
	if err != nil {
		return false, err
	}
	defer func() { _ = out.Sync() }()

	sender, err := provider.Select(ctx, cfg, provider.Hooks{Progress: out.Println, Debug: os.Stderr})
	if err != nil {
		return false, err
	}

	res := verify.E2E(ctx, cfg, api.FromConfig(cfg.API), sender, out)
	return res.Passed(), nil
}
