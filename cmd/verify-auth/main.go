// Command verify-auth runs the register and login smoke test against the
// auth API.
package main

import (
	"context"
	"os"

	"github.com/shineum/smtp-verify-lite/internal/api"
	"github.com/shineum/smtp-verify-lite/internal/cli"
	"github.com/shineum/smtp-verify-lite/internal/config"
	"github.com/shineum/smtp-verify-lite/internal/report"
	"github.com/shineum/smtp-verify-lite/internal/verify"
)

func main() {
	cmd := cli.NewRootCommand(config.ToolAuthCheck, "Smoke test the auth API", run)
	os.Exit(cli.Execute(cmd))
}

func run(ctx context.Context, cfg *config.Config) (bool, error) {
	out, err := report.New(report.Options{Console: os.Stdout, File: cfg.Log.File})
	if err != nil {
		return false, err
	}
	defer func() { _ = out.Sync() }()

	rep := verify.AuthCheck(ctx, cfg, api.FromConfig(cfg.API), out)
	return rep.Passed(), nil
}
