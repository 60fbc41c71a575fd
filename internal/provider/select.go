package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shineum/smtp-verify-lite/internal/config"
	"github.com/shineum/smtp-verify-lite/internal/provider/ses"
	"github.com/shineum/smtp-verify-lite/internal/provider/smtp"
	"github.com/shineum/smtp-verify-lite/internal/provider/stdout"
	smtptls "github.com/shineum/smtp-verify-lite/internal/tls"
)

// Hooks carries the optional outputs a provider may report to.
type Hooks struct {
	// Progress receives transcript-worthy milestones.
	Progress func(string)

	// Debug receives the SMTP wire trace when smtp.debug is on.
	Debug io.Writer
}

// Select builds the delivery backend named by cfg.Provider.
func Select(ctx context.Context, cfg *config.Config, hooks Hooks) (Provider, error) {
	switch cfg.Provider {
	case "smtp", "":
		mode, err := smtp.ParseStartTLSMode(cfg.SMTP.StartTLS)
		if err != nil {
			return nil, err
		}

		smtpCfg := smtp.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			HeloName: cfg.SMTP.HeloName,
			StartTLS: mode,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			Timeout:  cfg.SMTP.Timeout,
			Progress: hooks.Progress,
		}
		if cfg.SMTP.Debug {
			smtpCfg.Debug = hooks.Debug
		}
		if mode != smtp.StartTLSNone {
			tlsConfig, err := smtptls.ClientConfig(smtptls.ClientOptions{
				ServerName:         cfg.SMTP.Host,
				InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
				CAFile:             cfg.SMTP.CAFile,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to build STARTTLS config: %w", err)
			}
			smtpCfg.TLSConfig = tlsConfig
		}

		slog.Debug("using SMTP provider",
			"host", cfg.SMTP.Host,
			"port", cfg.SMTP.Port,
			"starttls", mode,
			"auth_enabled", cfg.AuthEnabled(),
		)
		return smtp.New(smtpCfg), nil

	case "ses":
		slog.Debug("using AWS SES provider",
			"region", cfg.SES.Region,
			"sender", cfg.SES.Sender,
		)
		p, err := ses.New(ctx, ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES provider: %w", err)
		}
		return p, nil

	case "stdout":
		slog.Debug("using stdout provider")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
