// Package ses implements a Provider that relays probe messages via AWS SES v2.
package ses

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/smtp-verify-lite/internal/email"
)

// Config holds the configuration for creating an SES Provider.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// Sender overrides the message From as the SES source identity.
	Sender string
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Provider sends the composed RFC 5322 message through SES so it reaches
// the server under test over public MX.
type Provider struct {
	sender string
	client SendEmailAPI
}

// New creates an SES Provider, loading AWS config from the environment
// unless static credentials are given.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(cfg.Sender, sesv2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates an SES Provider with a custom client, used for testing.
func NewWithClient(sender string, client SendEmailAPI) *Provider {
	return &Provider{sender: sender, client: client}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "ses"
}

// Send submits msg as a raw message. Failures are returned as-is without
// retrying.
func (p *Provider) Send(ctx context.Context, msg *email.Email) error {
	sender := p.sender
	if sender == "" {
		sender = msg.From
	}

	raw, err := msg.Compose()
	if err != nil {
		return fmt.Errorf("failed to compose message: %w", err)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(sender),
		Destination: &types.Destination{
			ToAddresses: msg.To,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	}

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("SES SendEmail failed: %w", err)
	}

	slog.Debug("message relayed via SES",
		"ses_message_id", aws.ToString(out.MessageId),
		"message_id", msg.MessageID,
	)
	return nil
}
