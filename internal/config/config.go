// Package config loads verifier settings from per-tool defaults, an
// optional YAML file, an optional .env file and VERIFY_* environment
// variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "VERIFY_"

// DefaultEnvFile is the dotenv file read when present.
const DefaultEnvFile = ".env"

const defaultTimeout = 30 * time.Second

// Tool selects which tool's built-in defaults seed the configuration.
type Tool string

const (
	ToolSendMail  Tool = "send-test-email"
	ToolAuthCheck Tool = "verify-auth"
	ToolE2E       Tool = "verify-e2e"
)

// Config holds the complete configuration of one tool run.
type Config struct {
	// Provider selects the delivery backend: smtp, ses or stdout.
	Provider string `yaml:"provider" env:"PROVIDER"`

	SMTP    SMTPConfig    `yaml:"smtp" envPrefix:"SMTP_"`
	SES     SESConfig     `yaml:"ses" envPrefix:"SES_"`
	API     APIConfig     `yaml:"api" envPrefix:"API_"`
	Account AccountConfig `yaml:"account" envPrefix:"ACCOUNT_"`
	Message MessageConfig `yaml:"message" envPrefix:"MESSAGE_"`
	Inbox   InboxConfig   `yaml:"inbox" envPrefix:"INBOX_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`

	// Strict makes a failed check exit non-zero.
	Strict bool `yaml:"strict" env:"STRICT"`
}

// SMTPConfig holds the SMTP client settings.
type SMTPConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	HeloName string `yaml:"helo_name" env:"HELO_NAME"`

	// StartTLS is one of none, opportunistic or required.
	StartTLS           string `yaml:"starttls" env:"STARTTLS"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" env:"INSECURE_SKIP_VERIFY"`
	CAFile             string `yaml:"ca_file" env:"CA_FILE"`

	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`

	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Debug   bool          `yaml:"debug" env:"DEBUG"`
}

// SESConfig holds the AWS SES relay settings.
type SESConfig struct {
	Region          string `yaml:"region" env:"REGION"`
	AccessKeyID     string `yaml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY"`
	Sender          string `yaml:"sender" env:"SENDER"`
}

// APIConfig holds the HTTP API location and endpoint paths.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url" env:"BASE_URL"`
	RegisterPath string        `yaml:"register_path" env:"REGISTER_PATH"`
	LoginPath    string        `yaml:"login_path" env:"LOGIN_PATH"`
	MePath       string        `yaml:"me_path" env:"ME_PATH"`
	EmailsPath   string        `yaml:"emails_path" env:"EMAILS_PATH"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// AccountConfig holds the test account used against the auth API.
type AccountConfig struct {
	Username      string `yaml:"username" env:"USERNAME"`
	Password      string `yaml:"password" env:"PASSWORD"`
	WrongPassword string `yaml:"wrong_password" env:"WRONG_PASSWORD"`
	ExpectedRole  string `yaml:"expected_role" env:"EXPECTED_ROLE"`
}

// MessageConfig holds the probe message literals.
type MessageConfig struct {
	From    string   `yaml:"from" env:"FROM"`
	To      []string `yaml:"to" env:"TO" envSeparator:","`
	Subject string   `yaml:"subject" env:"SUBJECT"`
	Body    string   `yaml:"body" env:"BODY"`

	// Format is plain or alternative.
	Format string `yaml:"format" env:"FORMAT"`
}

// InboxConfig bounds the inbox poll after delivery.
type InboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig holds diagnostics and transcript settings.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`

	// File is the transcript file. Empty disables the file sink.
	File string `yaml:"file" env:"FILE"`
}

// Options controls where Load looks for overrides.
type Options struct {
	// ConfigFile is an optional YAML file. A missing file is an error.
	ConfigFile string

	// EnvFile is an optional dotenv file. A missing file is ignored.
	// Defaults to DefaultEnvFile.
	EnvFile string
}

// Load builds the configuration for tool and validates it.
func Load(tool Tool, opts Options) (*Config, error) {
	cfg, err := Defaults(tool)
	if err != nil {
		return nil, err
	}

	if opts.ConfigFile != "" {
		data, err := os.ReadFile(opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	// Environment variables always override file values.
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration of tool.
func Defaults(tool Tool) (*Config, error) {
	cfg := &Config{
		Provider: "smtp",
		SMTP: SMTPConfig{
			Host:     "localhost",
			Port:     25000,
			HeloName: "localhost",
			StartTLS: "none",
			Timeout:  defaultTimeout,
		},
		API: APIConfig{
			BaseURL: "http://localhost:8095/api",
			Timeout: defaultTimeout,
		},
		Inbox: InboxConfig{
			PollInterval: 200 * time.Millisecond,
			Timeout:      5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}

	switch tool {
	case ToolSendMail:
		cfg.SMTP.Debug = true
		cfg.Message = MessageConfig{
			From:    "test@example.com",
			To:      []string{"recipient@example.com"},
			Subject: "Test Email from SMTP Service",
			Body:    "Hi,\nThis is a test email sent from your self-hosted SMTP server.\n",
			Format:  "alternative",
		}

	case ToolAuthCheck:
		cfg.API.RegisterPath = "/register"
		cfg.API.LoginPath = "/login"
		cfg.API.MePath = "/me"
		cfg.Account = AccountConfig{
			Username:      "auth_test@example.com",
			Password:      "password123",
			WrongPassword: "wrongpassword",
			ExpectedRole:  "USER",
		}

	case ToolE2E:
		cfg.SMTP.StartTLS = "opportunistic"
		cfg.SMTP.InsecureSkipVerify = true
		cfg.API.RegisterPath = "/auth/register"
		cfg.API.LoginPath = "/auth/login"
		cfg.API.EmailsPath = "/emails"
		cfg.Account = AccountConfig{
			Username:     "e2e@example.com",
			Password:     "password123",
			ExpectedRole: "USER",
		}
		cfg.Message = MessageConfig{
			From:    "sender@example.com",
			To:      []string{"e2e@example.com"},
			Subject: "E2E Test Email",
			Body:    "This is a test email sent during end-to-end verification.",
			Format:  "plain",
		}
		cfg.Log.File = "e2e_test.log"

	default:
		return nil, fmt.Errorf("unknown tool %q", tool)
	}

	return cfg, nil
}

// AuthEnabled returns true if both SMTP username and password are set.
func (c *Config) AuthEnabled() bool {
	return c.SMTP.Username != "" && c.SMTP.Password != ""
}

// Validate checks value ranges and the fields the selected provider needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case "smtp":
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("smtp.host must not be empty"))
		}
		if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
			errs = append(errs, fmt.Errorf("smtp.port %d out of range", c.SMTP.Port))
		}
	case "ses", "stdout":
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}

	switch c.SMTP.StartTLS {
	case "none", "opportunistic", "required":
	default:
		errs = append(errs, fmt.Errorf("unknown smtp.starttls mode %q", c.SMTP.StartTLS))
	}

	if c.Message.Subject != "" || c.Message.Body != "" {
		if c.Message.From == "" {
			errs = append(errs, errors.New("message.from must not be empty"))
		}
		if len(c.Message.To) == 0 {
			errs = append(errs, errors.New("message.to must not be empty"))
		}
		switch c.Message.Format {
		case "plain", "alternative":
		default:
			errs = append(errs, fmt.Errorf("unknown message.format %q", c.Message.Format))
		}
	}

	if c.API.RegisterPath != "" && c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url must not be empty"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}

	if c.Inbox.PollInterval <= 0 || c.Inbox.Timeout <= 0 {
		errs = append(errs, errors.New("inbox.poll_interval and inbox.timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
