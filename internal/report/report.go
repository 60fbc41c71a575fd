// Package report writes the human-readable run transcript of a verify
// tool to the console and, optionally, to a log file.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeLayout is the transcript timestamp layout.
const TimeLayout = "2006-01-02 15:04:05"

// Options configures a Transcript.
type Options struct {
	// Console receives every line. Defaults to os.Stdout.
	Console io.Writer

	// File, when set, receives every line too. It is truncated by New and
	// reopened in append mode for each line.
	File string

	// Header is written as the first line of a freshly truncated File.
	Header string

	// Timestamps prefixes each line with "[YYYY-MM-DD HH:MM:SS] ".
	Timestamps bool

	// Clock overrides the time source.
	Clock zapcore.Clock
}

// Transcript is a line-oriented step log.
type Transcript struct {
	logger *zap.Logger
}

// New creates a Transcript, resetting the log file when one is configured.
func New(opts Options) (*Transcript, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig(opts.Timestamps))
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(console)), zapcore.DebugLevel),
	}

	if opts.File != "" {
		header := ""
		if opts.Header != "" {
			header = opts.Header + "\n"
		}
		if err := os.WriteFile(opts.File, []byte(header), 0644); err != nil {
			return nil, fmt.Errorf("failed to reset log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), appendFile{path: opts.File}, zapcore.DebugLevel))
	}

	zopts := []zap.Option{}
	if opts.Clock != nil {
		zopts = append(zopts, zap.WithClock(opts.Clock))
	}

	return &Transcript{logger: zap.New(zapcore.NewTee(cores...), zopts...)}, nil
}

// Discard returns a Transcript that drops every line.
func Discard() *Transcript {
	return &Transcript{logger: zap.NewNop()}
}

// Printf writes one formatted line.
func (t *Transcript) Printf(format string, args ...any) {
	t.logger.Info(fmt.Sprintf(format, args...))
}

// Println writes msg as one line.
func (t *Transcript) Println(msg string) {
	t.logger.Info(msg)
}

// Sync flushes buffered output.
func (t *Transcript) Sync() error {
	return t.logger.Sync()
}

func encoderConfig(timestamps bool) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		ConsoleSeparator: " ",
	}
	if timestamps {
		cfg.TimeKey = "ts"
		cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + t.Format(TimeLayout) + "]")
		}
	}
	return cfg
}

// appendFile opens, appends to, and closes the file on every write so the
// transcript survives an abrupt exit.
type appendFile struct {
	path string
}

func (f appendFile) Write(p []byte) (int, error) {
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}
	n, err := file.Write(p)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func (appendFile) Sync() error {
	return nil
}
