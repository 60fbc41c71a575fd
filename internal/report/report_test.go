package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

func (c fixedClock) NewTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }

var testClock = fixedClock{t: time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)}

func TestTranscript_PlainLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr, err := New(Options{Console: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.Println("--- Testing Auth Service ---")
	tr.Printf("   Failed: %d - %s", 500, "boom")

	want := "--- Testing Auth Service ---\n   Failed: 500 - boom\n"
	if got := buf.String(); got != want {
		t.Errorf("console: got %q, want %q", got, want)
	}
}

func TestTranscript_Timestamps(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr, err := New(Options{Console: &buf, Timestamps: true, Clock: testClock})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.Println("1. Registering User...")

	want := "[2026-03-14 09:26:53] 1. Registering User...\n"
	if got := buf.String(); got != want {
		t.Errorf("console: got %q, want %q", got, want)
	}
}

func TestTranscript_FileTruncatedWithHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "e2e_test.log")
	if err := os.WriteFile(path, []byte("stale line from a previous run\n"), 0644); err != nil {
		t.Fatalf("failed to seed log file: %v", err)
	}

	var buf bytes.Buffer
	tr, err := New(Options{
		Console:    &buf,
		File:       path,
		Header:     "Starting E2E Test",
		Timestamps: true,
		Clock:      testClock,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.Println("2. Logging In...")
	tr.Println("   Login successful. Token obtained.")
	if err := tr.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	got := string(data)
	want := "Starting E2E Test\n" +
		"[2026-03-14 09:26:53] 2. Logging In...\n" +
		"[2026-03-14 09:26:53]    Login successful. Token obtained.\n"
	if got != want {
		t.Errorf("file: got %q, want %q", got, want)
	}

	if strings.Contains(buf.String(), "Starting E2E Test") {
		t.Error("header should only be written to the file")
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("console: got %q, want 2 lines", buf.String())
	}
}

func TestTranscript_FileWithoutHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.log")
	tr, err := New(Options{Console: &bytes.Buffer{}, File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr.Println("only line")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if string(data) != "only line\n" {
		t.Errorf("file: got %q, want %q", string(data), "only line\n")
	}
}

func TestTranscript_UnwritableFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing-dir", "run.log")
	if _, err := New(Options{File: path}); err == nil {
		t.Fatal("expected error for unwritable log file")
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	tr := Discard()
	tr.Println("dropped")
	tr.Printf("dropped %d", 1)
}
