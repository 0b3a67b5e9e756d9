package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithNegotiationID(ctx, "neg-1")

	log.Error(ctx, "boom", errors.New("boom"))

	for _, field := range []string{`"request_id":"req-123"`, `"negotiation_id":"neg-1"`, `"stack"`, `"service":"test"`} {
		if !bytes.Contains(buf.Bytes(), []byte(field)) {
			t.Fatalf("expected %s in entry=%s", field, buf.String())
		}
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack when warn stack enabled: %s", buf.String())
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected no stack by default: %s", buf.String())
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: buf})
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug entry to be filtered, got %s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}

func TestWithFieldsRendersStringersAndSortsKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	id := uuid.MustParse("6f1c2a9e-4b7d-4c1e-9a51-2f0e8d3b7c10")

	ctx := log.WithFields(context.Background(), map[string]any{
		"zeta":           1,
		"negotiation_id": id,
		"alpha":          "a",
	})
	log.Info(ctx, "ordered")

	out := buf.String()
	if !strings.Contains(out, `"negotiation_id":"6f1c2a9e-4b7d-4c1e-9a51-2f0e8d3b7c10"`) {
		t.Fatalf("expected uuid rendered as string: %s", out)
	}
	if strings.Index(out, `"alpha"`) > strings.Index(out, `"zeta"`) {
		t.Fatalf("expected keys in sorted order: %s", out)
	}
}

func TestNopDiscards(t *testing.T) {
	log := NewNop()
	ctx := log.WithUserID(context.Background(), "u-1")
	log.Error(ctx, "ignored", errors.New("boom"))
}

func TestSensitiveFieldsRedacted(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	ctx := log.WithFields(context.Background(), map[string]any{
		"Authorization":   "Bearer abc.def",
		"idempotency_key": "checkout-42",
		"offer_price":     "1200.00",
	})
	log.Info(ctx, "redaction")

	out := buf.String()
	for _, secret := range []string{"abc.def", "checkout-42"} {
		if strings.Contains(out, secret) {
			t.Fatalf("expected %q redacted: %s", secret, out)
		}
	}
	if !strings.Contains(out, `"offer_price":"1200.00"`) {
		t.Fatalf("expected non-sensitive field kept: %s", out)
	}
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Format: FormatConsole, Output: buf})
	log.Info(context.Background(), "hello")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected console output, got json: %s", buf.String())
	}
}
