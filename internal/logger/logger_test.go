package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}

func TestNewWithOptions(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantLevel zerolog.Level
		wantErr   bool
	}{
		{name: "defaults", opts: Options{}, wantLevel: zerolog.InfoLevel},
		{name: "debug json", opts: Options{Level: "debug", Format: "json"}, wantLevel: zerolog.DebugLevel},
		{name: "warn console", opts: Options{Level: "warn", Format: "console"}, wantLevel: zerolog.WarnLevel},
		{name: "bad level", opts: Options{Level: "loud"}, wantErr: true},
		{name: "bad format", opts: Options{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Out = &bytes.Buffer{}
			log, err := NewWithOptions(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewWithOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && log.GetLevel() != tt.wantLevel {
				t.Errorf("Level = %s, want %s", log.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestNewWithOptions_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := NewWithOptions(Options{Format: "json", Out: buf})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}

	log.Info().Str("group_id", "g-1").Msg("posted")
	log.Debug().Msg("hidden")

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.Split(strings.TrimSpace(buf.String()), "\n")[0]), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "posted" || entry["group_id"] != "g-1" {
		t.Errorf("Unexpected entry %v", entry)
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Error("Debug entry should be filtered at info level")
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	ctx := WithContext(context.Background(), New())

	if ctx.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"user_id": "123",
		"action":  "transfer",
	})
	log.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"user_id":"123"`) {
		t.Errorf("Expected output to contain user_id field, got: %s", output)
	}
	if !strings.Contains(output, `"action":"transfer"`) {
		t.Errorf("Expected output to contain action field, got: %s", output)
	}
}
