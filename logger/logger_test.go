package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{name: "production uses json", environment: "production", wantJSON: true},
		{name: "development uses pretty", environment: "development"},
		{name: "empty uses pretty", environment: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf})
			l.Info("test")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"test"`)
			} else {
				assert.Contains(t, buf.String(), "INF test")
			}
		})
	}
}

func TestPrettyHandler_NoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Writer: &buf, Format: FormatPretty, Level: slog.LevelDebug})

	l.WithComponent("cart").WithError(errors.New("disk full")).Debug("persist cart", "items", 3)

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "DBG persist cart")
	assert.Contains(t, out, "component=cart")
	assert.Contains(t, out, `error="disk full"`)
	assert.Contains(t, out, "items=3")
}

func TestPrettyHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewPrettyHandler(&buf, nil, false))
	l.WithGroup("http").Info("request", "status", 200)
	assert.Contains(t, buf.String(), "http.status=200")
}

func TestPrettyHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Writer: &buf, Format: FormatPretty, Level: slog.LevelWarn})
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "WRN shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
