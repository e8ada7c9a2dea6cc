package logging

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		verbose int
		want    slog.Level
		wantErr bool
	}{
		{"", 0, slog.LevelInfo, false},
		{"", 1, slog.LevelDebug, false},
		{"", 3, LevelTrace, false},
		{"trace", 0, LevelTrace, false},
		{"WARN", 2, slog.LevelWarn, false},
		{"error", 0, slog.LevelError, false},
		{"loud", 0, slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.name, tt.verbose)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q, %d) error = %v, wantErr %v", tt.name, tt.verbose, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q, %d) = %v, want %v", tt.name, tt.verbose, got, tt.want)
		}
	}
}

func TestCompactHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.With("component", "scanner").Info("scan complete", "files", 3, "root", "/my dir")

	line := buf.String()
	if !strings.HasPrefix(line, "[INFO]  ") {
		t.Errorf("Expected [INFO] prefix, got %q", line)
	}
	if !strings.Contains(line, "scanner: scan complete | files=3 root=\"/my dir\"") {
		t.Errorf("Unexpected line format: %q", line)
	}
}

func TestCompactHandler_LevelFilteringAndTrace(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: lvl}))

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Debug should be filtered at info level, got %q", buf.String())
	}

	lvl.Set(LevelTrace)
	logger.Log(context.Background(), LevelTrace, "excluded", "path", "a/b")
	if !strings.HasPrefix(buf.String(), "[TRACE] ") {
		t.Errorf("Expected [TRACE] prefix, got %q", buf.String())
	}
}

func TestCompactHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, nil))

	logger.With("root", "/w").WithGroup("scan").Info("done", "files", 2)

	if !strings.Contains(buf.String(), "| root=/w scan.files=2") {
		t.Errorf("Unexpected attrs: %q", buf.String())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/scan", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "fixed-id" {
		t.Errorf("Expected request ID from header, got %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != "fixed-id" {
		t.Errorf("Expected response header to echo request ID, got %q", rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rec.Header().Get(RequestIDHeader)) != 36 {
		t.Errorf("Expected generated UUID, got %q", rec.Header().Get(RequestIDHeader))
	}
}

func TestSetOutput_SwitchesDestinationAndFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, true)
	defer SetOutput(os.Stderr, false)

	Info("scan complete", "files", 3)

	if !strings.Contains(buf.String(), `"msg":"scan complete"`) || !strings.Contains(buf.String(), `"files":3`) {
		t.Errorf("Expected JSON log line in buffer, got %q", buf.String())
	}

	buf.Reset()
	SetOutput(&buf, false)
	Info("compact line")
	if !strings.Contains(buf.String(), "compact line") || strings.HasPrefix(buf.String(), "{") {
		t.Errorf("Expected compact log line, got %q", buf.String())
	}
}
