package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func testSettings(transport string) *Settings {
	return &Settings{
		Transport:  transport,
		Host:       "localhost",
		Port:       8080,
		DataDir:    "/var/lib/docchat",
		Auth:       AuthSettings{Type: AuthTypeNone},
		Processing: ProcessingSettings{Workers: 2, QueueSize: 64},
		Chunking:   ChunkingSettings{MaxSize: 6000, Overlap: 200},
		OCR:        OCRSettings{Enabled: true, DPI: 150, Languages: "ita+eng", MaxPages: 50},
	}
}

func TestLog(t *testing.T) {
	// Just verify it doesn't panic
	Log(testSettings(TransportHTTP))
}

func TestLogWithLogger_StdioTransport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	LogWithLogger(testSettings(TransportStdio), logger)

	output := buf.String()
	if !strings.Contains(output, "transport") {
		t.Error("Expected 'transport' in log output")
	}
	// stdio transport should not log host/port
	if strings.Contains(output, "host") {
		t.Error("Expected no 'host' in log output for stdio transport")
	}
	if !strings.Contains(output, "/var/lib/docchat") {
		t.Error("Expected data dir in log output")
	}
}

func TestLogWithLogger_HTTPTransport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	LogWithLogger(testSettings(TransportHTTP), logger)

	output := buf.String()
	for _, want := range []string{"transport", "host", "port", "workers=2", "max_size=6000", "languages=ita+eng"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in log output, got: %s", want, output)
		}
	}
}

func TestLogWithLogger_OCRDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := testSettings(TransportHTTP)
	s.OCR.Enabled = false
	LogWithLogger(s, logger)

	if strings.Contains(buf.String(), "languages") {
		t.Error("Expected OCR details to be skipped when OCR is disabled")
	}
}

func TestLogWithLogger_BasicAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := testSettings(TransportHTTP)
	s.Auth = AuthSettings{
		Type:  AuthTypeBasic,
		Basic: BasicAuthSettings{Username: "admin", Password: "secret"},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if !strings.Contains(output, "admin") {
		t.Error("Expected username in log output")
	}
	if !strings.Contains(output, "****") {
		t.Error("Expected masked password in log output")
	}
	if strings.Contains(output, "secret") {
		t.Error("Password should be masked, not shown in plain text")
	}
}

func TestLogWithLogger_APIKeyAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := testSettings(TransportSSE)
	s.Auth = AuthSettings{Type: AuthTypeAPIKey, APIKeys: []string{"key1", "key2", "key3"}}

	LogWithLogger(s, logger)

	output := buf.String()
	if !strings.Contains(output, "count=3") {
		t.Errorf("Expected 'count=3' in log output, got: %s", output)
	}
	if strings.Contains(output, "key1") {
		t.Error("API keys should not be logged")
	}
}

func TestSettingsLogValue(t *testing.T) {
	s := *testSettings(TransportSSE)
	s.Auth = AuthSettings{Type: AuthTypeAPIKey, APIKeys: []string{"key1"}}

	val := SettingsLogValue(s)
	if val.Kind() != slog.KindGroup {
		t.Errorf("Expected group kind, got %v", val.Kind())
	}

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("settings", "s", val)
	if strings.Contains(buf.String(), "key1") {
		t.Errorf("API key leaked into log output: %s", buf.String())
	}
}

func TestAuthSettingsLogValue(t *testing.T) {
	s := AuthSettings{
		Type:    AuthTypeAPIKey,
		APIKeys: []string{"key1", "key2"},
		Basic: BasicAuthSettings{
			Username: "user",
			Password: "pass",
		},
	}

	val := AuthSettingsLogValue(s)
	if val.Kind() != slog.KindGroup {
		t.Errorf("Expected group kind, got %v", val.Kind())
	}
}

func TestBasicAuthSettingsLogValue(t *testing.T) {
	s := BasicAuthSettings{
		Username: "admin",
		Password: "secret",
	}

	val := BasicAuthSettingsLogValue(s)
	if val.Kind() != slog.KindGroup {
		t.Errorf("Expected group kind, got %v", val.Kind())
	}
}
