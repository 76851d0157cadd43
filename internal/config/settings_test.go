package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// validSettings returns settings that pass ValidateSettings.
func validSettings() *Settings {
	return &Settings{
		Transport:  TransportHTTP,
		Host:       "0.0.0.0",
		Port:       8080,
		DataDir:    "/tmp/docchat",
		Auth:       AuthSettings{Type: AuthTypeNone},
		Processing: ProcessingSettings{Workers: 2, QueueSize: 64},
		Chunking:   ChunkingSettings{MaxSize: 6000, Overlap: 200},
		Extraction: ExtractionSettings{
			MinChars:    50,
			PrimaryCap:  500_000,
			LayoutCap:   400_000,
			OCRCap:      300_000,
			MaxFileSize: 100 * 1024 * 1024,
		},
		OCR: OCRSettings{
			Enabled:        true,
			DPI:            150,
			Languages:      "ita+eng",
			Timeout:        300 * time.Second,
			PageTimeout:    60 * time.Second,
			MaxPages:       50,
			LargeFilePages: 20,
			ParallelPages:  2,
		},
		Retrieval: RetrievalSettings{MaxResults: 5, ProximityWindow: 50},
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	_ = os.Unsetenv("DOCCHAT_PORT")
	_ = os.Unsetenv("DOCCHAT_AUTH_TYPE")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", settings.Port)
	}
	if settings.Auth.Type != AuthTypeNone {
		t.Errorf("Expected default auth type '%s', got '%s'", AuthTypeNone, settings.Auth.Type)
	}
	if settings.Transport != TransportHTTP {
		t.Errorf("Expected default transport 'http', got '%s'", settings.Transport)
	}
	if settings.Host != "0.0.0.0" {
		t.Errorf("Expected default host '0.0.0.0', got '%s'", settings.Host)
	}
	if !strings.HasSuffix(settings.DataDir, ".docchat") {
		t.Errorf("Expected default data dir to end with .docchat, got %s", settings.DataDir)
	}
	if settings.Processing.Workers != 2 || settings.Processing.QueueSize != 64 {
		t.Errorf("Unexpected processing defaults: %+v", settings.Processing)
	}
	if settings.Chunking.MaxSize != 6000 || settings.Chunking.Overlap != 200 {
		t.Errorf("Unexpected chunking defaults: %+v", settings.Chunking)
	}
	if settings.Extraction.MinChars != 50 || settings.Extraction.MaxFileSize != 100*1024*1024 {
		t.Errorf("Unexpected extraction defaults: %+v", settings.Extraction)
	}
	if !settings.OCR.Enabled || settings.OCR.DPI != 150 || settings.OCR.Languages != "ita+eng" {
		t.Errorf("Unexpected OCR defaults: %+v", settings.OCR)
	}
	if settings.OCR.Timeout != 300*time.Second || settings.OCR.PageTimeout != 60*time.Second {
		t.Errorf("Unexpected OCR timeouts: %v / %v", settings.OCR.Timeout, settings.OCR.PageTimeout)
	}
	if settings.OCR.LargeFileThreshold != 10*1024*1024 {
		t.Errorf("Unexpected OCR large file threshold: %d", settings.OCR.LargeFileThreshold)
	}
	if settings.Retrieval.MaxResults != 5 || settings.Retrieval.ProximityWindow != 50 {
		t.Errorf("Unexpected retrieval defaults: %+v", settings.Retrieval)
	}
	if err := ValidateSettings(settings); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestLoadSettings_EnvVars(t *testing.T) {
	t.Setenv("DOCCHAT_PORT", "9090")
	t.Setenv("DOCCHAT_AUTH_TYPE", "basic")
	t.Setenv("DOCCHAT_AUTH_BASIC_USERNAME", "admin")
	t.Setenv("DOCCHAT_PROCESSING_WORKERS", "4")
	t.Setenv("DOCCHAT_CHUNKING_MAX_SIZE", "1000")
	t.Setenv("DOCCHAT_OCR_ENABLED", "false")
	t.Setenv("DOCCHAT_OCR_PAGE_TIMEOUT", "15s")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", settings.Port)
	}
	if settings.Auth.Type != AuthTypeBasic {
		t.Errorf("Expected auth type '%s', got '%s'", AuthTypeBasic, settings.Auth.Type)
	}
	if settings.Auth.Basic.Username != "admin" {
		t.Errorf("Expected username 'admin', got '%s'", settings.Auth.Basic.Username)
	}
	if settings.Processing.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", settings.Processing.Workers)
	}
	if settings.Chunking.MaxSize != 1000 {
		t.Errorf("Expected chunk size 1000, got %d", settings.Chunking.MaxSize)
	}
	if settings.OCR.Enabled {
		t.Error("Expected OCR to be disabled")
	}
	if settings.OCR.PageTimeout != 15*time.Second {
		t.Errorf("Expected page timeout 15s, got %v", settings.OCR.PageTimeout)
	}
}

func TestLoadSettings_APIKeys_EnvVar(t *testing.T) {
	t.Setenv("DOCCHAT_AUTH_API_KEYS", "key1, key2,key3")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	want := []string{"key1", "key2", "key3"}
	if len(settings.Auth.APIKeys) != len(want) {
		t.Fatalf("Expected %d API keys, got %d", len(want), len(settings.Auth.APIKeys))
	}
	for i, k := range want {
		if settings.Auth.APIKeys[i] != k {
			t.Errorf("Expected %s, got '%s'", k, settings.Auth.APIKeys[i])
		}
	}
}

func TestLoadSettings_APIKeys_FilterEmpty(t *testing.T) {
	t.Setenv("DOCCHAT_AUTH_API_KEYS", "key1,, ,key2")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if len(settings.Auth.APIKeys) != 2 {
		t.Errorf("Expected 2 API keys, got %v", settings.Auth.APIKeys)
	}
}

func TestLoadSettings_EnvFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	defer func() { _ = os.Chdir(wd) }()

	content := []byte("host=127.0.0.2\nport=7000")
	if err := os.WriteFile(filepath.Join(dir, ".env"), content, 0644); err != nil {
		t.Fatalf("Failed to create .env file: %v", err)
	}

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Host != "127.0.0.2" {
		t.Errorf("Expected host 127.0.0.2, got %s", settings.Host)
	}
	if settings.Port != 7000 {
		t.Errorf("Expected port 7000, got %d", settings.Port)
	}
}

func TestLoadSettings_InvalidConfig(t *testing.T) {
	t.Setenv("DOCCHAT_PORT", "not-a-number")

	_, err := LoadSettings()
	if err == nil {
		t.Fatal("Expected error for invalid port type")
	}
}

func TestLoadSettingsWithFlags_CLIOverridesEnv(t *testing.T) {
	t.Setenv("DOCCHAT_PORT", "9090")
	t.Setenv("DOCCHAT_TRANSPORT", "sse")
	t.Setenv("DOCCHAT_PROCESSING_WORKERS", "8")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.String("transport", "", "")
	flags.Int("workers", 0, "")
	_ = flags.Set("port", "7777")
	_ = flags.Set("transport", "stdio")
	_ = flags.Set("workers", "3")

	settings, err := LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Port != 7777 {
		t.Errorf("Expected CLI port 7777, got %d", settings.Port)
	}
	if settings.Transport != TransportStdio {
		t.Errorf("Expected CLI transport 'stdio', got '%s'", settings.Transport)
	}
	if settings.Processing.Workers != 3 {
		t.Errorf("Expected CLI workers 3, got %d", settings.Processing.Workers)
	}
}

func TestLoadSettingsWithFlags_UnsetFlagsKeepDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("chunk-size", 0, "")
	flags.Bool("ocr", false, "")

	settings, err := LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if settings.Chunking.MaxSize != 6000 {
		t.Errorf("Expected default chunk size, got %d", settings.Chunking.MaxSize)
	}
	if !settings.OCR.Enabled {
		t.Error("Expected OCR default to survive an unset flag")
	}
}

func TestLoadSettingsWithFlags_AllFlagTypes(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("data-dir", "", "")
	flags.String("auth-type", "", "")
	flags.StringSlice("auth-api-keys", nil, "")
	flags.Int("chunk-size", 0, "")
	flags.Int("chunk-overlap", 0, "")
	flags.Int64("max-file-size", 0, "")
	flags.Bool("ocr", true, "")
	flags.String("ocr-languages", "", "")
	flags.Int("max-results", 0, "")

	dataDir := t.TempDir()
	_ = flags.Set("data-dir", dataDir)
	_ = flags.Set("auth-type", "apikey")
	_ = flags.Set("auth-api-keys", "a,b")
	_ = flags.Set("chunk-size", "2000")
	_ = flags.Set("chunk-overlap", "100")
	_ = flags.Set("max-file-size", "1024")
	_ = flags.Set("ocr", "false")
	_ = flags.Set("ocr-languages", "eng")
	_ = flags.Set("max-results", "9")

	settings, err := LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.DataDir != dataDir {
		t.Errorf("Expected data dir %s, got %s", dataDir, settings.DataDir)
	}
	if settings.Auth.Type != AuthTypeAPIKey || len(settings.Auth.APIKeys) != 2 {
		t.Errorf("Unexpected auth settings: %+v", settings.Auth)
	}
	if settings.Chunking.MaxSize != 2000 || settings.Chunking.Overlap != 100 {
		t.Errorf("Unexpected chunking settings: %+v", settings.Chunking)
	}
	if settings.Extraction.MaxFileSize != 1024 {
		t.Errorf("Expected max file size 1024, got %d", settings.Extraction.MaxFileSize)
	}
	if settings.OCR.Enabled || settings.OCR.Languages != "eng" {
		t.Errorf("Unexpected OCR settings: %+v", settings.OCR)
	}
	if settings.Retrieval.MaxResults != 9 {
		t.Errorf("Expected max results 9, got %d", settings.Retrieval.MaxResults)
	}
}

func TestLoadSettings_DataDirExpandHome(t *testing.T) {
	t.Setenv("DOCCHAT_DATA_DIR", "~/docs-data")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if settings.DataDir != filepath.Join(home, "docs-data") {
		t.Errorf("Expected expanded data dir, got %s", settings.DataDir)
	}
}

func TestValidateSettings_Valid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"defaults", func(s *Settings) {}},
		{"empty auth type", func(s *Settings) { s.Auth.Type = "" }},
		{"stdio", func(s *Settings) { s.Transport = TransportStdio }},
		{"sse", func(s *Settings) { s.Transport = TransportSSE }},
		{"basic", func(s *Settings) {
			s.Auth = AuthSettings{Type: AuthTypeBasic, Basic: BasicAuthSettings{Username: "u", Password: "p"}}
		}},
		{"apikey", func(s *Settings) { s.Auth = AuthSettings{Type: AuthTypeAPIKey, APIKeys: []string{"k"}} }},
		{"zero overlap", func(s *Settings) { s.Chunking.Overlap = 0 }},
		{"ocr disabled skips ocr checks", func(s *Settings) { s.OCR = OCRSettings{Enabled: false} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			if err := ValidateSettings(s); err != nil {
				t.Errorf("Expected valid settings, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"unknown transport", func(s *Settings) { s.Transport = "grpc" }, "transport"},
		{"none with credentials", func(s *Settings) { s.Auth.APIKeys = []string{"k"} }, "incompatible"},
		{"basic missing password", func(s *Settings) {
			s.Auth = AuthSettings{Type: AuthTypeBasic, Basic: BasicAuthSettings{Username: "u"}}
		}, "requires both"},
		{"basic with api keys", func(s *Settings) {
			s.Auth = AuthSettings{Type: AuthTypeBasic, Basic: BasicAuthSettings{Username: "u", Password: "p"}, APIKeys: []string{"k"}}
		}, "mutually exclusive"},
		{"apikey without keys", func(s *Settings) { s.Auth = AuthSettings{Type: AuthTypeAPIKey} }, "at least one"},
		{"apikey with basic", func(s *Settings) {
			s.Auth = AuthSettings{Type: AuthTypeAPIKey, APIKeys: []string{"k"}, Basic: BasicAuthSettings{Username: "u"}}
		}, "mutually exclusive"},
		{"unknown auth type", func(s *Settings) { s.Auth.Type = "oauth" }, "unknown auth-type"},
		{"empty data dir", func(s *Settings) { s.DataDir = "" }, "data-dir"},
		{"zero workers", func(s *Settings) { s.Processing.Workers = 0 }, "workers"},
		{"zero queue", func(s *Settings) { s.Processing.QueueSize = 0 }, "queue"},
		{"zero chunk size", func(s *Settings) { s.Chunking.MaxSize = 0 }, "chunk-size"},
		{"overlap equals size", func(s *Settings) { s.Chunking.Overlap = 6000 }, "chunk-overlap"},
		{"negative overlap", func(s *Settings) { s.Chunking.Overlap = -1 }, "chunk-overlap"},
		{"zero min chars", func(s *Settings) { s.Extraction.MinChars = 0 }, "min chars"},
		{"zero cap", func(s *Settings) { s.Extraction.OCRCap = 0 }, "caps"},
		{"zero max file size", func(s *Settings) { s.Extraction.MaxFileSize = 0 }, "max-file-size"},
		{"ocr zero dpi", func(s *Settings) { s.OCR.DPI = 0 }, "dpi"},
		{"ocr empty languages", func(s *Settings) { s.OCR.Languages = "" }, "ocr-languages"},
		{"ocr zero timeout", func(s *Settings) { s.OCR.PageTimeout = 0 }, "timeouts"},
		{"ocr zero pages", func(s *Settings) { s.OCR.MaxPages = 0 }, "page limits"},
		{"ocr zero parallel", func(s *Settings) { s.OCR.ParallelPages = 0 }, "parallel"},
		{"zero max results", func(s *Settings) { s.Retrieval.MaxResults = 0 }, "max-results"},
		{"zero proximity", func(s *Settings) { s.Retrieval.ProximityWindow = 0 }, "proximity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestExpandHomeDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/data", filepath.Join(home, "data")},
		{"~", home},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
	}
	for _, tt := range tests {
		if got := expandHomeDir(tt.input); got != tt.want {
			t.Errorf("expandHomeDir(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFilterEmptyStrings(t *testing.T) {
	got := filterEmptyStrings([]string{"a", "", "b", ""})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Unexpected result: %v", got)
	}
	if filterEmptyStrings(nil) != nil {
		t.Error("Expected nil for nil input")
	}
}

func TestEnvName(t *testing.T) {
	if got := envName("ocr.page_timeout"); got != "DOCCHAT_OCR_PAGE_TIMEOUT" {
		t.Errorf("envName = %s", got)
	}
}
