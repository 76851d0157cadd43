package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Transport constants
const (
	TransportHTTP  = "http"
	TransportSSE   = "sse"
	TransportStdio = "stdio"
)

// EnvPrefix prefixes every environment variable read by the settings loader.
const EnvPrefix = "DOCCHAT"

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// ProcessingSettings configures the worker pool.
type ProcessingSettings struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// ChunkingSettings configures the chunker.
type ChunkingSettings struct {
	MaxSize int `mapstructure:"max_size"`
	Overlap int `mapstructure:"overlap"`
}

// ExtractionSettings configures the extraction chain and upload limits.
type ExtractionSettings struct {
	MinChars    int   `mapstructure:"min_chars"`
	PrimaryCap  int   `mapstructure:"primary_cap"`
	LayoutCap   int   `mapstructure:"layout_cap"`
	OCRCap      int   `mapstructure:"ocr_cap"`
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// OCRSettings configures the OCR tier.
type OCRSettings struct {
	Enabled            bool          `mapstructure:"enabled"`
	DPI                int           `mapstructure:"dpi"`
	Languages          string        `mapstructure:"languages"`
	Timeout            time.Duration `mapstructure:"timeout"`
	PageTimeout        time.Duration `mapstructure:"page_timeout"`
	MaxPages           int           `mapstructure:"max_pages"`
	LargeFilePages     int           `mapstructure:"large_file_pages"`
	LargeFileThreshold int64         `mapstructure:"large_file_threshold"`
	ParallelPages      int           `mapstructure:"parallel_pages"`
}

// RetrievalSettings configures the scorer.
type RetrievalSettings struct {
	MaxResults      int `mapstructure:"max_results"`
	ProximityWindow int `mapstructure:"proximity_window"`
}

// Settings application settings
type Settings struct {
	Transport  string             `mapstructure:"transport"`
	Host       string             `mapstructure:"host"`
	Port       int                `mapstructure:"port"`
	DataDir    string             `mapstructure:"data_dir"`
	Auth       AuthSettings       `mapstructure:"auth"`
	Processing ProcessingSettings `mapstructure:"processing"`
	Chunking   ChunkingSettings   `mapstructure:"chunking"`
	Extraction ExtractionSettings `mapstructure:"extraction"`
	OCR        OCRSettings        `mapstructure:"ocr"`
	Retrieval  RetrievalSettings  `mapstructure:"retrieval"`
}

// flagBindings maps settings keys to CLI flag names.
var flagBindings = map[string]string{
	"transport":                "transport",
	"host":                     "host",
	"port":                     "port",
	"data_dir":                 "data-dir",
	"auth.type":                "auth-type",
	"auth.basic.username":      "auth-basic-username",
	"auth.basic.password":      "auth-basic-password",
	"auth.api_keys":            "auth-api-keys",
	"processing.workers":       "workers",
	"chunking.max_size":        "chunk-size",
	"chunking.overlap":         "chunk-overlap",
	"extraction.max_file_size": "max-file-size",
	"ocr.enabled":              "ocr",
	"ocr.languages":            "ocr-languages",
	"retrieval.max_results":    "max-results",
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("transport", TransportHTTP)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("auth.type", AuthTypeNone)

	v.SetDefault("processing.workers", 2)
	v.SetDefault("processing.queue_size", 64)

	v.SetDefault("chunking.max_size", 6000)
	v.SetDefault("chunking.overlap", 200)

	v.SetDefault("extraction.min_chars", 50)
	v.SetDefault("extraction.primary_cap", 500_000)
	v.SetDefault("extraction.layout_cap", 400_000)
	v.SetDefault("extraction.ocr_cap", 300_000)
	v.SetDefault("extraction.max_file_size", int64(100*1024*1024)) // 100MB

	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.dpi", 150)
	v.SetDefault("ocr.languages", "ita+eng")
	v.SetDefault("ocr.timeout", 300*time.Second)
	v.SetDefault("ocr.page_timeout", 60*time.Second)
	v.SetDefault("ocr.max_pages", 50)
	v.SetDefault("ocr.large_file_pages", 20)
	v.SetDefault("ocr.large_file_threshold", int64(10*1024*1024)) // 10MB
	v.SetDefault("ocr.parallel_pages", 2)

	v.SetDefault("retrieval.max_results", 5)
	v.SetDefault("retrieval.proximity_window", 50)

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only covers keys viper already knows about during Unmarshal,
	// so nested keys without defaults are bound explicitly.
	for _, key := range []string{"auth.basic.username", "auth.basic.password", "auth.api_keys"} {
		_ = v.BindEnv(key, envName(key))
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv(envName("auth.api_keys"))
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}

	// Trim spaces from API keys
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}
	settings.Auth.APIKeys = filterEmptyStrings(settings.Auth.APIKeys)

	settings.DataDir = expandHomeDir(settings.DataDir)

	return &settings, nil
}

// envName returns the environment variable bound to a settings key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// defaultDataDir returns the default data directory
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docchat"
	}
	return filepath.Join(home, ".docchat")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting or out-of-range configurations.
func ValidateSettings(s *Settings) error {
	switch s.Transport {
	case TransportHTTP, TransportSSE, TransportStdio:
		// valid
	default:
		return errors.New("transport must be 'http', 'sse' or 'stdio', got: " + s.Transport)
	}

	if err := validateAuthSettings(&s.Auth); err != nil {
		return err
	}

	if s.DataDir == "" {
		return errors.New("data-dir cannot be empty")
	}

	if s.Processing.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if s.Processing.QueueSize <= 0 {
		return errors.New("processing queue size must be positive")
	}

	if s.Chunking.MaxSize <= 0 {
		return errors.New("chunk-size must be positive")
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.MaxSize {
		return fmt.Errorf("chunk-overlap must be between 0 and chunk-size (%d), got %d", s.Chunking.MaxSize, s.Chunking.Overlap)
	}

	if err := validateExtractionSettings(&s.Extraction); err != nil {
		return err
	}
	if err := validateOCRSettings(&s.OCR); err != nil {
		return err
	}

	if s.Retrieval.MaxResults <= 0 {
		return errors.New("max-results must be positive")
	}
	if s.Retrieval.ProximityWindow <= 0 {
		return errors.New("retrieval proximity window must be positive")
	}

	return nil
}

func validateAuthSettings(a *AuthSettings) error {
	hasBasicCreds := a.Basic.Username != "" || a.Basic.Password != ""
	hasAPIKeys := len(a.APIKeys) > 0

	switch a.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if a.Basic.Username == "" || a.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + a.Type)
	}
	return nil
}

func validateExtractionSettings(e *ExtractionSettings) error {
	if e.MinChars <= 0 {
		return errors.New("extraction min chars must be positive")
	}
	if e.PrimaryCap <= 0 || e.LayoutCap <= 0 || e.OCRCap <= 0 {
		return errors.New("extraction caps must be positive")
	}
	if e.MaxFileSize <= 0 {
		return errors.New("max-file-size must be positive")
	}
	return nil
}

// validateOCRSettings validates the OCR configuration
func validateOCRSettings(o *OCRSettings) error {
	if !o.Enabled {
		return nil // No validation needed when disabled
	}
	if o.DPI <= 0 {
		return errors.New("ocr dpi must be positive")
	}
	if o.Languages == "" {
		return errors.New("ocr-languages cannot be empty")
	}
	if o.Timeout <= 0 || o.PageTimeout <= 0 {
		return errors.New("ocr timeouts must be positive")
	}
	if o.MaxPages <= 0 || o.LargeFilePages <= 0 {
		return errors.New("ocr page limits must be positive")
	}
	if o.ParallelPages <= 0 {
		return errors.New("ocr parallel pages must be positive")
	}
	return nil
}
