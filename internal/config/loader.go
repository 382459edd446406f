package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override API keys from the config file, so
// secrets can stay out of checked-in YAML.
const (
	EnvLLMAPIKey = "ECHOLIST_LLM_API_KEY"
	EnvSTTAPIKey = "ECHOLIST_STT_API_KEY"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "openai-sdk", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram"},
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config]. It is a convenience wrapper
// around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero-valued fields that have documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":3000"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageFile
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Storage.BackupRetention == 0 {
		cfg.Storage.BackupRetention = 10
	}
	if cfg.Reconcile.Temperature == 0 {
		cfg.Reconcile.Temperature = 0.1
	}
	if cfg.Reconcile.MaxItems == 0 {
		cfg.Reconcile.MaxItems = 200
	}
	if cfg.Recipe.FetchTimeout == 0 {
		cfg.Recipe.FetchTimeout = Duration(15 * time.Second)
	}
	if cfg.Capture.SampleRate == 0 {
		cfg.Capture.SampleRate = 16000
	}
	if cfg.Capture.Channels == 0 {
		cfg.Capture.Channels = 1
	}
	if cfg.Capture.RestartDelay == 0 {
		cfg.Capture.RestartDelay = Duration(500 * time.Millisecond)
	}
}

// applyEnvOverrides replaces API keys with values from the environment when
// the corresponding variable is set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvLLMAPIKey); v != "" {
		cfg.Providers.LLM.APIKey = v
	}
	if v := os.Getenv(EnvSTTAPIKey); v != "" {
		cfg.Providers.STT.APIKey = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Storage
	if cfg.Storage.Backend != "" && !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: file, postgres", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when storage.backend is postgres"))
	}
	if cfg.Storage.BackupRetention < 0 {
		errs = append(errs, fmt.Errorf("storage.backup_retention %d must not be negative", cfg.Storage.BackupRetention))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.STTFallback.Name)

	// Provider availability warnings. A missing LLM provider is not a startup
	// error: list CRUD still works, and instruction processing reports the
	// missing provider per request.
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; instruction processing and recipe extraction will be unavailable")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; server-side transcript capture will be unavailable")
	}

	// Reconcile
	if cfg.Reconcile.Temperature < 0 || cfg.Reconcile.Temperature > 2 {
		errs = append(errs, fmt.Errorf("reconcile.temperature %.2f is out of range [0, 2]", cfg.Reconcile.Temperature))
	}
	if cfg.Reconcile.MaxItems < 0 {
		errs = append(errs, fmt.Errorf("reconcile.max_items %d must not be negative", cfg.Reconcile.MaxItems))
	}

	// Recipe
	if cfg.Recipe.Temperature < 0 || cfg.Recipe.Temperature > 2 {
		errs = append(errs, fmt.Errorf("recipe.temperature %.2f is out of range [0, 2]", cfg.Recipe.Temperature))
	}
	if cfg.Recipe.FetchTimeout < 0 {
		errs = append(errs, errors.New("recipe.fetch_timeout must not be negative"))
	}

	// Capture
	if cfg.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must not be negative", cfg.Capture.SampleRate))
	}
	if cfg.Capture.Channels < 0 || cfg.Capture.Channels > 2 {
		errs = append(errs, fmt.Errorf("capture.channels %d is out of range [0, 2]", cfg.Capture.Channels))
	}
	if cfg.Capture.RestartDelay < 0 {
		errs = append(errs, errors.New("capture.restart_delay must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
