package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/echolist/internal/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "echolist.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, sampleYAML)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "sk-test" {
		t.Errorf("providers.llm.api_key: got %q, want %q", cfg.Providers.LLM.APIKey, "sk-test")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EnvOverridesAPIKeys(t *testing.T) {
	t.Setenv(config.EnvLLMAPIKey, "sk-from-env")
	t.Setenv(config.EnvSTTAPIKey, "dg-from-env")

	path := writeConfigFile(t, sampleYAML)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "sk-from-env" {
		t.Errorf("llm api key = %q, want env override", cfg.Providers.LLM.APIKey)
	}
	if cfg.Providers.STT.APIKey != "dg-from-env" {
		t.Errorf("stt api key = %q, want env override", cfg.Providers.STT.APIKey)
	}
}

func TestLoad_EnvOverrideIgnoredWhenUnset(t *testing.T) {
	t.Setenv(config.EnvLLMAPIKey, "")

	path := writeConfigFile(t, sampleYAML)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "sk-test" {
		t.Errorf("llm api key = %q, want file value", cfg.Providers.LLM.APIKey)
	}
}

func TestLoad_FallbackProviderEntries(t *testing.T) {
	path := writeConfigFile(t, `
providers:
  llm:
    name: openai
    model: gpt-4o-mini
  llm_fallback:
    name: ollama
    model: llama3.1
    base_url: http://localhost:11434
  stt:
    name: deepgram
    model: nova-2
  stt_fallback:
    name: deepgram
    model: base
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.LLMFallback.Name != "ollama" {
		t.Errorf("llm_fallback.name = %q, want %q", cfg.Providers.LLMFallback.Name, "ollama")
	}
	if cfg.Providers.STTFallback.Name != "deepgram" || cfg.Providers.STTFallback.Model != "base" {
		t.Errorf("stt_fallback = %+v, want deepgram/base", cfg.Providers.STTFallback)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	llmNames := config.ValidProviderNames["llm"]
	if len(llmNames) == 0 {
		t.Fatal("ValidProviderNames[\"llm\"] should not be empty")
	}
	// Check that "openai" is in the LLM list.
	found := false
	for _, n := range llmNames {
		if n == "openai" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"llm\"] should contain \"openai\"")
	}
	if !strings.Contains(strings.Join(config.ValidProviderNames["stt"], ","), "deepgram") {
		t.Error("ValidProviderNames[\"stt\"] should contain \"deepgram\"")
	}
}
