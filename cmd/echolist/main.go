// Command echolist is the main entry point for the Echolist voice list server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/echolist/internal/config"
	"github.com/MrWong99/echolist/internal/health"
	"github.com/MrWong99/echolist/internal/httpapi"
	"github.com/MrWong99/echolist/internal/list"
	"github.com/MrWong99/echolist/internal/observe"
	"github.com/MrWong99/echolist/internal/recipe"
	"github.com/MrWong99/echolist/internal/reconcile"
	"github.com/MrWong99/echolist/internal/resilience"
	"github.com/MrWong99/echolist/pkg/provider/llm"
	"github.com/MrWong99/echolist/pkg/provider/llm/anyllm"
	llmopenai "github.com/MrWong99/echolist/pkg/provider/llm/openai"
	"github.com/MrWong99/echolist/pkg/provider/stt"
	"github.com/MrWong99/echolist/pkg/provider/stt/deepgram"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "echolist: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "echolist: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("echolist starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"storage", cfg.Storage.Backend,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "echolist"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	llmProvider, sttProvider, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	store, flat, storeCheck, closeStore, err := buildStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise storage", "err", err)
		return 1
	}
	defer closeStore()

	// ── HTTP API ──────────────────────────────────────────────────────────────
	apiOpts := []httpapi.Option{
		httpapi.WithFlatStore(flat),
		httpapi.WithMetrics(metrics),
		httpapi.WithFetcher(recipe.NewFetcher(&http.Client{Timeout: cfg.Recipe.FetchTimeout.Std()})),
		httpapi.WithReconcileOptions(
			reconcile.WithTemperature(cfg.Reconcile.Temperature),
			reconcile.WithMaxItems(cfg.Reconcile.MaxItems),
		),
		httpapi.WithExtractOptions(recipe.WithTemperature(cfg.Recipe.Temperature)),
	}
	if llmProvider != nil {
		apiOpts = append(apiOpts, httpapi.WithLLM(llmProvider))
	}
	if sttProvider != nil {
		apiOpts = append(apiOpts, httpapi.WithCapture(sttProvider, httpapi.CaptureSettings{
			Stream: stt.StreamConfig{
				SampleRate: cfg.Capture.SampleRate,
				Channels:   cfg.Capture.Channels,
				Language:   cfg.Capture.Language,
			},
			AutoRestart:  cfg.Capture.AutoRestart,
			RestartDelay: cfg.Capture.RestartDelay.Std(),
		}))
	}
	api := httpapi.New(store, apiOpts...)

	mux := http.NewServeMux()
	api.Register(mux)
	health.New(health.Checker{Name: "storage", Check: storeCheck}).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config hot-reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		diff := config.Diff(old, updated)
		if diff.LogLevelChanged {
			logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if diff.ReconcileChanged || diff.RecipeChanged || diff.CaptureChanged {
			slog.Warn("reconcile/recipe/capture tuning changed on disk; restart to apply")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg, llmProvider != nil, sttProvider != nil)

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", cfg.Server.ListenAddr, "tls", cfg.Server.TLS != nil)
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		slog.Info("shutdown signal received, stopping…")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// openai-sdk talks to OpenAI through the official SDK instead of the
	// any-llm abstraction, for structured-output features the latter lacks.
	reg.RegisterLLM("openai-sdk", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates the providers named in cfg. Either may come
// back nil: the API degrades to storage-only operation without an LLM and
// refuses capture sessions without an STT provider.
func buildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (llm.Provider, stt.Provider, error) {
	var llmProvider llm.Provider
	var sttProvider stt.Provider

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown llm provider — instruction endpoints disabled", "name", name)
		} else if err != nil {
			return nil, nil, fmt.Errorf("create llm provider %q: %w", name, err)
		} else {
			llmProvider = p
			slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
		}
	}

	// Every model call is routed through a circuit breaker; a configured
	// fallback backend is tried when the primary is down or its breaker open.
	if llmProvider != nil {
		fb := resilience.NewLLMFallback(llmProvider, cfg.Providers.LLM.Name, resilience.FallbackConfig{},
			resilience.WithLLMMetrics(metrics))
		if name := cfg.Providers.LLMFallback.Name; name != "" {
			p, err := reg.CreateLLM(cfg.Providers.LLMFallback)
			if errors.Is(err, config.ErrProviderNotRegistered) {
				slog.Warn("unknown llm fallback provider — ignored", "name", name)
			} else if err != nil {
				return nil, nil, fmt.Errorf("create llm fallback provider %q: %w", name, err)
			} else {
				fb.AddFallback(name, p)
				slog.Info("provider created", "kind", "llm-fallback", "name", name, "model", cfg.Providers.LLMFallback.Model)
			}
		}
		llmProvider = fb
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown stt provider — capture disabled", "name", name)
		} else if err != nil {
			return nil, nil, fmt.Errorf("create stt provider %q: %w", name, err)
		} else {
			sttProvider = p
			slog.Info("provider created", "kind", "stt", "name", name, "model", cfg.Providers.STT.Model)
		}
	}

	// Stream starts get the same breaker-and-failover treatment as model
	// calls. Once a session is open it belongs to the capture loop; only the
	// start path fails over.
	if sttProvider != nil {
		fb := resilience.NewSTTFallback(sttProvider, cfg.Providers.STT.Name, resilience.FallbackConfig{})
		if name := cfg.Providers.STTFallback.Name; name != "" {
			p, err := reg.CreateSTT(cfg.Providers.STTFallback)
			if errors.Is(err, config.ErrProviderNotRegistered) {
				slog.Warn("unknown stt fallback provider — ignored", "name", name)
			} else if err != nil {
				return nil, nil, fmt.Errorf("create stt fallback provider %q: %w", name, err)
			} else {
				fb.AddFallback(name, p)
				slog.Info("provider created", "kind", "stt-fallback", "name", name, "model", cfg.Providers.STTFallback.Model)
			}
		}
		sttProvider = fb
	}

	return llmProvider, sttProvider, nil
}

// ── Storage wiring ────────────────────────────────────────────────────────────

// buildStorage initialises the configured persistence backend and returns the
// list store, the legacy flat grocery store, a readiness check, and a close
// function.
func buildStorage(ctx context.Context, cfg *config.Config) (list.Store, *list.FlatStore, func(context.Context) error, func(), error) {
	flat, err := list.NewFlatStore(filepath.Join(cfg.Storage.DataDir, "grocery-list.json"),
		list.WithFlatBackupDir(filepath.Join(cfg.Storage.DataDir, "backups")),
		list.WithFlatBackupRetention(cfg.Storage.BackupRetention))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("flat store: %w", err)
	}

	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		store := list.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		check := func(ctx context.Context) error { return pool.Ping(ctx) }
		return store, flat, check, pool.Close, nil

	default:
		store, err := list.NewFileStore(filepath.Join(cfg.Storage.DataDir, "lists.json"),
			list.WithBackupDir(filepath.Join(cfg.Storage.DataDir, "backups")),
			list.WithBackupRetention(cfg.Storage.BackupRetention),
		)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("file store: %w", err)
		}
		check := func(ctx context.Context) error {
			_, err := os.Stat(cfg.Storage.DataDir)
			return err
		}
		return store, flat, check, func() {}, nil
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, llmReady, sttReady bool) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Echolist — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", readyName(llmReady, cfg.Providers.LLM.Name), cfg.Providers.LLM.Model)
	printProvider("STT", readyName(sttReady, cfg.Providers.STT.Name), cfg.Providers.STT.Model)
	fmt.Printf("║  Storage         : %-19s ║\n", cfg.Storage.Backend)
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func readyName(ready bool, name string) string {
	if !ready {
		return ""
	}
	return name
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
