// Package httpapi exposes the list-management HTTP surface: typed list CRUD,
// natural-language instruction processing, recipe ingredient extraction, the
// legacy single-grocery-list endpoints, and the WebSocket transcript capture
// transport.
//
// Handlers map domain errors to HTTP statuses; validation failures are
// rejected before any store or model call is attempted, and a missing LLM
// provider is a request-time 400 rather than a startup failure.
package httpapi

import (
	"net/http"
	"time"

	"github.com/MrWong99/echolist/internal/capture"
	"github.com/MrWong99/echolist/internal/list"
	"github.com/MrWong99/echolist/internal/observe"
	"github.com/MrWong99/echolist/internal/recipe"
	"github.com/MrWong99/echolist/internal/reconcile"
	"github.com/MrWong99/echolist/pkg/provider/llm"
	"github.com/MrWong99/echolist/pkg/provider/stt"
)

// Server holds the handler dependencies. Construct with [New]; nil optional
// dependencies disable the corresponding endpoints at request time.
type Server struct {
	store list.Store
	flat  *list.FlatStore

	llm        llm.Provider
	reconciler *reconcile.Reconciler
	extractor  *recipe.Extractor
	fetcher    *recipe.Fetcher

	sttProvider stt.Provider
	captureCfg  CaptureSettings

	metrics *observe.Metrics

	reconcileOpts []reconcile.Option
	extractOpts   []recipe.Option
}

// CaptureSettings carries the per-session defaults for the /capture endpoint.
type CaptureSettings struct {
	Stream       stt.StreamConfig
	AutoRestart  bool
	RestartDelay time.Duration
}

// Option is a functional option for [New].
type Option func(*Server)

// WithLLM enables instruction processing and recipe extraction through the
// given provider.
func WithLLM(p llm.Provider) Option {
	return func(s *Server) { s.llm = p }
}

// WithFlatStore enables the legacy /api/grocery surface backed by the flat
// single-list document.
func WithFlatStore(fs *list.FlatStore) Option {
	return func(s *Server) { s.flat = fs }
}

// WithCapture enables the WebSocket /capture endpoint.
func WithCapture(p stt.Provider, settings CaptureSettings) Option {
	return func(s *Server) {
		s.sttProvider = p
		s.captureCfg = settings
	}
}

// WithFetcher overrides the recipe URL fetcher, mainly for tests.
func WithFetcher(f *recipe.Fetcher) Option {
	return func(s *Server) { s.fetcher = f }
}

// WithMetrics records request and reconciliation metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithReconcileOptions forwards tuning options to the instruction reconciler.
func WithReconcileOptions(opts ...reconcile.Option) Option {
	return func(s *Server) { s.reconcileOpts = opts }
}

// WithExtractOptions forwards tuning options to the recipe extractor.
func WithExtractOptions(opts ...recipe.Option) Option {
	return func(s *Server) { s.extractOpts = opts }
}

// New creates a Server over the given list store.
func New(store list.Store, opts ...Option) *Server {
	s := &Server{store: store}
	for _, o := range opts {
		o(s)
	}
	if s.llm != nil {
		s.reconciler = reconcile.New(s.llm, s.reconcileOpts...)
		s.extractor = recipe.New(s.llm, s.extractOpts...)
	}
	if s.fetcher == nil {
		s.fetcher = recipe.NewFetcher(nil)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds all API routes to mux. Health and metrics endpoints are
// mounted by the caller alongside these.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /lists/types", s.handleListTypes)
	mux.HandleFunc("GET /lists", s.handleGetLists)
	mux.HandleFunc("POST /lists", s.handleCreateList)
	mux.HandleFunc("POST /lists/migrate-grocery", s.handleMigrateGrocery)
	mux.HandleFunc("GET /lists/{id}", s.handleGetList)
	mux.HandleFunc("PUT /lists/{id}", s.handleUpdateList)
	mux.HandleFunc("DELETE /lists/{id}", s.handleDeleteList)
	mux.HandleFunc("POST /lists/{id}/process", s.handleProcess)
	mux.HandleFunc("POST /lists/{id}/items", s.handleAddItem)
	mux.HandleFunc("PUT /lists/{id}/items/{itemID}", s.handleUpdateItem)
	mux.HandleFunc("DELETE /lists/{id}/items/{itemID}", s.handleDeleteItem)
	mux.HandleFunc("POST /lists/{id}/recipe", s.handleRecipe)

	mux.HandleFunc("GET /api/grocery", s.handleLegacyGet)
	mux.HandleFunc("POST /api/grocery", s.handleLegacyProcess)
	mux.HandleFunc("DELETE /api/grocery", s.handleLegacyClear)
	mux.HandleFunc("POST /api/recipe", s.handleLegacyRecipe)
	mux.HandleFunc("POST /api/recipe-url", s.handleLegacyRecipeURL)

	mux.HandleFunc("GET /capture", s.handleCapture)
}

// newCaptureSession builds a capture session from the configured defaults.
func (s *Server) newCaptureSession() *capture.Session {
	return capture.NewSession(capture.Config{
		Provider:     s.sttProvider,
		Stream:       s.captureCfg.Stream,
		AutoRestart:  s.captureCfg.AutoRestart,
		RestartDelay: s.captureCfg.RestartDelay,
	})
}
