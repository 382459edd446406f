package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/echolist/internal/list"
	"github.com/MrWong99/echolist/internal/listtype"
	"github.com/MrWong99/echolist/internal/recipe"
)

// The legacy surface predates typed lists: one implicit grocery list stored
// as a flat document of item texts. Reconciliation semantics are identical to
// the typed /process endpoint, scoped to that single list; completion flags
// do not survive the flat representation.

func (s *Server) handleLegacyGet(w http.ResponseWriter, r *http.Request) {
	if s.flat == nil {
		writeError(w, http.StatusInternalServerError, "legacy grocery storage is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.flat.Items(r.Context())})
}

func (s *Server) handleLegacyClear(w http.ResponseWriter, r *http.Request) {
	if s.flat == nil {
		writeError(w, http.StatusInternalServerError, "legacy grocery storage is not configured")
		return
	}
	if err := s.flat.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "storage failure: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "grocery list cleared"})
}

func (s *Server) handleLegacyProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}
	if s.reconciler == nil {
		writeError(w, http.StatusBadRequest, errMissingLLM)
		return
	}
	if s.flat == nil {
		writeError(w, http.StatusInternalServerError, "legacy grocery storage is not configured")
		return
	}

	ctx := r.Context()
	current := textsToItems(s.flat.Items(ctx))
	cfg, _ := listtype.Lookup(listtype.TypeGrocery)

	start := time.Now()
	result, err := s.reconciler.Reconcile(ctx, cfg, current, req.Transcript)
	if err != nil {
		s.metrics.RecordReconciliation(ctx, string(listtype.TypeGrocery), "error", 0, 0, 0)
		writeError(w, http.StatusInternalServerError, "instruction processing failed: "+err.Error())
		return
	}

	texts := make([]string, 0, len(result.Items))
	for _, it := range result.Items {
		texts = append(texts, it.Text)
	}
	if err := s.flat.Replace(ctx, texts); err != nil {
		s.metrics.RecordReconciliation(ctx, string(listtype.TypeGrocery), "error", 0, 0, 0)
		writeError(w, http.StatusInternalServerError, "storage failure: "+err.Error())
		return
	}

	s.metrics.ReconcileDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordReconciliation(ctx, string(listtype.TypeGrocery), "ok",
		len(result.Changes.Added), len(result.Changes.Removed), len(result.Changes.Modified))

	writeJSON(w, http.StatusOK, map[string]any{
		"items":     texts,
		"reasoning": result.Reasoning,
		"changes":   result.Changes,
	})
}

// legacyRecipeRequest is the body for POST /api/recipe.
type legacyRecipeRequest struct {
	Recipe string `json:"recipe"`
}

// legacyRecipeURLRequest is the body for POST /api/recipe-url.
type legacyRecipeURLRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleLegacyRecipe(w http.ResponseWriter, r *http.Request) {
	var req legacyRecipeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Recipe) == "" {
		writeError(w, http.StatusBadRequest, "recipe text is required")
		return
	}
	s.legacyExtractAndMerge(w, r, req.Recipe, "text")
}

func (s *Server) handleLegacyRecipeURL(w http.ResponseWriter, r *http.Request) {
	var req legacyRecipeURLRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if s.extractor == nil {
		writeError(w, http.StatusBadRequest, errMissingLLM)
		return
	}

	ctx := r.Context()
	fetchStart := time.Now()
	text, err := s.fetcher.Fetch(ctx, req.URL)
	s.metrics.RecipeFetchDuration.Record(ctx, time.Since(fetchStart).Seconds())
	if err != nil {
		s.metrics.RecordRecipeExtraction(ctx, "url", "error")
		if errors.Is(err, recipe.ErrExtractionFailed) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "fetching recipe page failed: "+err.Error())
		return
	}
	s.legacyExtractAndMerge(w, r, text, "url")
}

// legacyExtractAndMerge runs extraction over text and merges the result into
// the flat grocery document.
func (s *Server) legacyExtractAndMerge(w http.ResponseWriter, r *http.Request, text, source string) {
	if s.extractor == nil {
		writeError(w, http.StatusBadRequest, errMissingLLM)
		return
	}
	if s.flat == nil {
		writeError(w, http.StatusInternalServerError, "legacy grocery storage is not configured")
		return
	}

	ctx := r.Context()
	extraction, err := s.extractor.Extract(ctx, text)
	if err != nil {
		s.metrics.RecordRecipeExtraction(ctx, source, "error")
		writeError(w, http.StatusInternalServerError, "ingredient extraction failed: "+err.Error())
		return
	}

	existing := s.flat.Items(ctx)
	added := recipe.Merge(existing, extraction.Ingredients)
	merged := append(append([]string{}, existing...), added...)
	if len(added) > 0 {
		if err := s.flat.Replace(ctx, merged); err != nil {
			s.metrics.RecordRecipeExtraction(ctx, source, "error")
			writeError(w, http.StatusInternalServerError, "storage failure: "+err.Error())
			return
		}
	}

	s.metrics.RecordRecipeExtraction(ctx, source, "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"ingredients": extraction.Ingredients,
		"added":       added,
		"items":       merged,
	})
}

// textsToItems lifts flat item texts into the item model for reconciliation.
func textsToItems(texts []string) []list.Item {
	items := make([]list.Item, 0, len(texts))
	for _, t := range texts {
		items = append(items, list.Item{Text: t})
	}
	return items
}
