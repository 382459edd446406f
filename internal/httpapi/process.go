package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/echolist/internal/list"
	"github.com/MrWong99/echolist/internal/listtype"
	"github.com/MrWong99/echolist/internal/observe"
	"github.com/MrWong99/echolist/internal/recipe"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// processRequest is the body for POST /lists/{id}/process.
type processRequest struct {
	Transcript string `json:"transcript"`
}

// handleProcess reconciles a free-text instruction against a list's current
// items and wholesale-replaces the item collection with the validated result.
// On any failure the old collection stays authoritative.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
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

	ctx := r.Context()
	target, err := s.store.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	cfg := typeConfig(target.Type)
	start := time.Now()
	result, err := s.reconciler.Reconcile(ctx, cfg, target.Items, req.Transcript)
	if err != nil {
		s.metrics.RecordReconciliation(ctx, target.Type, "error", 0, 0, 0)
		writeError(w, http.StatusInternalServerError, "instruction processing failed: "+err.Error())
		return
	}

	updated, err := s.reconciler.Apply(ctx, s.store, target.ID, result)
	if err != nil {
		s.metrics.RecordReconciliation(ctx, target.Type, "error", 0, 0, 0)
		writeStoreError(w, err)
		return
	}

	s.metrics.ReconcileDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordReconciliation(ctx, target.Type, "ok",
		len(result.Changes.Added), len(result.Changes.Removed), len(result.Changes.Modified))

	writeJSON(w, http.StatusOK, map[string]any{
		"items":     updated.Items,
		"reasoning": result.Reasoning,
		"changes":   result.Changes,
	})
}

// recipeRequest is the body for POST /lists/{id}/recipe. Exactly one of
// Recipe (pasted text) or URL must be set.
type recipeRequest struct {
	Recipe string `json:"recipe"`
	URL    string `json:"url"`
}

// handleRecipe extracts normalized ingredients from recipe text or a fetched
// URL and merges them into a grocery-type list with fuzzy de-duplication.
func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Recipe = strings.TrimSpace(req.Recipe)
	req.URL = strings.TrimSpace(req.URL)
	if req.Recipe == "" && req.URL == "" {
		writeError(w, http.StatusBadRequest, "recipe text or url is required")
		return
	}
	if s.extractor == nil {
		writeError(w, http.StatusBadRequest, errMissingLLM)
		return
	}

	ctx := r.Context()
	target, err := s.store.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if target.Type != string(listtype.TypeGrocery) {
		writeError(w, http.StatusBadRequest, "recipe ingredients can only be added to a grocery list")
		return
	}

	source := "text"
	text := req.Recipe
	if text == "" {
		source = "url"
		fetchStart := time.Now()
		text, err = s.fetcher.Fetch(ctx, req.URL)
		s.metrics.RecipeFetchDuration.Record(ctx, time.Since(fetchStart).Seconds())
		if err != nil {
			s.metrics.RecordRecipeExtraction(ctx, source, "error")
			status := http.StatusInternalServerError
			if errors.Is(err, recipe.ErrExtractionFailed) {
				writeError(w, status, err.Error())
				return
			}
			writeError(w, status, "fetching recipe page failed: "+err.Error())
			return
		}
	}

	extraction, err := s.extractor.Extract(ctx, text)
	if err != nil {
		s.metrics.RecordRecipeExtraction(ctx, source, "error")
		writeError(w, http.StatusInternalServerError, "ingredient extraction failed: "+err.Error())
		return
	}

	existing := itemTexts(target.Items)
	added := recipe.Merge(existing, extraction.Ingredients)

	updated := target
	if len(added) > 0 {
		now := time.Now().UTC()
		items := append([]list.Item{}, target.Items...)
		for _, t := range added {
			items = append(items, list.Item{
				ID:        uuid.NewString(),
				Text:      t,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		updated, err = s.store.ReplaceItems(ctx, target.ID, items)
		if err != nil {
			s.metrics.RecordRecipeExtraction(ctx, source, "error")
			writeStoreError(w, err)
			return
		}
	}

	s.metrics.RecordRecipeExtraction(ctx, source, "ok")
	if len(added) > 0 {
		s.metrics.ItemsChanged.Add(ctx, int64(len(added)),
			metric.WithAttributes(observe.Attr("change", "added")))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ingredients": extraction.Ingredients,
		"added":       added,
		"reasoning":   extraction.Reasoning,
		"list":        updated,
	})
}

// handleMigrateGrocery copies the legacy flat grocery document into a typed
// grocery list. The flat document is left untouched so the legacy surface
// keeps working until clients move over.
func (s *Server) handleMigrateGrocery(w http.ResponseWriter, r *http.Request) {
	if s.flat == nil {
		writeError(w, http.StatusInternalServerError, "legacy grocery storage is not configured")
		return
	}

	ctx := r.Context()
	texts := s.flat.Items(ctx)

	cfg, _ := listtype.Lookup(listtype.TypeGrocery)
	defaults := cfg.DefaultSettings
	created, err := s.store.Create(ctx, list.CreateRequest{
		Type:     string(listtype.TypeGrocery),
		Name:     "Groceries",
		Icon:     cfg.Icon,
		Color:    cfg.Color,
		Settings: &defaults,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if len(texts) > 0 {
		now := time.Now().UTC()
		items := make([]list.Item, 0, len(texts))
		for _, t := range texts {
			items = append(items, list.Item{
				ID:        uuid.NewString(),
				Text:      t,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		created, err = s.store.ReplaceItems(ctx, created.ID, items)
		if err != nil {
			writeStoreError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "grocery list migrated",
		"list":    created,
	})
}

// typeConfig resolves a stored type string to its category config, falling
// back to the custom category for values outside the enumeration.
func typeConfig(t string) listtype.Config {
	if cfg, ok := listtype.Lookup(listtype.Type(t)); ok {
		return cfg
	}
	cfg, _ := listtype.Lookup(listtype.TypeCustom)
	return cfg
}

// itemTexts projects items to their text content.
func itemTexts(items []list.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Text)
	}
	return out
}
