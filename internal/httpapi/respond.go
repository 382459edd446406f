package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrWong99/echolist/internal/list"
)

// errMissingLLM is the request-time message for reconciliation and extraction
// endpoints when no LLM provider is configured.
const errMissingLLM = "no LLM provider is configured; set providers.llm and an API key"

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

// writeError writes the standard error payload. Every failure response is a
// JSON object with a human-readable "error" field; error kinds are conveyed
// only through HTTP status and message text.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps a store error to its HTTP status. Not-found is 404;
// duplicate names and items surface as 500 on these call sites, matching the
// legacy protocol; everything else is a storage failure.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, list.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, list.ErrDuplicateName), errors.Is(err, list.ErrDuplicateItem):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		slog.Error("store operation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "storage failure: "+err.Error())
	}
}

// decodeBody decodes a JSON request body into v. Returns false after writing
// a 400 response when the body is malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
