package httpapi

import (
	"net/http"
	"strings"

	"github.com/MrWong99/echolist/internal/list"
	"github.com/MrWong99/echolist/internal/listtype"
)

// handleListTypes returns the static category registry.
func (s *Server) handleListTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"types": listtype.All()})
}

// handleGetLists returns every list in insertion order. Reads are fail-open:
// the store never surfaces a read error here.
func (s *Server) handleGetLists(w http.ResponseWriter, r *http.Request) {
	lists := s.store.GetAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"lists": lists})
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req list.CreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Type == "" {
		req.Type = string(listtype.TypeCustom)
	}
	cfg, ok := listtype.Lookup(listtype.Type(req.Type))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown list type "+req.Type)
		return
	}
	// Category defaults apply unless the caller supplied settings.
	if req.Settings == nil {
		defaults := cfg.DefaultSettings
		req.Settings = &defaults
	}

	created, err := s.store.Create(r.Context(), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"list": created})
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	l, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"list": l})
}

func (s *Server) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	var req list.UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	updated, err := s.store.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"list": updated})
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	removed, err := s.store.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "list deleted"})
}

// addItemRequest is the body for POST /lists/{id}/items.
type addItemRequest struct {
	Text      string         `json:"text"`
	Completed bool           `json:"completed"`
	Metadata  map[string]any `json:"metadata"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	item, err := s.store.AddItem(r.Context(), r.PathValue("id"), list.Item{
		Text:      req.Text,
		Completed: req.Completed,
		Metadata:  req.Metadata,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": item})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var upd list.ItemUpdate
	if !decodeBody(w, r, &upd) {
		return
	}

	item, err := s.store.UpdateItem(r.Context(), r.PathValue("id"), r.PathValue("itemID"), upd)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteItem(r.Context(), r.PathValue("id"), r.PathValue("itemID")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "item deleted"})
}
