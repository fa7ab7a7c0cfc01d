package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rafaelcosta/dunning/internal/domain/eventlog"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/service"
)

// SettingsController handles configuration, mapping, saved query and event
// feed endpoints.
type SettingsController struct {
	settings *service.SettingsService
}

func NewSettingsController(settings *service.SettingsService) *SettingsController {
	return &SettingsController{settings: settings}
}

// GetConfig handles GET /api/v1/config
func (h *SettingsController) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.GetConfig(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromConfig(cfg))
}

// PutConfig handles PUT /api/v1/config
func (h *SettingsController) PutConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg := req.ToConfig()
	if err := h.settings.SaveConfig(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromConfig(cfg))
}

// GetMappings handles GET /api/v1/mappings
func (h *SettingsController) GetMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.settings.ListMappings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]MappingDTO, 0, len(mappings))
	for _, m := range mappings {
		resp = append(resp, MappingDTO{Variable: m.Variable, SourceColumn: m.SourceColumn})
	}
	writeJSON(w, http.StatusOK, resp)
}

// PutMappings handles PUT /api/v1/mappings
func (h *SettingsController) PutMappings(w http.ResponseWriter, r *http.Request) {
	var req ReplaceMappingsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	mappings := make([]message.FieldMapping, 0, len(req.Mappings))
	for _, m := range req.Mappings {
		mappings = append(mappings, message.FieldMapping{
			Variable:     m.Variable,
			SourceColumn: m.SourceColumn,
		})
	}
	if err := h.settings.ReplaceMappings(r.Context(), mappings); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req.Mappings)
}

// ListQueries handles GET /api/v1/queries
func (h *SettingsController) ListQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := h.settings.ListQueries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]*SavedQueryResponse, 0, len(queries))
	for _, q := range queries {
		resp = append(resp, FromSavedQuery(q))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SaveQuery handles POST /api/v1/queries
func (h *SettingsController) SaveQuery(w http.ResponseWriter, r *http.Request) {
	var req SaveQueryRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	saved, err := h.settings.SaveQuery(r.Context(), req.Name, req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromSavedQuery(saved))
}

// DeleteQuery handles DELETE /api/v1/queries/{id}
func (h *SettingsController) DeleteQuery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid query id", Code: "invalid_id"})
		return
	}

	if err := h.settings.DeleteQuery(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEvents handles GET /api/v1/events
func (h *SettingsController) ListEvents(w http.ResponseWriter, r *http.Request) {
	var kind *eventlog.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k := eventlog.Kind(raw)
		kind = &k
	}
	limit := queryInt(r, "limit", 200)

	entries, err := h.settings.Events(r.Context(), kind, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]*EventResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, FromEvent(e))
	}
	writeJSON(w, http.StatusOK, resp)
}
