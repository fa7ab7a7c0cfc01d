package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
	"github.com/rafaelcosta/dunning/internal/domain/message"
	"github.com/rafaelcosta/dunning/internal/domain/queue"
	"github.com/rafaelcosta/dunning/internal/infrastructure/redis"
	"github.com/rafaelcosta/dunning/internal/service"
)

// QueueController handles the message queue endpoints.
type QueueController struct {
	queueService *service.QueueService
	generator    *service.GeneratorService
	sender       *service.SendService
	producer     *redis.StreamProducer
}

// NewQueueController creates a new QueueController. With a producer, send
// requests go to the dispatch stream and the worker delivers them; without
// one the controller dispatches inline.
func NewQueueController(
	queueService *service.QueueService,
	generator *service.GeneratorService,
	sender *service.SendService,
	producer *redis.StreamProducer,
) *QueueController {
	return &QueueController{
		queueService: queueService,
		generator:    generator,
		sender:       sender,
		producer:     producer,
	}
}

// List handles GET /api/v1/queue
func (h *QueueController) List(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	items, total, err := h.queueService.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := &ItemListResponse{
		Items:  make([]*ItemResponse, 0, len(items)),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, FromItem(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/queue/{id}
func (h *QueueController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid item id", Code: "invalid_id"})
		return
	}

	item, err := h.queueService.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromItem(item))
}

// Select handles PUT /api/v1/queue/selection
func (h *QueueController) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.queueService.SetSelected(r.Context(), parseUUIDs(req.IDs), req.Selected); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"selected": req.Selected})
}

// Delete handles DELETE /api/v1/queue
func (h *QueueController) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteItemsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	removed, err := h.queueService.Delete(r.Context(), parseUUIDs(req.IDs))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

// Clear handles POST /api/v1/queue/clear?status=SENT
func (h *QueueController) Clear(w http.ResponseWriter, r *http.Request) {
	status := queue.Status(r.URL.Query().Get("status"))
	removed, err := h.queueService.Clear(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

// Generate handles POST /api/v1/queue/generate
func (h *QueueController) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.generator.Generate(r.Context(), message.MessageType(req.Type), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &GenerateResponse{
		Type:     string(result.Type),
		Rows:     result.Rows,
		Inserted: result.Inserted,
		Skipped:  result.Skipped,
		Errors:   result.Errors,
	})
}

// Preview handles POST /api/v1/queue/preview. It runs the generation
// pipeline end to end but stores nothing.
func (h *QueueController) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.generator.Preview(r.Context(), message.MessageType(req.Type), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := &PreviewResponse{
		Type:    string(result.Type),
		Rows:    result.Rows,
		Skipped: result.Skipped,
		Items:   make([]*PreviewItemResponse, 0, len(result.Items)),
		Errors:  result.Errors,
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, FromPreviewItem(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/queue/send
func (h *QueueController) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if h.producer != nil {
		requestID := uuid.New().String()
		err := h.producer.PublishDispatchRequest(r.Context(), redis.DispatchRequest{
			RequestID: requestID,
			Mode:      string(queue.SendModeManual),
			Type:      req.Type,
			ItemIDs:   req.IDs,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, &DispatchAcceptedResponse{
			RequestID: requestID,
			Status:    "queued",
		})
		return
	}

	result, err := h.dispatchInline(r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &DispatchResponse{
		Attempted: result.Attempted,
		Sent:      result.Sent,
		Failed:    result.Failed,
		Errors:    result.Errors,
	})
}

func (h *QueueController) dispatchInline(r *http.Request, req SendRequest) (*service.DispatchResult, error) {
	if len(req.IDs) > 0 {
		return h.sender.DispatchByIDs(r.Context(), queue.SendModeManual, parseUUIDs(req.IDs))
	}
	var typ *message.MessageType
	if req.Type != "" {
		t := message.MessageType(req.Type)
		typ = &t
	}
	return h.sender.DispatchAll(r.Context(), queue.SendModeManual, typ)
}

// ListBlocks handles GET /api/v1/blocks
func (h *QueueController) ListBlocks(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queueService.ListBlocks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]*BlockedEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, FromBlockedEntry(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateBlock handles POST /api/v1/blocks
func (h *QueueController) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.queueService.Block(r.Context(), req.ClientCode, req.ClientName, req.InstallmentID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromBlockedEntry(entry))
}

// DeleteBlock handles DELETE /api/v1/blocks/{id}
func (h *QueueController) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid block id", Code: "invalid_id"})
		return
	}

	if err := h.queueService.Unblock(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDuplicates handles GET /api/v1/duplicates
func (h *QueueController) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	entries, err := h.queueService.DuplicateLog(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]*DuplicateResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, FromDuplicate(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func listFilterFromQuery(r *http.Request) (queue.ListFilter, error) {
	q := r.URL.Query()
	filter := queue.ListFilter{
		Limit:     queryInt(r, "limit", 50),
		Offset:    queryInt(r, "offset", 0),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	if raw := q.Get("status"); raw != "" {
		status := queue.Status(raw)
		switch status {
		case queue.StatusPending, queue.StatusSent, queue.StatusError, queue.StatusBlocked:
			filter.Status = &status
		default:
			return filter, domainErrors.NewValidationError("status", "unknown status "+raw)
		}
	}
	if raw := q.Get("type"); raw != "" {
		t := message.MessageType(raw)
		if !t.Valid() {
			return filter, domainErrors.ErrInvalidMessageType
		}
		filter.Type = &t
	}
	if raw := q.Get("client_code"); raw != "" {
		filter.ClientCode = &raw
	}
	if raw := q.Get("search"); raw != "" {
		filter.Search = &raw
	}
	return filter, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
