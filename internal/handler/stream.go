package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"streamhub/internal/model"
	"streamhub/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type StreamHandler struct {
	streamStore  *store.StreamStore
	messageStore *store.MessageStore
	logger       *slog.Logger
}

func NewStreamHandler(ss *store.StreamStore, ms *store.MessageStore, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{streamStore: ss, messageStore: ms, logger: logger}
}

// List handles GET /api/streams
func (h *StreamHandler) List(w http.ResponseWriter, r *http.Request) {
	streams, err := h.streamStore.List()
	if err != nil {
		h.logger.Error("list streams", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list streams")
		return
	}
	if streams == nil {
		streams = []model.Stream{}
	}
	writeData(w, http.StatusOK, streams)
}

// Get handles GET /api/streams/{id}
func (h *StreamHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	stream, err := h.streamStore.GetByID(id)
	if err != nil {
		h.logger.Error("get stream", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get stream")
		return
	}
	if stream == nil {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}
	writeData(w, http.StatusOK, stream)
}

// History handles GET /api/streams/{id}/messages. Messages come back oldest
// first so clients can render them in order.
func (h *StreamHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	msgs, err := h.messageStore.ListRecent(id, limit)
	if err != nil {
		h.logger.Error("list messages", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	writeData(w, http.StatusOK, msgs)
}
