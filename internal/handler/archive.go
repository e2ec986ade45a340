package handler

import (
	"log/slog"
	"net/http"

	"streamhub/internal/archive"
	"streamhub/internal/model"
	"streamhub/internal/store"
)

type ArchiveHandler struct {
	manager      *archive.Manager
	archiveStore *store.ArchiveStore
	logger       *slog.Logger
}

func NewArchiveHandler(m *archive.Manager, as *store.ArchiveStore, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{manager: m, archiveStore: as, logger: logger}
}

// Status handles GET /api/archive/status
func (h *ArchiveHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.manager.Status())
}

// RunNow handles POST /api/archive/run
func (h *ArchiveHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	moved, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.logger.Error("archive run", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]int64{"archived": moved})
}

// ListRuns handles GET /api/streams/{id}/archive-runs
func (h *ArchiveHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	runs, err := h.archiveStore.ListByStream(id, 20)
	if err != nil {
		h.logger.Error("list archive runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list archive runs")
		return
	}
	if runs == nil {
		runs = []model.ArchiveRun{}
	}
	writeData(w, http.StatusOK, runs)
}
