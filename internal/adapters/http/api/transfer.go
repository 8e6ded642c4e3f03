package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	service "github.com/okian/techrank/internal/app"
	"github.com/okian/techrank/pkg/logger"
)

// TransferDependencies defines bulk data operations.
type TransferDependencies interface {
	Export(ctx context.Context) (service.ExportFile, error)
	ArchiveExport(ctx context.Context) (string, error)
	Import(ctx context.Context, payload io.Reader) error
	Clear(ctx context.Context) error
}

// TransferHandler handles export, import and clear requests.
type TransferHandler struct {
	deps   TransferDependencies
	logger logger.Logger
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(deps TransferDependencies, l logger.Logger) *TransferHandler {
	return &TransferHandler{deps: deps, logger: l}
}

type archiveResponse struct {
	Key string `json:"key"`
}

// HandleExport handles GET /export as a file download.
func (h *TransferHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export"
	file, err := h.deps.Export(r.Context())
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}

// HandleArchive handles POST /export/archive.
func (h *TransferHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	const op = "api.archive_export"
	key, err := h.deps.ArchiveExport(r.Context())
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, archiveResponse{Key: key})
}

// HandleImport handles POST /import. The body is a previously exported
// document; it replaces all data.
func (h *TransferHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.import"
	if err := h.deps.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes)); err != nil {
		writeError(r.Context(), h.logger, w, bodyError(op, nil, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClear handles DELETE /data.
func (h *TransferHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	const op = "api.clear"
	if err := h.deps.Clear(r.Context()); err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
