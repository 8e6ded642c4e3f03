package api

import (
	"context"
	"net/http"

	"github.com/okian/techrank/internal/domain/model"
	"github.com/okian/techrank/pkg/logger"
)

// TechnicianDependencies defines the technician operations.
type TechnicianDependencies interface {
	AddTechnician(ctx context.Context, name string) (model.Technician, error)
	UpdateTechnician(ctx context.Context, id, name string) (model.Technician, error)
	DeleteTechnician(ctx context.Context, id string) error
	Technician(ctx context.Context, id string, window *model.DateWindow) (model.Technician, error)
	Technicians(ctx context.Context, window *model.DateWindow) ([]model.Technician, error)
	TechnicianHistory(ctx context.Context, id string, window *model.DateWindow) ([]model.ServiceRecord, error)
}

// TechnicianHandler handles /technicians requests.
type TechnicianHandler struct {
	deps   TechnicianDependencies
	logger logger.Logger
}

// NewTechnicianHandler creates a new technician handler.
func NewTechnicianHandler(deps TechnicianDependencies, l logger.Logger) *TechnicianHandler {
	return &TechnicianHandler{deps: deps, logger: l}
}

type technicianRequest struct {
	Name string `json:"name"`
}

// HandleList handles GET /technicians?start&end.
func (h *TechnicianHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_technicians"
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	techs, err := h.deps.Technicians(r.Context(), window)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, techs)
}

// HandleCreate handles POST /technicians.
func (h *TechnicianHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_technician"
	var req technicianRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), h.logger, w, bodyError(op, ErrBadRequest, err))
		return
	}
	tech, err := h.deps.AddTechnician(r.Context(), req.Name)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, tech)
}

// HandleGet handles GET /technicians/{id}?start&end.
func (h *TechnicianHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_technician"
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	tech, err := h.deps.Technician(r.Context(), r.PathValue("id"), window)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, tech)
}

// HandleUpdate handles PUT /technicians/{id}.
func (h *TechnicianHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_technician"
	var req technicianRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), h.logger, w, bodyError(op, ErrBadRequest, err))
		return
	}
	tech, err := h.deps.UpdateTechnician(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, tech)
}

// HandleDelete handles DELETE /technicians/{id}.
func (h *TechnicianHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_technician"
	if err := h.deps.DeleteTechnician(r.Context(), r.PathValue("id")); err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHistory handles GET /technicians/{id}/records?start&end.
func (h *TechnicianHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.technician_records"
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	records, err := h.deps.TechnicianHistory(r.Context(), r.PathValue("id"), window)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}
