package api

import (
	"context"
	"net/http"

	"github.com/okian/techrank/internal/domain/model"
	"github.com/okian/techrank/pkg/logger"
)

// IdempotencyKeyHeader makes POST /records safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// RecordDependencies defines the record submission operation.
type RecordDependencies interface {
	AddServiceRecord(ctx context.Context, key string, in model.RecordInput) (model.ServiceRecord, bool, error)
}

// RecordHandler handles record requests.
type RecordHandler struct {
	deps   RecordDependencies
	logger logger.Logger
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(deps RecordDependencies, l logger.Logger) *RecordHandler {
	return &RecordHandler{deps: deps, logger: l}
}

// recordRequest mirrors the OpenAPI schema for POST /records.
type recordRequest struct {
	TechnicianID      string  `json:"technicianId"`
	Date              string  `json:"date"`
	ServiceTime       float64 `json:"serviceTime"`
	FirstResponseTime float64 `json:"firstResponseTime"`
	Rating            float64 `json:"rating"`
	Notes             string  `json:"notes"`
}

func (req recordRequest) input() (model.RecordInput, error) {
	in := model.RecordInput{
		TechnicianID:      req.TechnicianID,
		ServiceTime:       req.ServiceTime,
		FirstResponseTime: req.FirstResponseTime,
		Rating:            req.Rating,
		Notes:             req.Notes,
	}
	if req.Date == "" {
		return in, nil
	}
	date, err := model.ParseTime(req.Date)
	if err != nil {
		return model.RecordInput{}, err
	}
	in.Date = date
	return in, nil
}

// HandlePostRecord handles POST /records. A replayed Idempotency-Key answers
// 200 with the original record instead of 201.
func (h *RecordHandler) HandlePostRecord(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_record"
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), h.logger, w, bodyError(op, ErrBadRequest, err))
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}

	rec, replayed, err := h.deps.AddServiceRecord(r.Context(), r.Header.Get(IdempotencyKeyHeader), in)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	if replayed {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
