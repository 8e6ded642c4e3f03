// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/techrank/internal/domain/model"
	"github.com/okian/techrank/pkg/logger"
)

const maxBodyBytes = 10 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	TechnicianDependencies
	RecordDependencies
	RankingDependencies
	TransferDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	technicianHandler *TechnicianHandler
	recordHandler     *RecordHandler
	rankingHandler    *RankingHandler
	transferHandler   *TransferHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := options{logger: logger.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	l := o.logger.Named("api")
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(deps, l),
		technicianHandler: NewTechnicianHandler(deps, l),
		recordHandler:     NewRecordHandler(deps, l),
		rankingHandler:    NewRankingHandler(deps, l),
		transferHandler:   NewTransferHandler(deps, l),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	th, rh, kh, xh := s.technicianHandler, s.recordHandler, s.rankingHandler, s.transferHandler

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /technicians", MetricsMiddleware(th.HandleList, "technicians"))
	mux.HandleFunc("POST /technicians", MetricsMiddleware(th.HandleCreate, "technicians"))
	mux.HandleFunc("GET /technicians/{id}", MetricsMiddleware(th.HandleGet, "technician"))
	mux.HandleFunc("PUT /technicians/{id}", MetricsMiddleware(th.HandleUpdate, "technician"))
	mux.HandleFunc("DELETE /technicians/{id}", MetricsMiddleware(th.HandleDelete, "technician"))
	mux.HandleFunc("GET /technicians/{id}/records", MetricsMiddleware(th.HandleHistory, "technician_records"))

	mux.HandleFunc("POST /records", MetricsMiddleware(rh.HandlePostRecord, "records"))

	mux.HandleFunc("GET /rankings", MetricsMiddleware(kh.HandleRankings, "rankings"))
	mux.HandleFunc("GET /overview", MetricsMiddleware(kh.HandleOverview, "overview"))

	mux.HandleFunc("GET /export", MetricsMiddleware(xh.HandleExport, "export"))
	mux.HandleFunc("POST /export/archive", MetricsMiddleware(xh.HandleArchive, "export_archive"))
	mux.HandleFunc("POST /import", MetricsMiddleware(xh.HandleImport, "import"))
	mux.HandleFunc("DELETE /data", MetricsMiddleware(xh.HandleClear, "data"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes it as JSON. Server errors are
// logged since the client only sees the message.
func writeError(ctx context.Context, l logger.Logger, w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	var apiErr *Error
	if errors.As(err, &apiErr) {
		msg = apiErr.message()
	}
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		l.Error(ctx, "request failed", logger.Int("status", status), logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// windowFromQuery reads the optional start/end query parameters.
func windowFromQuery(r *http.Request) (*model.DateWindow, error) {
	q := r.URL.Query()
	return model.ParseDateWindow(q.Get("start"), q.Get("end"))
}
