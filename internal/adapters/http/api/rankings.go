package api

import (
	"context"
	"net/http"

	service "github.com/okian/techrank/internal/app"
	"github.com/okian/techrank/internal/domain/model"
	"github.com/okian/techrank/internal/domain/ranking"
	"github.com/okian/techrank/pkg/logger"
)

// RankingDependencies defines the ranking operations.
type RankingDependencies interface {
	Rankings(ctx context.Context, q ranking.Query) ([]service.Ranked, error)
	Overview(ctx context.Context, window *model.DateWindow) (model.Metrics, error)
}

// RankingHandler handles ranking requests.
type RankingHandler struct {
	deps   RankingDependencies
	logger logger.Logger
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps RankingDependencies, l logger.Logger) *RankingHandler {
	return &RankingHandler{deps: deps, logger: l}
}

// HandleRankings handles GET /rankings?sort&q&start&end.
func (h *RankingHandler) HandleRankings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rankings"
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	sortKey, err := model.ParseSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}

	out, err := h.deps.Rankings(r.Context(), ranking.Query{
		Window: window,
		Search: r.URL.Query().Get("q"),
		Sort:   sortKey,
	})
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleOverview handles GET /overview?start&end.
func (h *RankingHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_overview"
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	ov, err := h.deps.Overview(r.Context(), window)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ov)
}
