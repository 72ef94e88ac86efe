package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/platform/logging"
	"github.com/riskibarqy/lotto-feed/internal/usecase"
)

const (
	defaultHistoryCount = 10
	maxHistoryCount     = 5000
)

// DrawService is the read and refresh surface of the data manager.
type DrawService interface {
	GetLatestResult(ctx context.Context) usecase.Result[draw.Result]
	GetHistory(ctx context.Context, count int) usecase.Result[[]draw.Result]
	GetRound(ctx context.Context, round int) usecase.Result[draw.Result]
	GetNextDrawInfo(now time.Time) usecase.Result[draw.NextDrawInfo]
	GetDataRange() usecase.Result[draw.RoundRange]
	ForceRefresh(ctx context.Context) usecase.Result[usecase.RefreshOutcome]
	GetServiceStatus() usecase.Result[usecase.ServiceStatus]
}

type Handler struct {
	draws     DrawService
	logger    *logging.Logger
	validator *validator.Validate
	now       func() time.Time
}

func NewHandler(draws DrawService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		draws:     draws,
		logger:    logger.Named("http"),
		validator: validator.New(),
		now:       time.Now,
	}
}

type historyQuery struct {
	Count int `validate:"min=1,max=5000"`
}

type roundPath struct {
	Round int `validate:"min=1"`
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetLatestDraw(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLatestDraw")
	defer span.End()

	res := h.draws.GetLatestResult(ctx)
	writeResult(ctx, w, h.logger, "get latest draw", res, drawToDTO)
}

func (h *Handler) GetDrawHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetDrawHistory")
	defer span.End()

	query := historyQuery{Count: defaultHistoryCount}
	if raw := strings.TrimSpace(r.URL.Query().Get("count")); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: count must be an integer", usecase.ErrInvalidInput))
			return
		}
		query.Count = count
	}
	if err := h.validateRequest(ctx, query); err != nil {
		writeError(ctx, w, fmt.Errorf("%w (count must be between 1 and %d)", err, maxHistoryCount))
		return
	}

	res := h.draws.GetHistory(ctx, query.Count)
	writeResult(ctx, w, h.logger, "get draw history", res, drawsToDTO)
}

func (h *Handler) GetDrawRound(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetDrawRound")
	defer span.End()

	round, err := strconv.Atoi(strings.TrimSpace(r.PathValue("round")))
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: round must be an integer", usecase.ErrInvalidInput))
		return
	}
	if err := h.validateRequest(ctx, roundPath{Round: round}); err != nil {
		writeError(ctx, w, err)
		return
	}

	res := h.draws.GetRound(ctx, round)
	writeResult(ctx, w, h.logger, "get draw round", res, drawToDTO)
}

func (h *Handler) GetNextDraw(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetNextDraw")
	defer span.End()

	res := h.draws.GetNextDrawInfo(h.now())
	writeResult(ctx, w, h.logger, "get next draw", res, nextDrawToDTO)
}

func (h *Handler) GetDataRange(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetDataRange")
	defer span.End()

	res := h.draws.GetDataRange()
	writeResult(ctx, w, h.logger, "get data range", res, rangeToDTO)
}

func (h *Handler) ForceRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ForceRefresh")
	defer span.End()

	res := h.draws.ForceRefresh(ctx)
	if res.Success {
		h.logger.InfoContext(ctx, "manual refresh finished",
			"outcome", res.Data.Outcome,
			"shared", res.Data.Shared,
			"client_ip", resolveClientIP(r),
		)
	}
	writeResult(ctx, w, h.logger, "force refresh", res, refreshToDTO)
}

func (h *Handler) GetServiceStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetServiceStatus")
	defer span.End()

	res := h.draws.GetServiceStatus()
	writeResult(ctx, w, h.logger, "get service status", res, statusToDTO)
}

// writeResult maps a failed Result to an error envelope and a successful
// one to a resultDTO carrying the converted data.
func writeResult[T, D any](
	ctx context.Context,
	w http.ResponseWriter,
	logger *logging.Logger,
	op string,
	res usecase.Result[T],
	convert func(T) D,
) {
	if !res.Success {
		err := res.Err()
		if err == nil {
			err = fmt.Errorf("%s", res.Error)
		}
		logger.WarnContext(ctx, op+" failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, resultDTO[D]{
		Success: true,
		Data:    convert(res.Data),
		Message: res.Message,
	})
}
