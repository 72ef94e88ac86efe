package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/usecase"
)

const (
	googleAPIVersion = "2.0"
	errorDomain      = "lotto-feed"

	// Upstream breakers reopen after 30s by default.
	unavailableRetryAfter = 30
)

type googleResponseEnvelope struct {
	APIVersion string           `json:"apiVersion"`
	Data       any              `json:"data,omitempty"`
	Error      *googleErrorBody `json:"error,omitempty"`
}

type googleErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Errors  []googleErrorItem `json:"errors,omitempty"`
}

type googleErrorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// errorKind is the HTTP shape of one class of failure.
type errorKind struct {
	HTTPStatus int
	Reason     string
	Status     string
}

var (
	kindInvalidInput = errorKind{HTTPStatus: http.StatusBadRequest, Reason: "invalidInput", Status: "INVALID_ARGUMENT"}
	kindNotFound     = errorKind{HTTPStatus: http.StatusNotFound, Reason: "notFound", Status: "NOT_FOUND"}
	kindUnavailable  = errorKind{HTTPStatus: http.StatusServiceUnavailable, Reason: "upstreamUnavailable", Status: "UNAVAILABLE"}
	kindInternal     = errorKind{HTTPStatus: http.StatusInternalServerError, Reason: "internalError", Status: "INTERNAL"}
)

// errorKinds is checked in order; the first sentinel found in the chain wins.
var errorKinds = []struct {
	target error
	kind   errorKind
}{
	{target: usecase.ErrInvalidInput, kind: kindInvalidInput},
	{target: usecase.ErrNotFound, kind: kindNotFound},
	{target: usecase.ErrDependencyUnavailable, kind: kindUnavailable},
	{target: draw.ErrSourceUnavailable, kind: kindUnavailable},
}

func classifyError(err error) errorKind {
	for _, candidate := range errorKinds {
		if errors.Is(err, candidate.target) {
			return candidate.kind
		}
	}
	return kindInternal
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	ctx, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(ctx, w, status, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       data,
	})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := classifyError(err)
	if kind == kindUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(unavailableRetryAfter))
	}
	writeErrorKind(ctx, w, kind, err.Error())
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	writeErrorKind(ctx, w, kindInternal, "internal server error")
}

func writeErrorKind(ctx context.Context, w http.ResponseWriter, kind errorKind, message string) {
	writeJSON(ctx, w, kind.HTTPStatus, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    kind.HTTPStatus,
			Message: message,
			Status:  kind.Status,
			Errors: []googleErrorItem{{
				Domain:  errorDomain,
				Reason:  kind.Reason,
				Message: message,
			}},
		},
	})
}
