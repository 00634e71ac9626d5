package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

// actionResponse wraps the workspace after a mutating call. Error carries
// a backend failure that was already turned into a notice.
type actionResponse struct {
	Outcome   service.Outcome `json:"outcome,omitempty"`
	Error     string          `json:"error,omitempty"`
	Workspace service.View    `json:"workspace"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// view renders ws and hands the queued notices to the caller.
func view(ws *service.Workspace) service.View {
	v := ws.View()
	v.Notices = ws.DrainNotices()
	return v
}

func writeView(w http.ResponseWriter, status int, ws *service.Workspace) {
	writeJSON(w, status, view(ws))
}

// writeAction answers a coordinator call. Client mistakes map to 4xx;
// backend failures already surfaced as notices still answer with the
// workspace so the front end can render them.
func writeAction(w http.ResponseWriter, ws *service.Workspace, outcome service.Outcome, err error, logger *zap.Logger) {
	if err != nil && isClientError(err) {
		handleServiceError(w, err, logger)
		return
	}

	resp := actionResponse{Outcome: outcome}
	if err != nil {
		logger.Warn("action failed", zap.String("workspace_id", ws.ID()), zap.Error(err))
		resp.Error = err.Error()
	}
	resp.Workspace = view(ws)
	writeJSON(w, http.StatusOK, resp)
}

func isClientError(err error) bool {
	var validation *domain.ErrValidation
	var notFound *domain.ErrNotFound
	var unauthorized *domain.ErrUnauthorized
	var paymentRequired *domain.ErrPaymentRequired
	return errors.As(err, &validation) ||
		errors.As(err, &notFound) ||
		errors.As(err, &unauthorized) ||
		errors.As(err, &paymentRequired)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var paymentRequired *domain.ErrPaymentRequired
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &paymentRequired):
		logger.Info("payment required", zap.String("error", err.Error()))
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.As(err, &external):
		logger.Error("analyzer backend error", zap.Error(err))
		msg := domain.DetailOf(err)
		if msg == "" {
			msg = "analyzer backend unavailable"
		}
		writeError(w, http.StatusBadGateway, msg)
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
