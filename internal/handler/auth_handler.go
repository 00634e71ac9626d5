package handler

import (
	"net/http"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Account & credits
// ============================================================

func signupHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/workspace/auth/signup")
		defer span.End()
		ws := WorkspaceFromContext(ctx)

		var req domain.Credentials
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		err := ws.Session().Signup(ctx, req)
		writeAction(w, ws, "", err, logger)
	}
}

func loginHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/workspace/auth/login")
		defer span.End()
		ws := WorkspaceFromContext(ctx)

		var req domain.Credentials
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		err := ws.Session().Login(ctx, req)
		writeAction(w, ws, "", err, logger)
	}
}

func logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/workspace/auth/logout")
		defer span.End()
		ws := WorkspaceFromContext(ctx)

		ws.Session().Logout(ctx)
		writeView(w, http.StatusOK, ws)
	}
}

type modalRequest struct {
	Open bool `json:"open"`
}

func authModalHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := WorkspaceFromContext(r.Context())

		var req modalRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Open {
			ws.Session().OpenModal()
		} else {
			ws.Session().CloseModal()
		}
		writeView(w, http.StatusOK, ws)
	}
}

func historyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/workspace/history")
		defer span.End()
		ws := WorkspaceFromContext(ctx)

		ws.Session().FetchHistory(ctx)
		writeJSON(w, http.StatusOK, domain.HistoryResponse{Uploads: ws.Session().Snapshot().History})
	}
}

func unlockHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/workspace/unlock")
		defer span.End()
		ws := WorkspaceFromContext(ctx)

		var req domain.UnlockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := ws.Session().Unlock(ctx, req.DocumentHash)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func checkoutHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/workspace/checkout")
		defer span.End()
		ws := WorkspaceFromContext(ctx)

		var req domain.CheckoutRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := ws.Session().Checkout(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func checkUnlockHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/workspace/unlock/{hash}")
		defer span.End()
		ws := WorkspaceFromContext(ctx)

		status, err := ws.Session().CheckUnlock(ctx, chi.URLParam(r, "hash"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
