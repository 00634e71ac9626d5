package handler

import (
	"net/http"

	"github.com/boddenberg/doc-intake-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"

	"go.uber.org/zap"
)

// ============================================================
// Reference data
// ============================================================

func projectTypesHandler(ref *service.ReferenceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reference/project-types")
		defer span.End()

		types, err := ref.ProjectTypes(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, types)
	}
}

func statesHandler(ref *service.ReferenceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reference/states")
		defer span.End()

		states, err := ref.States(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, states)
	}
}

func stateHandler(ref *service.ReferenceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reference/states/{code}")
		defer span.End()

		detail, err := ref.State(ctx, chi.URLParam(r, "code"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}
