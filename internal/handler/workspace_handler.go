package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Workspace lifecycle
// ============================================================

type createWorkspaceResponse struct {
	Token     string       `json:"token"`
	Workspace service.View `json:"workspace"`
}

func createWorkspaceHandler(registry *service.WorkspaceRegistry, tokens *service.WorkspaceTokens, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/workspaces")
		defer span.End()

		ws, err := registry.Create(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		token, err := tokens.Issue(ws.ID())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set(WorkspaceTokenHeader, token)
		writeJSON(w, http.StatusCreated, createWorkspaceResponse{Token: token, Workspace: view(ws)})
	}
}

func getWorkspaceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeView(w, http.StatusOK, WorkspaceFromContext(r.Context()))
	}
}

func resetWorkspaceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := WorkspaceFromContext(r.Context())
		ws.Reset()
		writeView(w, http.StatusOK, ws)
	}
}

func setOptionsHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := WorkspaceFromContext(r.Context())

		var req domain.AnalysisOptions
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ws.SetOptions(req)
		writeView(w, http.StatusOK, ws)
	}
}

// ============================================================
// Document intake
// ============================================================

func uploadHandler(maxBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/workspace/upload")
		defer span.End()
		ws := WorkspaceFromContext(ctx)

		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit))
				return
			}
			writeError(w, http.StatusBadRequest, "expected a multipart form with a file")
			return
		}
		defer r.MultipartForm.RemoveAll()

		var headers []*multipart.FileHeader
		for _, key := range []string{"file", "files"} {
			headers = append(headers, r.MultipartForm.File[key]...)
		}

		files := make([]domain.FileUpload, 0, len(headers))
		for _, fh := range headers {
			f, err := readFile(fh)
			if err != nil {
				logger.Warn("reading uploaded file failed", zap.String("file_name", fh.Filename), zap.Error(err))
				writeError(w, http.StatusBadRequest, "could not read the uploaded file")
				return
			}
			files = append(files, f)
		}

		err := ws.Upload().Drop(ctx, files)
		writeAction(w, ws, "", err, logger)
	}
}

func readFile(fh *multipart.FileHeader) (domain.FileUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.FileUpload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.FileUpload{}, err
	}
	return domain.FileUpload{
		Name:     fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

type textRequest struct {
	Text string `json:"text"`
}

func editTextHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := WorkspaceFromContext(r.Context())

		var req textRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ws.Upload().EditText(req.Text)
		writeView(w, http.StatusOK, ws)
	}
}

// ============================================================
// Analysis
// ============================================================

func analyzeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/workspace/analyze")
		defer span.End()
		ws := WorkspaceFromContext(ctx)

		if r.URL.Query().Get("async") == "true" {
			outcome, err := ws.AnalyzeAsync(ctx)
			writeAsync(w, ws, outcome, err, logger)
			return
		}
		outcome, err := ws.Analyze(ctx)
		writeAction(w, ws, outcome, err, logger)
	}
}

// writeAsync answers 202 when work was handed to the background.
func writeAsync(w http.ResponseWriter, ws *service.Workspace, outcome service.Outcome, err error, logger *zap.Logger) {
	if err != nil || outcome != service.OutcomeDispatched {
		writeAction(w, ws, outcome, err, logger)
		return
	}
	writeJSON(w, http.StatusAccepted, actionResponse{Outcome: outcome, Workspace: view(ws)})
}

type disclaimerRequest struct {
	Input string `json:"input"`
}

func disclaimerInputHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := WorkspaceFromContext(r.Context())

		var req disclaimerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ws.Disclaimer().SetInput(req.Input)
		writeView(w, http.StatusOK, ws)
	}
}

func disclaimerConfirmHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/workspace/disclaimer/confirm")
		defer span.End()
		ws := WorkspaceFromContext(ctx)

		if r.URL.Query().Get("async") == "true" {
			_, err := ws.ConfirmDisclaimerAsync(ctx)
			writeAsync(w, ws, service.OutcomeDispatched, err, logger)
			return
		}
		_, err := ws.ConfirmDisclaimer(ctx)
		writeAction(w, ws, service.OutcomeDispatched, err, logger)
	}
}

func disclaimerCancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := WorkspaceFromContext(r.Context())
		ws.Disclaimer().Cancel()
		writeView(w, http.StatusOK, ws)
	}
}

type tabRequest struct {
	Tab string `json:"tab"`
}

func setTabHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := WorkspaceFromContext(r.Context())

		var req tabRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		tab, err := domain.ParseTab(req.Tab)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		docType := domain.ParseDocumentType(chi.URLParam(r, "type"))
		if err := ws.SetTab(docType, tab); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeView(w, http.StatusOK, ws)
	}
}

func resetReportHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := WorkspaceFromContext(r.Context())

		docType := domain.ParseDocumentType(chi.URLParam(r, "type"))
		if err := ws.ResetReport(docType); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeView(w, http.StatusOK, ws)
	}
}

// ============================================================
// Unsupported documents
// ============================================================

type waitlistEmailRequest struct {
	Email string `json:"email"`
}

func waitlistEmailHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := WorkspaceFromContext(r.Context())

		var req waitlistEmailRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := ws.Upload().SetWaitlistEmail(req.Email); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeView(w, http.StatusOK, ws)
	}
}

func waitlistSubmitHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/workspace/waitlist")
		defer span.End()
		ws := WorkspaceFromContext(ctx)

		if err := ws.Upload().SubmitWaitlist(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeView(w, http.StatusOK, ws)
	}
}

func dismissUnsupportedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := WorkspaceFromContext(r.Context())
		ws.Upload().DismissUnsupported()
		writeView(w, http.StatusOK, ws)
	}
}
