package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
)

// ExtractText sends a base64 file to POST /api/ocr.
func (c *BackendClient) ExtractText(ctx context.Context, req *domain.OCRRequest) (string, error) {
	var resp domain.OCRResponse
	err := c.do(ctx, call{
		op:     "ocr",
		method: http.MethodPost,
		path:   "/api/ocr",
		body:   req,
		retry:  true,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Classify calls POST /api/classify. A JSON null body yields (nil, nil).
func (c *BackendClient) Classify(ctx context.Context, text string) (*domain.Classification, error) {
	var resp *domain.Classification
	err := c.do(ctx, call{
		op:     "classify",
		method: http.MethodPost,
		path:   "/api/classify",
		body:   map[string]string{"text": text},
		retry:  true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// JoinWaitlist posts to /api/waitlist. The backend answers
// {success:false} for storage failures; that is reported as an error too.
func (c *BackendClient) JoinWaitlist(ctx context.Context, req *domain.WaitlistRequest) error {
	var resp domain.WaitlistResponse
	if err := c.do(ctx, call{
		op:     "waitlist",
		method: http.MethodPost,
		path:   "/api/waitlist",
		body:   req,
	}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "waitlist rejected the submission"
		}
		return &domain.ErrExternalService{Service: "waitlist", Err: errors.New(msg)}
	}
	return nil
}

// CallAnalyzer posts body to an analyzer endpoint. Analyzer runs are never
// retried: a failed analysis is re-triggered by the user.
func (c *BackendClient) CallAnalyzer(ctx context.Context, endpoint string, body any, token string, out any) error {
	return c.do(ctx, call{
		op:     "analyze",
		method: http.MethodPost,
		path:   endpoint,
		token:  token,
		body:   body,
	}, out)
}
