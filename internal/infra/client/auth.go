package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
)

// Signup creates an account. Non-2xx answers keep their detail message in
// the returned error (see domain.DetailOf).
func (c *BackendClient) Signup(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error) {
	return c.authenticate(ctx, "signup", "/api/auth/signup", creds)
}

// Login opens a session for an existing account.
func (c *BackendClient) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error) {
	return c.authenticate(ctx, "login", "/api/auth/login", creds)
}

func (c *BackendClient) authenticate(ctx context.Context, op, path string, creds domain.Credentials) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	if err := c.do(ctx, call{op: op, method: http.MethodPost, path: path, body: creds}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the server-side session.
func (c *BackendClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, call{op: "logout", method: http.MethodPost, path: "/api/auth/logout", token: token}, nil)
}

// Me validates token against GET /api/auth/me.
func (c *BackendClient) Me(ctx context.Context, token string) (*domain.MeResponse, error) {
	var resp domain.MeResponse
	if err := c.do(ctx, call{op: "me", method: http.MethodGet, path: "/api/auth/me", token: token, retry: true}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists the user's past analyses.
func (c *BackendClient) History(ctx context.Context, token string) ([]domain.HistoryEntry, error) {
	var resp domain.HistoryResponse
	if err := c.do(ctx, call{op: "history", method: http.MethodGet, path: "/api/user/history", token: token, retry: true}, &resp); err != nil {
		return nil, err
	}
	return resp.Uploads, nil
}

// UnlockReport spends one credit on documentHash. A 402 answer becomes
// ErrPaymentRequired, a 401 ErrUnauthorized.
func (c *BackendClient) UnlockReport(ctx context.Context, token, documentHash string) (*domain.UnlockResponse, error) {
	var resp domain.UnlockResponse
	err := c.do(ctx, call{
		op:     "unlock",
		method: http.MethodPost,
		path:   "/api/unlock-report",
		token:  token,
		body:   domain.UnlockRequest{DocumentHash: documentHash},
	}, &resp)
	switch domain.StatusCodeOf(err) {
	case 0:
	case http.StatusPaymentRequired:
		return nil, &domain.ErrPaymentRequired{Message: domain.DetailOf(err)}
	case http.StatusUnauthorized:
		return nil, &domain.ErrUnauthorized{Message: domain.DetailOf(err)}
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckUnlock reports whether documentHash is already unlocked.
func (c *BackendClient) CheckUnlock(ctx context.Context, token, documentHash string) (*domain.UnlockStatus, error) {
	var resp domain.UnlockStatus
	err := c.do(ctx, call{
		op:     "check_unlock",
		method: http.MethodGet,
		path:   "/api/check-unlock/" + url.PathEscape(documentHash),
		token:  token,
		retry:  true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateCheckout opens a payment session for one report unlock. It is never
// retried: a replay could open a second session.
func (c *BackendClient) CreateCheckout(ctx context.Context, token string, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	var resp domain.CheckoutResponse
	err := c.do(ctx, call{
		op:     "checkout",
		method: http.MethodPost,
		path:   "/api/create-checkout-session",
		token:  token,
		body:   req,
	}, &resp)
	if domain.StatusCodeOf(err) == http.StatusUnauthorized {
		return nil, &domain.ErrUnauthorized{Message: domain.DetailOf(err)}
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
