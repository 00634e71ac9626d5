package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/port"

	"go.uber.org/zap"
)

// TokenKey is the storage key of the auth token.
const TokenKey = "auth_token"

const (
	msgAuthFailed      = "Something went wrong. Please try again."
	msgAuthUnavailable = "The service is temporarily unavailable. Please try again shortly."
	msgAuthMissing     = "Email and password are required."
)

// SessionCoordinator holds the login state of one workspace. The token is
// mirrored in durable storage under TokenKey so a new workspace for the same
// id can restore it.
type SessionCoordinator struct {
	backend   port.AuthBackend
	unlocker  port.ReportUnlocker
	store     port.TokenStore
	namespace string
	logger    *zap.Logger

	mu        sync.Mutex
	token     string
	email     *string
	credits   int
	modalOpen bool
	authError string
	loading   bool
	history   []domain.HistoryEntry
}

// NewSessionCoordinator creates a logged-out session. namespace scopes the
// durable token, normally the workspace id.
func NewSessionCoordinator(
	backend port.AuthBackend,
	unlocker port.ReportUnlocker,
	store port.TokenStore,
	namespace string,
	logger *zap.Logger,
) *SessionCoordinator {
	return &SessionCoordinator{
		backend:   backend,
		unlocker:  unlocker,
		store:     store,
		namespace: namespace,
		logger:    logger,
	}
}

// Signup creates an account and logs in. Failures land in AuthError.
func (s *SessionCoordinator) Signup(ctx context.Context, creds domain.Credentials) error {
	ctx, span := tracer.Start(ctx, "SessionCoordinator.Signup")
	defer span.End()
	return s.authenticate(ctx, creds, s.backend.Signup)
}

// Login opens a session. Failures land in AuthError.
func (s *SessionCoordinator) Login(ctx context.Context, creds domain.Credentials) error {
	ctx, span := tracer.Start(ctx, "SessionCoordinator.Login")
	defer span.End()
	return s.authenticate(ctx, creds, s.backend.Login)
}

func (s *SessionCoordinator) authenticate(
	ctx context.Context,
	creds domain.Credentials,
	fn func(context.Context, domain.Credentials) (*domain.AuthResponse, error),
) error {
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		s.setAuthError(msgAuthMissing)
		return &domain.ErrValidation{Field: "credentials", Message: msgAuthMissing}
	}

	s.mu.Lock()
	s.loading = true
	s.authError = ""
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	resp, err := fn(ctx, creds)
	if err == nil && (resp == nil || resp.Token == nil || *resp.Token == "") {
		msg := msgAuthFailed
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		err = &domain.ErrUnauthorized{Message: msg}
	}
	if err != nil {
		msg := authErrorMessage(err)
		s.setAuthError(msg)
		s.logger.Info("authentication failed", zap.String("email", creds.Email), zap.Error(err))
		return &domain.ErrUnauthorized{Message: msg}
	}

	email := creds.Email
	credits := 0
	if resp.User != nil {
		if resp.User.Email != "" {
			email = resp.User.Email
		}
		credits = resp.User.Credits
	}

	s.mu.Lock()
	s.token = *resp.Token
	s.email = &email
	s.credits = credits
	s.modalOpen = false
	s.authError = ""
	s.mu.Unlock()

	if err := s.store.Set(ctx, s.namespace, TokenKey, *resp.Token); err != nil {
		s.logger.Warn("persisting auth token failed", zap.Error(err))
	}
	s.logger.Info("user logged in", zap.String("email", email))

	s.FetchHistory(ctx)
	return nil
}

// authErrorMessage picks the text shown under the auth form.
func authErrorMessage(err error) string {
	var unauthorized *domain.ErrUnauthorized
	var circuitOpen *domain.ErrCircuitOpen
	switch {
	case domain.DetailOf(err) != "":
		return domain.DetailOf(err)
	case errors.As(err, &unauthorized) && unauthorized.Message != "":
		return unauthorized.Message
	case errors.As(err, &circuitOpen):
		return msgAuthUnavailable
	}
	return msgAuthFailed
}

func (s *SessionCoordinator) setAuthError(msg string) {
	s.mu.Lock()
	s.authError = msg
	s.mu.Unlock()
}

// Logout tells the backend and clears local state. The backend call is best
// effort; local state is cleared regardless.
func (s *SessionCoordinator) Logout(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "SessionCoordinator.Logout")
	defer span.End()

	token := s.Token()
	if token != "" {
		if err := s.backend.Logout(ctx, token); err != nil {
			s.logger.Debug("backend logout failed", zap.Error(err))
		}
	}
	s.clear(ctx)
}

func (s *SessionCoordinator) clear(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.email = nil
	s.credits = 0
	s.history = nil
	s.authError = ""
	s.mu.Unlock()

	if err := s.store.Delete(ctx, s.namespace, TokenKey); err != nil {
		s.logger.Warn("deleting auth token failed", zap.Error(err))
	}
}

// Restore validates a persisted token on mount. A token the backend rejects
// is purged silently; a transient failure keeps it for the next mount but
// leaves the session logged out.
func (s *SessionCoordinator) Restore(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "SessionCoordinator.Restore")
	defer span.End()

	token, ok, err := s.store.Get(ctx, s.namespace, TokenKey)
	if err != nil {
		s.logger.Warn("reading auth token failed", zap.Error(err))
		return nil
	}
	if !ok || token == "" {
		return nil
	}

	me, err := s.backend.Me(ctx, token)
	if err != nil {
		switch domain.StatusCodeOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			s.logger.Info("stored token rejected, purging")
			s.clear(ctx)
		default:
			s.logger.Warn("session restore failed", zap.Error(err))
		}
		return nil
	}
	if me == nil || !me.Authenticated || me.User == nil {
		s.logger.Info("stored token no longer authenticated, purging")
		s.clear(ctx)
		return nil
	}

	email := me.User.Email
	s.mu.Lock()
	s.token = token
	s.email = &email
	s.credits = me.User.Credits
	s.mu.Unlock()

	s.FetchHistory(ctx)
	return nil
}

// FetchHistory reloads the history list. Without a token it does nothing;
// errors are logged and the current list is kept.
func (s *SessionCoordinator) FetchHistory(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "SessionCoordinator.FetchHistory")
	defer span.End()

	token := s.Token()
	if token == "" {
		return
	}
	entries, err := s.backend.History(ctx, token)
	if err != nil {
		s.logger.Warn("fetching history failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.token == token {
		s.history = entries
	}
	s.mu.Unlock()
}

// Unlock spends a credit on the report identified by documentHash.
func (s *SessionCoordinator) Unlock(ctx context.Context, documentHash string) (*domain.UnlockResponse, error) {
	ctx, span := tracer.Start(ctx, "SessionCoordinator.Unlock")
	defer span.End()

	if documentHash == "" {
		return nil, &domain.ErrValidation{Field: "document_hash", Message: "required"}
	}
	token := s.Token()
	if token == "" {
		s.OpenModal()
		return nil, &domain.ErrUnauthorized{Message: "Log in to unlock full reports."}
	}

	resp, err := s.unlocker.UnlockReport(ctx, token, documentHash)
	if err != nil {
		var unauthorized *domain.ErrUnauthorized
		if errors.As(err, &unauthorized) {
			s.clear(ctx)
			s.OpenModal()
		}
		return nil, err
	}

	s.mu.Lock()
	if s.token == token {
		s.credits = resp.Credits
	}
	s.mu.Unlock()
	return resp, nil
}

// Checkout starts a card payment for documentHash. Like Unlock it needs a
// logged-in session and opens the auth form otherwise.
func (s *SessionCoordinator) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	ctx, span := tracer.Start(ctx, "SessionCoordinator.Checkout")
	defer span.End()

	switch {
	case req.DocumentHash == "":
		return nil, &domain.ErrValidation{Field: "document_hash", Message: "required"}
	case req.SuccessURL == "":
		return nil, &domain.ErrValidation{Field: "success_url", Message: "required"}
	case req.CancelURL == "":
		return nil, &domain.ErrValidation{Field: "cancel_url", Message: "required"}
	}
	token := s.Token()
	if token == "" {
		s.OpenModal()
		return nil, &domain.ErrUnauthorized{Message: "Log in to purchase a full report."}
	}

	resp, err := s.unlocker.CreateCheckout(ctx, token, req)
	if err != nil {
		var unauthorized *domain.ErrUnauthorized
		if errors.As(err, &unauthorized) {
			s.clear(ctx)
			s.OpenModal()
		}
		s.logger.Warn("checkout failed", zap.String("document_hash", req.DocumentHash), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// CheckUnlock reports whether documentHash is unlocked for this session.
func (s *SessionCoordinator) CheckUnlock(ctx context.Context, documentHash string) (*domain.UnlockStatus, error) {
	ctx, span := tracer.Start(ctx, "SessionCoordinator.CheckUnlock")
	defer span.End()

	if documentHash == "" {
		return nil, &domain.ErrValidation{Field: "document_hash", Message: "required"}
	}
	return s.unlocker.CheckUnlock(ctx, s.Token(), documentHash)
}

// Token returns the bearer token, "" when logged out.
func (s *SessionCoordinator) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// OpenModal shows the auth form.
func (s *SessionCoordinator) OpenModal() {
	s.mu.Lock()
	s.modalOpen = true
	s.mu.Unlock()
}

// CloseModal hides the auth form and clears its error.
func (s *SessionCoordinator) CloseModal() {
	s.mu.Lock()
	s.modalOpen = false
	s.authError = ""
	s.mu.Unlock()
}

// Snapshot returns the client-visible session state.
func (s *SessionCoordinator) Snapshot() domain.AuthSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := domain.AuthSession{
		IsLoggedIn: s.token != "",
		Credits:    s.credits,
		ModalOpen:  s.modalOpen,
		AuthError:  s.authError,
		Loading:    s.loading,
		History:    append([]domain.HistoryEntry(nil), s.history...),
	}
	if s.email != nil {
		e := *s.email
		out.UserEmail = &e
	}
	return out
}
