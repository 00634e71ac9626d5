// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
)

// TextExtractor turns an uploaded file into text (POST /api/ocr).
type TextExtractor interface {
	ExtractText(ctx context.Context, req *domain.OCRRequest) (string, error)
}

// Classifier classifies document text (POST /api/classify).
type Classifier interface {
	Classify(ctx context.Context, text string) (*domain.Classification, error)
}

// WaitlistSubmitter records interest in an unsupported document type.
type WaitlistSubmitter interface {
	JoinWaitlist(ctx context.Context, req *domain.WaitlistRequest) error
}

// AnalyzerCaller posts a JSON body to one analyzer endpoint and decodes the
// response into out. An empty token means the call is anonymous.
type AnalyzerCaller interface {
	CallAnalyzer(ctx context.Context, endpoint string, body any, token string, out any) error
}

// AuthBackend is the account side of the analyzer backend.
type AuthBackend interface {
	Signup(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error)
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (*domain.MeResponse, error)
	History(ctx context.Context, token string) ([]domain.HistoryEntry, error)
}

// ReportUnlocker spends credits on premium reports.
type ReportUnlocker interface {
	UnlockReport(ctx context.Context, token, documentHash string) (*domain.UnlockResponse, error)
	CheckUnlock(ctx context.Context, token, documentHash string) (*domain.UnlockStatus, error)
	CreateCheckout(ctx context.Context, token string, req domain.CheckoutRequest) (*domain.CheckoutResponse, error)
}

// ReferenceFetcher loads the COI presets and state rules.
type ReferenceFetcher interface {
	ProjectTypes(ctx context.Context) ([]domain.ProjectType, error)
	States(ctx context.Context) ([]domain.StateRules, error)
	State(ctx context.Context, code string) (*domain.StateDetail, error)
}

// TokenStore is durable key/value storage for the auth token, namespaced
// per workspace.
type TokenStore interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key, value string) error
	Delete(ctx context.Context, namespace, key string) error
}

// OfferCatalog returns the affiliate offers for a document type.
type OfferCatalog interface {
	OffersFor(docType domain.DocumentType) []domain.Offer
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
