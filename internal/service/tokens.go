package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

const workspaceTokenType = "workspace"

// WorkspaceClaims are the claims of a workspace token.
type WorkspaceClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// WorkspaceTokens signs and validates the tokens that bind a browser tab to
// its workspace.
type WorkspaceTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewWorkspaceTokens creates a signer. A zero ttl issues tokens without
// expiry.
func NewWorkspaceTokens(secret string, ttl time.Duration) (*WorkspaceTokens, error) {
	if secret == "" {
		return nil, errors.New("workspace secret is empty")
	}
	return &WorkspaceTokens{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token for workspaceID.
func (t *WorkspaceTokens) Issue(workspaceID string) (string, error) {
	now := time.Now()
	claims := WorkspaceClaims{
		Type: workspaceTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  workspaceID,
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   "doc-intake-bfa",
		},
	}
	if t.ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates tokenString and returns the workspace id it carries.
func (t *WorkspaceTokens) Parse(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &WorkspaceClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", &domain.ErrUnauthorized{Message: "invalid or expired workspace token"}
	}

	claims, ok := token.Claims.(*WorkspaceClaims)
	if !ok || !token.Valid || claims.Type != workspaceTokenType || claims.Subject == "" {
		return "", &domain.ErrUnauthorized{Message: "invalid workspace token"}
	}
	return claims.Subject, nil
}
