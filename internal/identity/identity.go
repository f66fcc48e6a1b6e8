// Package identity verifies the caller's bearer token before any gateway work starts.
package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-gateway/internal/config"
)

// Provider names accepted by identity.provider.
const (
	ProviderGoTrue = "gotrue"
	ProviderOIDC   = "oidc"
)

// Identity is the verified caller.
type Identity struct {
	// UserID is the caller's stable ID and the seed of their bucket name.
	UserID uuid.UUID

	// Email is informational and may be empty.
	Email string
}

// Verifier turns a raw bearer token into an Identity.
// Implementations return an error wrapping domain.ErrAuthentication for bad tokens.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// New builds the verifier selected by cfg.Provider.
func New(ctx context.Context, cfg config.IdentityConfig, logger zerolog.Logger) (Verifier, error) {
	switch cfg.Provider {
	case "", ProviderGoTrue:
		return NewGoTrueVerifier(cfg, logger), nil
	case ProviderOIDC:
		return NewOIDCVerifier(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Provider)
	}
}

type contextKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	if id == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by the middleware.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}
