package identity

import (
	"context"
	"errors"
	"fmt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-gateway/internal/config"
	"github.com/prn-tf/alexander-gateway/internal/domain"
)

// OIDCVerifier validates JWT access tokens locally against the issuer's keys.
// The token subject must be the user's UUID.
type OIDCVerifier struct {
	verifier *gooidc.IDTokenVerifier
	logger   zerolog.Logger
}

// NewOIDCVerifier uses issuer discovery when cfg.Issuer is set and JWKSURL is not,
// otherwise the JWKS URL directly.
func NewOIDCVerifier(ctx context.Context, cfg config.IdentityConfig, logger zerolog.Logger) (*OIDCVerifier, error) {
	oidcCfg := oidcConfig(cfg)

	switch {
	case cfg.JWKSURL != "":
		ks := gooidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
		if cfg.Issuer == "" {
			oidcCfg.SkipIssuerCheck = true
		}
		return newOIDCVerifier(gooidc.NewVerifier(cfg.Issuer, ks, oidcCfg), logger), nil

	case cfg.Issuer != "":
		provider, err := gooidc.NewProvider(ctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("oidc provider discovery failed: %w", err)
		}
		return newOIDCVerifier(provider.Verifier(oidcCfg), logger), nil

	default:
		return nil, errors.New("oidc requires identity.issuer or identity.jwks_url")
	}
}

func oidcConfig(cfg config.IdentityConfig) *gooidc.Config {
	return &gooidc.Config{
		ClientID:          cfg.Audience,
		SkipClientIDCheck: cfg.Audience == "",
		SkipIssuerCheck:   cfg.SkipIssuerCheck,
	}
}

func newOIDCVerifier(v *gooidc.IDTokenVerifier, logger zerolog.Logger) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: v,
		logger:   logger.With().Str("component", "identity").Str("provider", ProviderOIDC).Logger(),
	}
}

// Verify implements Verifier.
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, domain.ErrAuthentication
	}

	idt, err := v.verifier.Verify(ctx, token)
	if err != nil {
		v.logger.Debug().Err(err).Msg("token rejected")
		return nil, domain.ErrAuthentication
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idt.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: malformed claims", domain.ErrAuthentication)
	}

	id, err := uuid.Parse(idt.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject %q is not a UUID", domain.ErrAuthentication, idt.Subject)
	}

	return &Identity{UserID: id, Email: claims.Email}, nil
}

// Ensure OIDCVerifier implements Verifier.
var _ Verifier = (*OIDCVerifier)(nil)
