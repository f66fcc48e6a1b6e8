package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-gateway/internal/config"
	"github.com/prn-tf/alexander-gateway/internal/domain"
)

// goTrueUserPath is the GoTrue endpoint that resolves an access token to its user.
const goTrueUserPath = "/auth/v1/user"

// GoTrueVerifier asks a GoTrue (Supabase Auth) server who owns the token.
type GoTrueVerifier struct {
	userURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewGoTrueVerifier creates a verifier for cfg.AuthURL.
// An empty AuthURL yields a verifier that fails with domain.ErrConfiguration.
func NewGoTrueVerifier(cfg config.IdentityConfig, logger zerolog.Logger) *GoTrueVerifier {
	v := &GoTrueVerifier{
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "identity").Str("provider", ProviderGoTrue).Logger(),
	}
	if cfg.AuthURL != "" {
		v.userURL = strings.TrimRight(cfg.AuthURL, "/") + goTrueUserPath
	}
	return v
}

type goTrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verify implements Verifier.
func (v *GoTrueVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if v.userURL == "" {
		return nil, fmt.Errorf("%w: identity auth_url is not set", domain.ErrConfiguration)
	}
	if token == "" {
		return nil, domain.ErrAuthentication
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Warn().Err(err).Msg("identity provider unreachable")
		return nil, fmt.Errorf("%w: identity provider unreachable", domain.ErrAuthentication)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		v.logger.Debug().Int("status", resp.StatusCode).Msg("token rejected")
		return nil, domain.ErrAuthentication
	}

	var user goTrueUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: malformed user response", domain.ErrAuthentication)
	}

	id, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id %q is not a UUID", domain.ErrAuthentication, user.ID)
	}

	return &Identity{UserID: id, Email: user.Email}, nil
}

// Ensure GoTrueVerifier implements Verifier.
var _ Verifier = (*GoTrueVerifier)(nil)
