package identity

import (
	"net/http"
	"strings"

	"github.com/prn-tf/alexander-gateway/internal/domain"
)

// ErrorHandler writes the response for a request that failed verification.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware requires Authorization: Bearer <token> and stores the verified
// Identity in the request context. Preflight OPTIONS requests pass through.
func Middleware(v Verifier, onError ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				onError(w, r, domain.ErrAuthentication)
				return
			}

			id, err := v.Verify(r.Context(), token)
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
