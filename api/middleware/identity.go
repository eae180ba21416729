package middleware

import (
	"net/http"
	"strings"

	"github.com/storefront-kit/cartengine/api/responses"
	"github.com/storefront-kit/cartengine/pkg/auth"
	"github.com/storefront-kit/cartengine/pkg/logger"
)

// Identity seeds the request context with the bearer identity. A
// missing Authorization header leaves the request anonymous: carts work
// without an account, only sync demands authentication. A present but
// invalid token is rejected so a stale session never masquerades as
// anonymous.
func Identity(verifier *auth.Verifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" || verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}

			identity, err := verifier.ParseIdentity(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := auth.WithIdentity(r.Context(), identity)
			if logg != nil {
				ctx = logg.WithCustomerID(ctx, identity.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
