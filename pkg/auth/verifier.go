package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storefront-kit/cartengine/pkg/config"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
)

// Verifier validates bearer tokens minted by the commerce backend and
// extracts the identity they carry.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier builds a token verifier from the JWT configuration.
func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &Verifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer}, nil
}

// ParseIdentity verifies the token signature, issuer and expiry, and
// returns the authenticated identity from the subject claim.
func (v *Verifier) ParseIdentity(token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no subject")
	}

	return Identity{Authenticated: true, UserID: subject}, nil
}
