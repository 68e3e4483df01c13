package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
)

// Verifier validates bearer tokens issued by the upstream auth service.
// Tokens are HS256-signed with a shared secret; the subject claim carries
// the user id every API route is scoped to.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a token verifier from auth config
func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// ValidateToken validates a JWT and returns the subject user id
func (v *Verifier) ValidateToken(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// IsConfigured returns true if a signing secret is configured
func (v *Verifier) IsConfigured() bool {
	return len(v.secret) > 0
}
