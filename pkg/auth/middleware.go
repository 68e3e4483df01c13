package auth

import (
	"net/http"
	"strings"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	apphttp "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/http"
)

// Middleware returns a chi-compatible middleware that requires a valid
// bearer token on every request and stores the subject user id in the
// request context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "missing bearer token"))
				return
			}

			userID, err := v.ValidateToken(token)
			if err != nil {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
