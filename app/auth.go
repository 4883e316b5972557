package chatapp

import (
	"context"
	"net/http"
	"strings"

	"github.com/ngophuc29/sockettuBuild/core"
)

type contextKey string

const claimsContextKey contextKey = "authClaims"

// JWTMiddleware rejects requests without a valid Bearer token and stores the
// verified claims in the request context.
func JWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			claims, err := core.VerifyToken(token, secret)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	// websocket clients cannot set headers; allow the token as a query param
	return r.URL.Query().Get("token")
}

// ClaimsFromRequest returns the verified claims stored by JWTMiddleware, nil
// when the request did not pass through it.
func ClaimsFromRequest(r *http.Request) *core.AuthClaims {
	claims, _ := r.Context().Value(claimsContextKey).(*core.AuthClaims)
	return claims
}
