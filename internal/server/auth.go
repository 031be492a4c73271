package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ownerKey struct{}

// OwnerHeader carries the owner id when authentication is disabled.
const OwnerHeader = "X-Owner-ID"

// authenticator verifies HS256 bearer tokens and puts the subject in the
// request context as the owner id. With no secret every request passes and
// the owner comes from OwnerHeader.
type authenticator struct {
	secret []byte
	issuer string
}

func newAuthenticator(secret, issuer string) *authenticator {
	return &authenticator{secret: []byte(secret), issuer: issuer}
}

func (a *authenticator) enabled() bool {
	return len(a.secret) > 0
}

func (a *authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if a.enabled() {
			sub, err := a.subject(r.Header.Get("Authorization"))
			if err != nil {
				respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "No autenticado"})
				return
			}
			owner = sub
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func (a *authenticator) subject(header string) (string, error) {
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenStr) == "" {
		return "", errors.New("missing bearer token")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenStr), &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token without subject")
	}
	return sub, nil
}

// ownerFrom returns the owner id set by the auth middleware, or "".
func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
