// Package auth resolves who is making a request. Whatever the mode, the
// raw subject is turned into a canonical user id with userid.Normalize
// before it reaches the rest of the application.
package auth

import (
	"context"
	"net/http"
	"strings"

	"kakeibo/internal/log"
	"kakeibo/internal/userid"
)

type contextKey struct{}

// NewContext returns ctx carrying u.
func NewContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the user stored by the middleware.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(contextKey{}).(User)
	return u, ok
}

// Authenticator wraps protected handlers.
type Authenticator interface {
	Middleware(next http.Handler) http.Handler
}

// NewUser normalizes subject into a User.
func NewUser(subject, email, name string) (User, error) {
	id, err := userid.Normalize(subject)
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Subject: subject, Email: email, Name: name}, nil
}

// HeaderAuth trusts a header set by an authenticating reverse proxy.
type HeaderAuth struct {
	header string
	logger *log.Logger
}

func NewHeaderAuth(header string, logger *log.Logger) *HeaderAuth {
	if logger == nil {
		logger = log.Discard()
	}
	return &HeaderAuth{header: header, logger: logger.WithComponent(log.ComponentAuth)}
}

func (a *HeaderAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := strings.TrimSpace(r.Header.Get(a.header))
		u, err := NewUser(subject, "", "")
		if err != nil {
			a.logger.DebugContext(r.Context(), "Missing identity header", "header", a.header)
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), u)))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"authentication required"}` + "\n"))
}
