package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
)

// Middleware resolves the operator behind a bearer token.
type Middleware struct {
	Service *Service
}

// Authenticate attaches the operator when the request carries a valid token
// and passes anonymous or invalid requests through untouched. Mounted globally
// so request logs and the audit trail know who acted.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor, err := m.resolve(r); err == nil {
			r = r.WithContext(common.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 unless an operator was resolved for the request.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := common.ActorFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := m.resolve(r)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				common.WriteError(w, appErr)
				return
			}
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithActor(r.Context(), actor)))
	})
}

// RequireRole answers 403 for operators outside roles. Runs after RequireAuth.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := common.ActorFromContext(r.Context())
			switch {
			case !ok:
				unauthorized(w)
			case !slices.Contains(roles, actor.Role):
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "this operation needs role "+joinRoles(roles), nil)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func (m Middleware) resolve(r *http.Request) (model.Actor, error) {
	if m.Service == nil {
		return model.Actor{}, errors.New("auth: service not configured")
	}
	token, ok := bearer(r.Header.Get("Authorization"))
	if !ok {
		return model.Actor{}, errors.New("auth: no bearer token")
	}
	return m.Service.ParseAccessToken(token)
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
}

func joinRoles(roles []model.Role) string {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return strings.Join(names, " or ")
}
