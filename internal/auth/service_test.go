package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/auth"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
	"github.com/noah-isme/backend-kasir/internal/user"
)

const secret = "test-secret"

func newAuth(t *testing.T) (*auth.Service, *user.Service) {
	t.Helper()
	users := user.NewService(store.NewMemoryKV())
	users.Params = &argon2id.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	_, err := users.Create(context.Background(), user.Input{Username: "ana", Name: "Ana", Password: "password1", Role: "cashier"})
	require.NoError(t, err)
	svc, err := auth.NewService(auth.Config{Users: users, Secret: secret, AccessTokenTTL: time.Hour})
	require.NoError(t, err)
	return svc, users
}

func TestLoginIssuesTokenWithActorClaims(t *testing.T) {
	svc, _ := newAuth(t)

	result, err := svc.Login(context.Background(), "Ana", "password1")
	require.NoError(t, err)
	require.Equal(t, "ana", result.User.Username)

	actor, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, result.User.ID, actor.UserID)
	require.Equal(t, "Ana", actor.UserName)
	require.Equal(t, model.RoleCashier, actor.Role)

	_, err = svc.Login(context.Background(), "ana", "nope")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestParseAccessTokenRejectsExpiredAndForeign(t *testing.T) {
	svc, _ := newAuth(t)
	issued := time.Now()
	svc.WithNow(func() time.Time { return issued })
	result, err := svc.Login(context.Background(), "ana", "password1")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return issued.Add(2 * time.Hour) })
	_, err = svc.ParseAccessToken(result.AccessToken)
	require.Error(t, err)

	svc.WithNow(time.Now)
	tok, err := jwt.NewBuilder().Subject("x").Issuer("backend-kasir").Audience([]string{"kasir-pos"}).
		Expiration(time.Now().Add(time.Hour)).Claim("role", "admin").Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("other-secret")))
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(string(signed))
	require.Error(t, err)
}

func TestTokenValidatorRequiresKnownRole(t *testing.T) {
	now := time.Now()
	tok, err := jwt.NewBuilder().Subject("u1").Issuer("iss").Audience([]string{"aud"}).
		Expiration(now.Add(time.Minute)).Claim("role", "owner").Build()
	require.NoError(t, err)

	v := auth.TokenValidator{Issuer: "iss", Audience: "aud", Algorithm: jwa.HS256}
	_, err = v.Validate(tok, jwa.HS256, now)
	require.Error(t, err)

	_, err = v.Validate(tok, jwa.RS256, now)
	require.Error(t, err)

	require.NoError(t, tok.Set("role", "admin"))
	require.NoError(t, tok.Set("name", "Root"))
	actor, err := v.Validate(tok, jwa.HS256, now)
	require.NoError(t, err)
	require.Equal(t, model.Actor{UserID: "u1", UserName: "Root", Role: model.RoleAdmin}, actor)
}

func TestMiddlewareAndRoles(t *testing.T) {
	svc, _ := newAuth(t)
	result, err := svc.Login(context.Background(), "ana", "password1")
	require.NoError(t, err)

	mw := auth.Middleware{Service: svc}
	adminOnly := mw.RequireAuth(auth.RequireRole(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	anyRole := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := common.ActorFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(actor.UserName))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	anyRole.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+result.AccessToken)
	rec = httptest.NewRecorder()
	anyRole.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ana", rec.Body.String())

	rec = httptest.NewRecorder()
	adminOnly.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginHandler(t *testing.T) {
	svc, _ := newAuth(t)
	h := &auth.Handler{Service: svc}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"ana","password":"password1"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "accessToken")
	require.NotContains(t, rec.Body.String(), "passwordHash")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"ana"}`))
	rec = httptest.NewRecorder()
	h.Login(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
