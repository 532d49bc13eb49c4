package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-kasir/internal/model"
)

const (
	claimName = "name"
	claimRole = "role"
)

// TokenValidator checks issuer, audience, expiry, algorithm and the operator claims.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate returns the actor carried by tok.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) (model.Actor, error) {
	if tok == nil {
		return model.Actor{}, errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return model.Actor{}, errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return model.Actor{}, fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.SubjectKey),
		jwt.WithRequiredClaim(claimRole),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return model.Actor{}, err
	}

	actor := model.Actor{UserID: tok.Subject()}
	if raw, ok := tok.Get(claimName); ok {
		actor.UserName, _ = raw.(string)
	}
	raw, _ := tok.Get(claimRole)
	roleText, _ := raw.(string)
	role, ok := model.ParseRole(roleText)
	if !ok {
		return model.Actor{}, fmt.Errorf("auth: unknown role %q", roleText)
	}
	actor.Role = role
	return actor, nil
}
