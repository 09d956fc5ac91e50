// Package auth issues and checks the credentials that tell the moderation
// engine WHO is acting and in WHICH role.
//
// AUTHENTICATION FLOW OVERVIEW:
//
//	staff:   POST /auth/login {username, password} → bcrypt check → JWT
//	members: /auth/github/login → GitHub → /auth/github/callback → JWT
//
// Either way the JWT ends up in an HttpOnly "token" cookie (and in the login
// response body, for API clients that prefer an Authorization header). The
// middleware in this package turns it back into a model.Actor on each
// request.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<user id>","name":"alice","role":"reviewer","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// The role travels inside the signed payload, so role checks need no DB
// lookup. The flip side: a role change takes effect when the old token
// expires.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/greeting-cards/internal/model"
)

const issuer = "greeting-cards"

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and token
// lifetime. The secret should be at least 32 bytes of random data in
// production, e.g. JWT_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token lifetime must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens issued by Generate. Handlers use it as the
// cookie's MaxAge.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// claims is the JWT payload. The user ID goes in the standard "sub" claim;
// name and role are our own.
type claims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Generate creates and signs a token for the user with the service's TTL.
func (s *TokenService) Generate(user *model.User) (string, error) {
	return s.GenerateWithDuration(user, s.ttl)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Tests use it to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(user *model.User, d time.Duration) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("auth: cannot issue a token without a user id")
	}
	if !user.Role.Valid() {
		return "", fmt.Errorf("auth: cannot issue a token for role %q", user.Role)
	}

	now := time.Now()
	c := claims{
		Name: user.Username,
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string and returns the actor it names.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired, and carries an expiry at all
//   - Issuer matches ours
//   - Algorithm is HS256 (rules out the "none" algorithm confusion attack)
//
// On top of that the role claim must be a role we know.
func (s *TokenService) Validate(tokenStr string) (model.Actor, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Actor{}, fmt.Errorf("auth: token expired")
		}
		return model.Actor{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return model.Actor{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return model.Actor{}, fmt.Errorf("auth: token has no subject")
	}

	role := model.Role(c.Role)
	if !role.Valid() {
		return model.Actor{}, fmt.Errorf("auth: token has unknown role %q", c.Role)
	}

	return model.Actor{ID: c.Subject, Name: c.Name, Role: role}, nil
}
