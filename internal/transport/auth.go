// Package transport is the websocket boundary: token verification on
// upgrade, a per-connection writer pump, connection tags and attachments,
// and the framing rules shared by the lobby and room endpoints.
package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dicehall/internal/protocol"
)

// Token errors map onto HTTP statuses at upgrade time.
var (
	ErrMissingToken    = errors.New("missing token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token expired")
	ErrKeysUnavailable = errors.New("signing keys unavailable")
)

// Identity is the verified caller extracted from a token.
type Identity struct {
	UserID      string
	DisplayName string
	AvatarSeed  string
}

// Claims defines the JWT claims carried by session tokens.
type Claims struct {
	DisplayName string `json:"displayName,omitempty"`
	AvatarSeed  string `json:"avatarSeed,omitempty"`
	jwt.RegisteredClaims
}

// SessionTTL bounds how long an issued token stays valid.
const SessionTTL = 12 * time.Hour

// Authenticator verifies HMAC-signed session tokens.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator builds an authenticator over a shared secret.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// GenerateToken issues a session token for a user. Mostly used by tests and
// local tooling; production deployments mint tokens in the auth service.
func (a *Authenticator) GenerateToken(id Identity) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrKeysUnavailable
	}
	now := time.Now()
	claims := Claims{
		DisplayName: id.DisplayName,
		AvatarSeed:  id.AvatarSeed,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify parses and validates a token, returning the caller's identity.
func (a *Authenticator) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	if len(a.secret) == 0 {
		return nil, ErrKeysUnavailable
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if a.issuer != "" && claims.Issuer != a.issuer {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID:      claims.Subject,
		DisplayName: claims.DisplayName,
		AvatarSeed:  claims.AvatarSeed,
	}, nil
}

// TokenFromRequest extracts the session token from the Authorization header
// or, for browser websocket clients that cannot set headers, the token query
// parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return h
	}
	return r.URL.Query().Get("token")
}

// StatusForAuthError maps a verification failure to an HTTP status.
func StatusForAuthError(err error) int {
	if errors.Is(err, ErrKeysUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusUnauthorized
}

// CodeForAuthError maps a verification failure to its protocol error code,
// used as the rejection body so clients can switch on it.
func CodeForAuthError(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return protocol.CodeMissingToken
	case errors.Is(err, ErrExpiredToken):
		return protocol.CodeExpiredToken
	case errors.Is(err, ErrKeysUnavailable):
		return protocol.CodeJWKSUnavailable
	default:
		return protocol.CodeInvalidToken
	}
}
