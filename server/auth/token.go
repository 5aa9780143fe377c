// Package auth resolves the reader identity carried by an HS256 access token.
package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	// Issuer is the issuer of minted access tokens.
	Issuer = "smartlibrarian"
	// KeyID is the key id written to the token header.
	KeyID = "v1"
	// AccessTokenCookieName is the cookie holding the access token.
	AccessTokenCookieName = "access_token"
)

// Claims is the payload of an access token. Subject is the owner id.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateAccessToken mints a token for owner. A zero ttl never expires.
func GenerateAccessToken(owner string, secret []byte, ttl time.Duration) (string, error) {
	if owner == "" {
		return "", errors.New("owner is required")
	}
	now := time.Now()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:   Issuer,
		Subject:  owner,
		IssuedAt: jwt.NewNumericDate(now),
	}}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = KeyID
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign access token")
	}
	return signed, nil
}

// ParseAccessToken validates token and returns its subject.
func ParseAccessToken(token string, secret []byte) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.Wrap(err, "invalid access token")
	}
	if claims.Subject == "" {
		return "", errors.New("access token has no subject")
	}
	return claims.Subject, nil
}

// Authenticator extracts the owner from a request.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Owner returns the owner id from the Authorization bearer token or the
// access_token cookie, in that order. An empty secret authenticates nobody.
func (a *Authenticator) Owner(r *http.Request) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("authentication is not configured")
	}
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		if c, err := r.Cookie(AccessTokenCookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return "", errors.New("no access token")
	}
	return ParseAccessToken(token, a.secret)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
