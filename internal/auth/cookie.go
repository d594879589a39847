package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "useradmin_session"
	DefaultIssuer     = "useradmin"
	minSecretLength   = 32
)

// cookieClaims carries only the session id (jti); the snapshot stays on the
// server.
type cookieClaims struct {
	jwt.RegisteredClaims
}

type CookieSigner struct {
	secret  []byte
	issuer  string
	nowFunc func() time.Time
}

func NewCookieSigner(secret, issuer string) (*CookieSigner, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretLength)
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &CookieSigner{secret: []byte(secret), issuer: issuer, nowFunc: time.Now}, nil
}

func (c *CookieSigner) Sign(sess Session) (string, error) {
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Issuer:    c.issuer,
			Subject:   fmt.Sprintf("%d", sess.User.ID),
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}
	return signed, nil
}

// SessionID verifies the signature, issuer and expiry and returns the
// session id the cookie refers to.
func (c *CookieSigner) SessionID(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &cookieClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.nowFunc),
	)
	if err != nil {
		return "", fmt.Errorf("parse session cookie: %w", err)
	}
	claims, ok := parsed.Claims.(*cookieClaims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return "", errors.New("invalid session cookie")
	}
	return claims.ID, nil
}
