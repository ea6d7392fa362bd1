// Package auth issues and verifies the session token pair handed out after a
// successful confirmation code exchange.
//
// The refresh token is the long-lived credential. The access token is always
// minted from a verified refresh token: it copies the subject and records the
// refresh token's id in the "rid" claim.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrTokenType    = errors.New("unexpected token type")
)

// Claims are carried by both token kinds.
type Claims struct {
	Type      string `json:"typ"`
	RefreshID string `json:"rid,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is the result of an exchange.
type TokenPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer returns an Issuer. secret must not be empty.
func NewIssuer(secret, issuer string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &Issuer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// IssuePair mints a refresh token for subject and an access token derived
// from it.
func (i *Issuer) IssuePair(subject string) (TokenPair, error) {
	now := i.now()
	rc := &Claims{
		Type: typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
	}
	refresh, err := i.sign(rc)
	if err != nil {
		return TokenPair{}, err
	}
	access, err := i.accessFrom(rc)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Refresh: refresh, Access: access}, nil
}

// Refresh verifies a refresh token and returns a new access token for it.
func (i *Issuer) Refresh(refreshToken string) (string, error) {
	rc, err := i.parse(refreshToken, typeRefresh)
	if err != nil {
		return "", err
	}
	return i.accessFrom(rc)
}

// ParseAccess verifies an access token and returns its claims.
func (i *Issuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(token, typeAccess)
}

func (i *Issuer) accessFrom(rc *Claims) (string, error) {
	now := i.now()
	exp := now.Add(i.accessTTL)
	// An access token never outlives its refresh token.
	if rc.ExpiresAt != nil && exp.After(rc.ExpiresAt.Time) {
		exp = rc.ExpiresAt.Time
	}
	ac := &Claims{
		Type:      typeAccess,
		RefreshID: rc.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   rc.Subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return i.sign(ac)
}

func (i *Issuer) sign(c *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
}

func (i *Issuer) parse(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithIssuer(i.issuer))
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
	if claims.Type != wantType {
		return nil, ErrTokenType
	}
	return claims, nil
}
