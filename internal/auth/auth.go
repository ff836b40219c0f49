// Package auth resolves the ledger owner of an HTTP request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when a request carries no usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// Provider resolves the owner id a request acts on.
type Provider interface {
	OwnerID(r *http.Request) (string, error)
}

// JWT accepts HS256 bearer tokens whose subject is the owner id.
type JWT struct {
	secret []byte
	now    func() time.Time
}

func NewJWT(secret string) (*JWT, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("empty JWT secret")
	}
	return &JWT{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for ownerID that expires after ttl.
func (j *JWT) Issue(ownerID string, ttl time.Duration) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("issue token: %w", ErrUnauthenticated)
	}
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	s, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return s, nil
}

func (j *JWT) OwnerID(r *http.Request) (string, error) {
	raw, ok := bearer(r)
	if !ok {
		return "", ErrUnauthenticated
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(j.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return claims.Subject, nil
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

// Static maps every request to one owner. Used for single-user setups.
type Static struct {
	Owner string
}

func (s Static) OwnerID(*http.Request) (string, error) {
	if s.Owner == "" {
		return "", ErrUnauthenticated
	}
	return s.Owner, nil
}

// New returns a JWT provider when secret is set, otherwise a Static provider
// for defaultOwner. Having neither is an error.
func New(secret, defaultOwner string) (Provider, error) {
	if strings.TrimSpace(secret) != "" {
		return NewJWT(secret)
	}
	if strings.TrimSpace(defaultOwner) != "" {
		return Static{Owner: strings.TrimSpace(defaultOwner)}, nil
	}
	return nil, errors.New("no auth configured: set JWT_SECRET or DEFAULT_OWNER_ID")
}

type ownerKey struct{}

// WithOwner stores the resolved owner id in ctx.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFrom returns the owner id stored by WithOwner.
func OwnerFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	return id, ok && id != ""
}
