// Package auth issues and validates the access tokens of the admin users
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gamemixer/gamemixer-api/internal/models"
)

// ErrNoSecret is returned when creating a token manager without a signing secret
var ErrNoSecret = errors.New("no token signing secret configured")

// Claims are the contents of an access token. The token's ID is used for revocation, the subject is the user's ID
type Claims struct {
	UserName string `json:"name"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 signed access tokens
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token manager signing with the given secret. Tokens are valid for ttl
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns how long new tokens are valid
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// Issue creates a new signed token for the given user
func (t *Tokens) Issue(u *models.User) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		UserName: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to sign token")
	}
	return signed, claims, nil
}

// Parse validates the given token and returns its claims
func (t *Tokens) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("token is missing subject or ID")
	}
	return claims, nil
}
