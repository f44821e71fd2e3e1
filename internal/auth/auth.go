// Package auth validates the bearer tokens issued by the identity provider.
// Issue exists for tooling and tests; the API never logs anyone in.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"WardWatchAPI/internal/models"
)

type Claims struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator turns HS256 tokens into identities.
type Authenticator struct {
	secret []byte
	issuer string
	expiry time.Duration
	parser *jwt.Parser
}

func New(secret, issuer string, expiry time.Duration) (*Authenticator, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		expiry: expiry,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Authenticate validates token and returns the identity it carries. Every
// failure wraps models.ErrUnauthorized.
func (a *Authenticator) Authenticate(token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, fmt.Errorf("missing token: %w", models.ErrUnauthorized)
	}

	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid token: %v: %w", err, models.ErrUnauthorized)
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return models.Identity{}, fmt.Errorf("token without subject: %w", models.ErrUnauthorized)
	}

	return models.Identity{UserID: claims.UserID, OrgID: claims.OrgID, Role: claims.Role}, nil
}

// Issue signs a token for id.
func (a *Authenticator) Issue(id models.Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: id.UserID,
		OrgID:  id.OrgID,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
