// Package auth verifies the bearer tokens the portal issues to meeting participants.
package auth

import (
	"context"
	"fmt"

	"github.com/dgrijalva/jwt-go"
	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
)

// JWTVerifier accepts HS256 tokens signed with a shared secret.
// The user id is read from "sub" (or "id"), plus "username" and "role".
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) Verify(_ context.Context, raw string) (*domain.Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", core.ErrUnauthorized)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", core.ErrUnauthorized)
	}

	uid := stringClaim(claims, "sub")
	if uid == "" {
		uid = stringClaim(claims, "id")
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: token carries no user id", core.ErrUnauthorized)
	}
	role := domain.Role(stringClaim(claims, "role"))
	if role == "" {
		role = domain.RoleParticipant
	}
	return &domain.Identity{
		UserID:   domain.UserID(uid),
		Username: stringClaim(claims, "username"),
		Role:     role,
	}, nil
}

func stringClaim(c jwt.MapClaims, key string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case float64:
		// numeric ids from the portal database
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

// Sign issues a token for id. Used by tooling and tests.
func (v *JWTVerifier) Sign(id domain.Identity, claims jwt.MapClaims) (string, error) {
	c := jwt.MapClaims{
		"sub":      string(id.UserID),
		"username": id.Username,
		"role":     string(id.Role),
	}
	if v.issuer != "" {
		c["iss"] = v.issuer
	}
	for k, val := range claims {
		c[k] = val
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}
