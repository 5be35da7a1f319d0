package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"banter/internal/config"
)

// SessionClaims is the client-held session state. It carries the user's
// identity key and the room that was active when the token was issued; the
// server never trusts it without re-validating against the repository.
type SessionClaims struct {
	UserID     uint   `json:"userId"`
	Name       string `json:"name"`
	ActiveRoom string `json:"activeRoom,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken issues a session token for the given user.
func GenerateToken(userID uint, name, activeRoom string, authCfg config.AuthConfig) (string, error) {
	jti, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	now := time.Now()
	claims := &SessionClaims{
		UserID:     userID,
		Name:       name,
		ActiveRoom: activeRoom,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(authCfg.JWTExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti.String(),
			Issuer:    "banter",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(authCfg.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies a session token and, when a blacklist is provided,
// checks that the session has not been revoked.
func ValidateToken(ctx context.Context, tokenString, jwtKey string, blacklist TokenBlacklist) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	if blacklist != nil {
		if claims.ID == "" {
			return nil, fmt.Errorf("session token has no id; cannot check revocation")
		}
		revoked, err := blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check session revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("session has been revoked")
		}
	}

	return claims, nil
}
