package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token is expired")
	ErrNoUserClaim  = errors.New("token carries no user id")
)

// Claims mirrors the claims the storefront API puts in its access tokens.
type Claims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// UserIDFromToken extracts the user identifier from a storefront access token.
// The signature is NOT verified: the client never holds the signing key, and the
// id is only used to label telemetry. Expiry is still honored.
func UserIDFromToken(tokenString string, now time.Time) (string, error) {
	claims := &Claims{}

	_, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return "", ErrTokenExpired
	}

	switch {
	case claims.UserID > 0:
		return strconv.Itoa(claims.UserID), nil
	case claims.Subject != "":
		return claims.Subject, nil
	default:
		return "", ErrNoUserClaim
	}
}
