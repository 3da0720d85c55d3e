package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Определяем константы для имен JWT claims
const (
	jwtClaimUserID = "user_id"
	jwtClaimRole   = "role"
)

var errNoClaims = errors.New("user claims not found in context or invalid type")

// GetUserIDFromContext returns the user_id claim as a string. Numeric ids
// issued by the auth service are formatted without a fraction.
func GetUserIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", errNoClaims
	}

	userIDClaim, ok := claims[jwtClaimUserID]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}

	switch v := userIDClaim.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("empty '%s' claim", jwtClaimUserID)
		}
		return v, nil
	case float64:
		if v != float64(int64(v)) || v <= 0 {
			return "", fmt.Errorf("invalid user ID value in '%s' claim: %v", jwtClaimUserID, v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", fmt.Errorf("invalid type for '%s' claim: expected string or number, got %T", jwtClaimUserID, userIDClaim)
	}
}

func GetUserRoleFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", errNoClaims
	}

	roleClaim, ok := claims[jwtClaimRole]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimRole)
	}

	roleStr, ok := roleClaim.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for '%s' claim: expected string, got %T", jwtClaimRole, roleClaim)
	}
	return roleStr, nil
}
