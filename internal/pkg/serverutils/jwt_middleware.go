package serverutils

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// DevUserHeader identifies the caller when no JWT secret is configured.
const DevUserHeader = "X-User-Id"

var errInvalidClaims = errors.New("token missing user_id")

// NewJwtMiddleware verifies HS256 bearer tokens and stores the "user_id" claim in ctx.Locals("user_id"). With an
// empty secret it trusts DevUserHeader instead, for local development.
func NewJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if secret == "" {
			userID := strings.TrimSpace(ctx.Get(DevUserHeader))
			if userID == "" {
				return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing "+DevUserHeader))
			}
			ctx.Locals("user_id", userID)
			return ctx.Next()
		}

		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		userID, err := ParseUserToken(secret, authHeader[7:])
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		ctx.Locals("user_id", userID)
		return ctx.Next()
	}
}

// ParseUserToken verifies an HS256 token and returns its "user_id" claim.
func ParseUserToken(secret, tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidClaims
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", errInvalidClaims
	}
	return userID, nil
}
