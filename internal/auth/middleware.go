package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const riderIDKey = "rider_id"

// accessTokenQuery carries the token for clients that cannot set headers,
// such as browser websockets and simple sensor bridges.
const accessTokenQuery = "access_token"

// JWTMiddleware accepts an HS256 access token from the Authorization header
// or the access_token query parameter and stores the rider in locals.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	keyFn := func(_ *jwt.Token) (interface{}, error) { return secretBytes, nil }

	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Query(accessTokenQuery)
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, keyFn, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid || claims.RiderID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}

		c.Locals(riderIDKey, claims.RiderID)
		return c.Next()
	}
}

// RiderID returns the rider set by JWTMiddleware, or "".
func RiderID(c *fiber.Ctx) string {
	id, _ := c.Locals(riderIDKey).(string)
	return id
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

func bearerFromHeader(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
