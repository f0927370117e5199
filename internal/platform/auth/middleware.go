package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey verifies HS256 tokens issued by a trusted sibling service.
	SigningKey []byte
}

const jwksCacheTTL = 5 * time.Minute

// JWTMiddleware authenticates bearer tokens. HS256 tokens are checked against
// SigningKey; RS256 tokens against the JWKS endpoint.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	var jwks *JWKSCache
	if cfg.JWKSURL != "" {
		jwks = NewJWKSCache(cfg.JWKSURL, jwksCacheTTL)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	keyfunc := func(t *jwt.Token) (interface{}, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if len(cfg.SigningKey) == 0 {
				return nil, jwt.ErrTokenUnverifiable
			}
			return cfg.SigningKey, nil
		case *jwt.SigningMethodRSA:
			if jwks == nil {
				return nil, jwt.ErrTokenUnverifiable
			}
			return jwks.Keyfunc(t)
		}
		return nil, jwt.ErrTokenSignatureInvalid
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			scheme, tokenStr, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenStr) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenStr), claims, keyfunc, opts...)
			if err != nil || !token.Valid || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			roles := claims.Roles
			if len(roles) == 0 {
				roles = []string{RoleUser}
			}
			ctx := WithUser(c.Request().Context(), claims.Subject, roles)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// DevUserHeader lets local clients act as different users without tokens.
const DevUserHeader = "X-Dev-User"

// DevAuthMiddleware authenticates every request as a local user. It must
// only be installed when ENV=development.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := strings.TrimSpace(c.Request().Header.Get(DevUserHeader))
			if user == "" {
				user = "dev-user"
			}
			ctx := WithUser(c.Request().Context(), user, []string{RoleUser})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
