// Package auth is the boundary with the distribution gateway that issues
// consultant access links. The gateway signs short-lived HS256 bearer tokens
// carrying the consultant record; this package verifies them and places the
// trusted record on the request context. The core never re-derives identity.
package auth

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const consultantKey contextKey = "consultant"

// Role values supplied by the gateway.
const (
	RoleFC    = "fc"
	RoleAdmin = "admin"
)

// Consultant is the identity record the gateway vouches for.
type Consultant struct {
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
	Org    string `json:"org,omitempty"`
	Role   string `json:"role"`
	FCCode string `json:"fc_code,omitempty"`
}

// Claims is the gateway token payload.
type Claims struct {
	jwt.RegisteredClaims
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
	Org    string `json:"org,omitempty"`
	Role   string `json:"role"`
	FCCode string `json:"fc_code,omitempty"`
}

var nonDigits = regexp.MustCompile(`\D`)

// consultantFromClaims normalizes a verified token payload into a Consultant.
// FC records must carry a name and phone; the phone is reduced to digits.
func consultantFromClaims(claims *Claims) (*Consultant, error) {
	name := strings.TrimSpace(claims.Name)
	if name == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "token missing consultant name")
	}

	role := claims.Role
	if role == "" {
		role = RoleFC
	}

	phone := strings.TrimSpace(claims.Phone)
	if role == RoleFC {
		if phone == "" {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "token missing consultant phone")
		}
		phone = nonDigits.ReplaceAllString(phone, "")
	}

	return &Consultant{
		Name:   name,
		Phone:  phone,
		Email:  strings.TrimSpace(claims.Email),
		Org:    strings.TrimSpace(claims.Org),
		Role:   role,
		FCCode: strings.TrimSpace(claims.FCCode),
	}, nil
}

// GatewayAuthMiddleware verifies the HS256 bearer token minted by the
// distribution gateway and stores the consultant record on the request
// context. Tokens are accepted from the Authorization header or, to support
// gateway deep links, a "token" query parameter.
func GatewayAuthMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := bearerToken(c)
			if tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing gateway token")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			consultant, err := consultantFromClaims(claims)
			if err != nil {
				return err
			}

			ctx := context.WithValue(c.Request().Context(), consultantKey, consultant)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that gives
// unauthenticated requests a default consultant identity.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ConsultantFromContext(c.Request().Context()) == nil {
				ctx := context.WithValue(c.Request().Context(), consultantKey, &Consultant{
					Name:   "Dev Consultant",
					Phone:  "01000000000",
					Role:   RoleAdmin,
					FCCode: "FC-DEV",
				})
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.QueryParam("token")
}

// ConsultantFromContext returns the verified consultant record, or nil when
// the request was not authenticated.
func ConsultantFromContext(ctx context.Context) *Consultant {
	consultant, _ := ctx.Value(consultantKey).(*Consultant)
	return consultant
}

// WithConsultant returns a context carrying the given consultant record.
// Intended for tests and internal callers.
func WithConsultant(ctx context.Context, consultant *Consultant) context.Context {
	return context.WithValue(ctx, consultantKey, consultant)
}

// Mint signs a gateway token for the given consultant, valid for ttl.
// Used by the token CLI command and by tests; production tokens come from
// the external gateway.
func Mint(secret []byte, consultant Consultant, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:   consultant.Name,
		Phone:  consultant.Phone,
		Email:  consultant.Email,
		Org:    consultant.Org,
		Role:   consultant.Role,
		FCCode: consultant.FCCode,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
