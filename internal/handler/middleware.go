package handler

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/domain"
	"github.com/sumire/todoshare/internal/service"
)

const (
	contextKeyIdentity  = "identity"
	contextKeyExpiresAt = "token_expires_at"
)

// RequestLogger logs each HTTP request through zap.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		HandleError:  true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogMethod:    true,
		LogURIPath:   true,
		LogRoutePath: true,
		LogRequestID: true,
		LogStatus:    true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.String("route", v.RoutePath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			}
			if id, ok := GetIdentity(c); ok {
				fields = append(fields, zap.String("user_id", id.ID))
			}

			switch {
			case v.Status >= 500:
				logger.Error("http request", append(fields, zap.Error(v.Error))...)
			case v.Status >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
			return nil
		},
	})
}

// JWTAuth validates the Bearer token and injects the caller's identity into
// echo context.
func JWTAuth(auth *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return domain.ErrUnauthorized
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				return domain.ErrUnauthorized
			}

			claims, err := auth.ValidateToken(c.Request().Context(), parts[1])
			if err != nil {
				return err
			}

			c.Set(contextKeyIdentity, claims.Identity)
			c.Set(contextKeyExpiresAt, claims.ExpiresAt)
			return next(c)
		}
	}
}

// GetIdentity extracts the authenticated identity from echo context.
func GetIdentity(c echo.Context) (domain.Identity, bool) {
	id, ok := c.Get(contextKeyIdentity).(domain.Identity)
	return id, ok
}

func mustIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := GetIdentity(c)
	if !ok {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	return id, nil
}

func tokenExpiry(c echo.Context) time.Time {
	exp, _ := c.Get(contextKeyExpiresAt).(time.Time)
	return exp
}
