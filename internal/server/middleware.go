package server

import (
	"net/http"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/auth"
)

const userContextKey = "user"

// accessLog はリクエストごとにアクセスログを出力します
func accessLog(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// ステータスを確定させるためにここでエラーレスポンスを書き込む
				c.Error(err)
			}

			logger.Info("http",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Int64("latency_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("ip", c.RealIP()),
			)
			return nil
		}
	}
}

// tracing は X-Ray のセグメントをリクエスト単位で作成します
func tracing(name string) echo.MiddlewareFunc {
	return echo.WrapMiddleware(func(h http.Handler) http.Handler {
		return xray.Handler(xray.NewFixedSegmentNamer(name), h)
	})
}

func requestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// authenticate は Authorization ヘッダーの Bearer トークンを検証します
func authenticate(secret []byte) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    secret,
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		ContextKey:    userContextKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(auth.Claims) },
		ErrorHandler: func(echo.Context, error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		},
	})
}

// requireLibrarian は司書権限を持たない利用者を拒否します
func requireLibrarian(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, ok := currentUser(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		if !u.IsLibrarian() {
			return echo.NewHTTPError(http.StatusForbidden, "librarian role is required")
		}
		return next(c)
	}
}

// currentUser はトークンから認証済みの利用者を取り出します
func currentUser(c echo.Context) (auth.User, bool) {
	token, ok := c.Get(userContextKey).(*jwt.Token)
	if !ok || token == nil {
		return auth.User{}, false
	}
	claims, ok := token.Claims.(*auth.Claims)
	if !ok || claims.Subject == "" {
		return auth.User{}, false
	}
	return claims.User(), true
}
