// Package server は蔵書・予約APIのHTTPサーバーを提供します
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/auth"
	"github.com/uma-arai/sbcntr-library/internal/repository"
	"github.com/uma-arai/sbcntr-library/internal/service/library"
)

// Options はサーバーの設定です
type Options struct {
	// ServiceName は X-Ray のセグメント名です
	ServiceName   string
	EnableTracing bool
	// Notifications が nil の場合は通知APIを登録しません
	Notifications repository.NotificationRepository
}

// Server は蔵書・予約APIのHTTPサーバーです
type Server struct {
	echo      *echo.Echo
	library   *library.Service
	directory auth.Directory
	tokens    *auth.TokenIssuer
	notices   repository.NotificationRepository
	logger    *zap.Logger
}

// New は新しいServerを作成し、ルーティングを登録します
func New(svc *library.Service, directory auth.Directory, tokens *auth.TokenIssuer, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = errorHandler(logger)

	if opts.EnableTracing {
		e.Use(tracing(opts.ServiceName))
	}
	e.Use(middleware.Recover())
	e.Use(requestID())
	e.Use(accessLog(logger))
	e.Use(middleware.CORS())

	s := &Server{
		echo:      e,
		library:   svc,
		directory: directory,
		tokens:    tokens,
		notices:   opts.Notifications,
		logger:    logger,
	}
	s.routes()

	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)

	api := s.echo.Group("/api")
	api.POST("/login", s.login)

	// 認証が必要なAPI
	authed := api.Group("", authenticate(s.tokens.Secret()))
	authed.GET("/books", s.listBooks)
	authed.GET("/books/:id", s.getBook)
	authed.POST("/books", s.addBook, requireLibrarian)
	authed.POST("/books/:id/reserve", s.reserveBook)
	authed.GET("/reservations/user/:email", s.listUserReservations)

	// 司書向けAPI
	librarian := authed.Group("/reservations", requireLibrarian)
	librarian.GET("", s.listReservations)
	librarian.PUT("/:id/approve", s.approveReservation)
	librarian.PUT("/:id/reject", s.rejectReservation)
	librarian.PUT("/:id/complete", s.completeReservation)
	librarian.PUT("/:id/return", s.returnReservation)
	librarian.DELETE("/:id", s.removeReservation)

	if s.notices != nil {
		authed.GET("/notifications", s.listNotifications)
		authed.PUT("/notifications/:id/read", s.markNotificationRead)
	}
}

// ServeHTTP は http.Handler の実装です
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start は addr で待ち受けを開始します
// Shutdown による停止ではエラーを返しません
func (s *Server) Start(addr string) error {
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown は処理中のリクエストを待ってサーバーを停止します
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return respond(c, http.StatusOK, "OK", map[string]string{"status": "healthy"})
}
