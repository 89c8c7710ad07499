package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User      auth.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	}

	u, err := s.directory.Authenticate(req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.logger.Info("login rejected", zap.String("email", req.Email))
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	if err != nil {
		return err
	}

	token, expiresAt, err := s.tokens.Issue(u)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Login successful", loginResponse{
		User:      u,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
