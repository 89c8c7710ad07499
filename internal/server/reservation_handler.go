package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/uma-arai/sbcntr-library/internal/service/library"
)

type reserveRequest struct {
	ReservationPeriod int `json:"reservationPeriod" validate:"required"`
}

type approveRequest struct {
	DueDate *time.Time `json:"dueDate"`
}

type rejectRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) reserveBook(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req reserveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	r, err := s.library.CreateReservation(c.Request().Context(), library.CreateReservationInput{
		BookID:            c.Param("id"),
		UserEmail:         u.Email,
		UserName:          u.Name,
		ReservationPeriod: req.ReservationPeriod,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Book reservation request submitted successfully! Waiting for librarian approval.", r)
}

func (s *Server) listReservations(c echo.Context) error {
	reservations, err := s.library.ListReservations(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Reservations retrieved successfully", reservations)
}

func (s *Server) listUserReservations(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	email := c.Param("email")
	if !u.IsLibrarian() && !strings.EqualFold(u.Email, email) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot view reservations of another user")
	}

	reservations, err := s.library.ListReservationsForUser(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User reservations retrieved successfully", reservations)
}

func (s *Server) approveReservation(c echo.Context) error {
	u, _ := currentUser(c)

	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	r, err := s.library.ApproveReservation(c.Request().Context(), c.Param("id"), u.Name, req.DueDate)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Reservation approved successfully", r)
}

func (s *Server) rejectReservation(c echo.Context) error {
	u, _ := currentUser(c)

	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	r, err := s.library.RejectReservation(c.Request().Context(), c.Param("id"), u.Name, req.Notes)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Reservation rejected", r)
}

func (s *Server) completeReservation(c echo.Context) error {
	r, err := s.library.CompleteReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Reservation completed", r)
}

func (s *Server) returnReservation(c echo.Context) error {
	r, err := s.library.ReturnReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Book returned successfully", r)
}

func (s *Server) removeReservation(c echo.Context) error {
	if err := s.library.RemoveReservation(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Reservation removed successfully", nil)
}
