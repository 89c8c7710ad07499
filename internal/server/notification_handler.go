package server

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/uma-arai/sbcntr-library/internal/model"
)

func (s *Server) listNotifications(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	records, err := s.notices.GetByUserID(c.Request().Context(), u.Email)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Notifications retrieved successfully", records)
}

// markNotificationRead は本人宛ての通知のみ既読にします
func (s *Server) markNotificationRead(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return fmt.Errorf("%w: notification id must be a number", model.ErrInvalidArgument)
	}

	ctx := c.Request().Context()
	records, err := s.notices.GetByUserID(ctx, u.Email)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(records, func(r model.NotificationRecord) bool { return r.ID == id }) {
		return fmt.Errorf("%w: notification %d", model.ErrNotFound, id)
	}

	if err := s.notices.UpdateIsRead(ctx, id, true); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Notification marked as read", nil)
}
