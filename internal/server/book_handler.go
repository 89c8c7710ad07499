package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/uma-arai/sbcntr-library/internal/service/library"
)

func (s *Server) listBooks(c echo.Context) error {
	books, err := s.library.ListBooks(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Books retrieved successfully", books)
}

func (s *Server) getBook(c echo.Context) error {
	book, err := s.library.GetBook(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Book retrieved successfully", book)
}

func (s *Server) addBook(c echo.Context) error {
	var req library.BookInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	book, err := s.library.AddBook(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Book added successfully!", book)
}
