package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/auth"
)

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if errors.Is(err, auth.ErrUserExists) {
		return apperr.Conflict("user_exists", err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if errors.Is(err, auth.ErrInvalidCreds) {
		return apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
