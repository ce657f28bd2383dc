package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/scoring"
)

func (s *Server) handleRoadmap(c echo.Context) error {
	ctx := c.Request().Context()
	opps, err := s.Store.ListOpportunities(ctx, db.OpportunityFilter{})
	if err != nil {
		return err
	}
	dims, err := s.dimensions(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, scoring.BuildRoadmap(opps, dims))
}
