package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/sanitize"
	"github.com/david/feedback-triage/internal/scoring"
)

type dimensionRequest struct {
	Name      string   `json:"name" validate:"required,max=200"`
	Type      string   `json:"type" validate:"required"`
	Weight    *float64 `json:"weight"`
	Order     int      `json:"order"`
	Tag       string   `json:"tag" validate:"max=100"`
	Direction string   `json:"direction"`
}

type dimensionPatchRequest struct {
	Name      *string  `json:"name" validate:"omitempty,max=200"`
	Type      *string  `json:"type"`
	Weight    *float64 `json:"weight"`
	Order     *int     `json:"order"`
	Tag       *string  `json:"tag" validate:"omitempty,max=100"`
	Direction *string  `json:"direction"`
}

type dimensionList struct {
	Items    []models.Dimension `json:"items"`
	Groups   []scoring.TagGroup `json:"groups"`
	MaxScore float64            `json:"max_score"`
}

func (s *Server) handleListDimensions(c echo.Context) error {
	dims, err := s.dimensions(c.Request().Context())
	if err != nil {
		return err
	}
	if dims == nil {
		dims = []models.Dimension{}
	}
	scoring.SortDimensions(dims)
	return c.JSON(http.StatusOK, dimensionList{
		Items:    dims,
		Groups:   scoring.GroupByTag(dims),
		MaxScore: scoring.MaxPossibleScore(dims),
	})
}

func (s *Server) handleCreateDimension(c echo.Context) error {
	var req dimensionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	d := models.Dimension{
		Name:      sanitize.Line(req.Name),
		Type:      models.ParseDimensionType(req.Type),
		Order:     req.Order,
		Tag:       sanitize.Line(req.Tag),
		Direction: models.ParseDirection(req.Direction),
	}
	if d.Name == "" {
		return apperr.Validation("name is required")
	}
	if req.Weight != nil {
		d.Weight = *req.Weight
	}

	ctx := c.Request().Context()
	created, err := s.Store.CreateDimension(ctx, d)
	if err != nil {
		return err
	}
	s.invalidateDimensions(ctx)
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateDimension(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dimensionPatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Name != nil {
		name := sanitize.Line(*req.Name)
		if name == "" {
			return apperr.Validation("name must not be blank")
		}
		req.Name = &name
	}
	if req.Tag != nil {
		tag := sanitize.Line(*req.Tag)
		req.Tag = &tag
	}

	ctx := c.Request().Context()
	updated, err := s.Store.UpdateDimension(ctx, id, db.DimensionPatch{
		Name:      req.Name,
		Type:      req.Type,
		Weight:    req.Weight,
		Order:     req.Order,
		Tag:       req.Tag,
		Direction: req.Direction,
	})
	if err != nil {
		return err
	}
	s.invalidateDimensions(ctx)
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteDimension(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := s.Store.DeleteDimension(ctx, id); err != nil {
		return err
	}
	s.invalidateDimensions(ctx)
	return c.NoContent(http.StatusNoContent)
}
