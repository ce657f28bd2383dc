package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/sanitize"
	"github.com/david/feedback-triage/internal/scoring"
)

type featureRequest struct {
	Title       string `json:"title" validate:"required,max=500"`
	Description string `json:"description"`
}

type featurePatchRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=500"`
	Description *string `json:"description"`
}

type featureList struct {
	Items    []models.Feature `json:"items"`
	MaxScore float64          `json:"max_score"`
}

// scoreMutator applies a partial score update against the current dimensions.
func scoreMutator(u scoring.ScoreUpdate, dims []models.Dimension) db.ScoreMutator {
	return func(scores models.ScoreMap, explanations models.ExplanationMap) (models.ScoreMap, models.ExplanationMap, error) {
		next, expl, err := scoring.Apply(scores, explanations, u, dims)
		if err != nil {
			return nil, nil, apperr.Validation("%v", err)
		}
		return next, expl, nil
	}
}

func (s *Server) annotateFeature(ctx context.Context, f *models.Feature) error {
	dims, err := s.dimensions(ctx)
	if err != nil {
		return err
	}
	f.CombinedScore = scoring.ComputeCombinedScore(f.Scores, dims)
	return nil
}

func (s *Server) handleListFeatures(c echo.Context) error {
	ctx := c.Request().Context()
	features, err := s.Store.ListFeatures(ctx)
	if err != nil {
		return err
	}
	dims, err := s.dimensions(ctx)
	if err != nil {
		return err
	}
	if features == nil {
		features = []models.Feature{}
	}
	scoring.AnnotateFeatures(features, dims)
	scoring.SortFeaturesByScore(features)
	return c.JSON(http.StatusOK, featureList{Items: features, MaxScore: scoring.MaxPossibleScore(dims)})
}

func (s *Server) handleGetFeature(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	f, err := s.Store.GetFeature(ctx, id)
	if err != nil {
		return err
	}
	if err := s.annotateFeature(ctx, f); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) handleCreateFeature(c echo.Context) error {
	var req featureRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	title := sanitize.Line(req.Title)
	if title == "" {
		return apperr.Validation("title is required")
	}
	f, err := s.Store.CreateFeature(c.Request().Context(), title, sanitize.Text(req.Description))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, f)
}

func (s *Server) handleUpdateFeature(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req featurePatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Title != nil {
		title := sanitize.Line(*req.Title)
		if title == "" {
			return apperr.Validation("title must not be blank")
		}
		req.Title = &title
	}
	if req.Description != nil {
		desc := sanitize.Text(*req.Description)
		req.Description = &desc
	}

	ctx := c.Request().Context()
	f, err := s.Store.UpdateFeature(ctx, id, req.Title, req.Description)
	if err != nil {
		return err
	}
	if err := s.annotateFeature(ctx, f); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) handleUpdateFeatureScores(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req scoring.ScoreUpdate
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	dims, err := s.dimensions(ctx)
	if err != nil {
		return err
	}
	f, err := s.Store.UpdateFeatureScores(ctx, id, scoreMutator(req, dims))
	if err != nil {
		return err
	}
	f.CombinedScore = scoring.ComputeCombinedScore(f.Scores, dims)
	return c.JSON(http.StatusOK, f)
}

func (s *Server) handleDeleteFeature(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := s.Store.DeleteFeature(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
