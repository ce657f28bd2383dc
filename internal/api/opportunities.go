package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/feedback-triage/internal/ai"
	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/products"
	"github.com/david/feedback-triage/internal/sanitize"
	"github.com/david/feedback-triage/internal/scoring"
)

type opportunityRequest struct {
	Title       string     `json:"title" validate:"required,max=500"`
	Description string     `json:"description"`
	ProductID   *uuid.UUID `json:"product_id"`
}

// opportunityPatchRequest uses strings for clearable references: an empty
// product_id or horizon clears the field.
type opportunityPatchRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=500"`
	Description *string `json:"description"`
	ProductID   *string `json:"product_id"`
	Horizon     *string `json:"horizon"`
	Quarter     *string `json:"quarter" validate:"omitempty,max=20"`
	Status      *string `json:"status"`
}

type mergeRequest struct {
	TargetID uuid.UUID `json:"target_id" validate:"required"`
}

type idsRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}

type opportunityList struct {
	Items    []models.Opportunity `json:"items"`
	MaxScore float64              `json:"max_score"`
}

type opportunityDetail struct {
	models.Opportunity
	Feedback []models.FeedbackItem `json:"feedback"`
	MaxScore float64               `json:"max_score"`
}

func (s *Server) annotateOpportunity(ctx context.Context, o *models.Opportunity) ([]models.Dimension, error) {
	dims, err := s.dimensions(ctx)
	if err != nil {
		return nil, err
	}
	o.CombinedScore = scoring.ComputeCombinedScore(o.Scores, dims)
	return dims, nil
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	ctx := c.Request().Context()

	filter := db.OpportunityFilter{
		Status:  strings.TrimSpace(c.QueryParam("status")),
		Horizon: strings.TrimSpace(c.QueryParam("horizon")),
	}
	if filter.Status != "" && !models.OpportunityStatus(filter.Status).Valid() {
		return apperr.Validation("invalid status %q", filter.Status)
	}
	if filter.Horizon != "" && filter.Horizon != "none" && !models.Horizon(filter.Horizon).Valid() {
		return apperr.Validation("invalid horizon %q", filter.Horizon)
	}

	if raw := c.QueryParam("product"); strings.TrimSpace(raw) != "" {
		ids, err := splitIDs(raw, "product")
		if err != nil {
			return err
		}
		flat, err := s.products(ctx)
		if err != nil {
			return err
		}
		filter.ProductIDs = products.ExpandWithDescendants(flat, ids)
	}

	opps, err := s.Store.ListOpportunities(ctx, filter)
	if err != nil {
		return err
	}
	dims, err := s.dimensions(ctx)
	if err != nil {
		return err
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}
	scoring.AnnotateOpportunities(opps, dims)
	if c.QueryParam("sort") == "score" {
		scoring.SortOpportunitiesByScore(opps)
	}
	return c.JSON(http.StatusOK, opportunityList{Items: opps, MaxScore: scoring.MaxPossibleScore(dims)})
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	opp, err := s.Store.GetOpportunity(ctx, id)
	if err != nil {
		return err
	}
	items, err := s.Store.OpportunityFeedback(ctx, id)
	if err != nil {
		return err
	}
	dims, err := s.annotateOpportunity(ctx, opp)
	if err != nil {
		return err
	}
	if items == nil {
		items = []models.FeedbackItem{}
	}
	return c.JSON(http.StatusOK, opportunityDetail{
		Opportunity: *opp,
		Feedback:    items,
		MaxScore:    scoring.MaxPossibleScore(dims),
	})
}

func (s *Server) handleCreateOpportunity(c echo.Context) error {
	var req opportunityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	title := sanitize.Line(req.Title)
	if title == "" {
		return apperr.Validation("title is required")
	}
	opp, err := s.Store.CreateOpportunity(c.Request().Context(), title, sanitize.Text(req.Description), req.ProductID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, opp)
}

func (s *Server) handleUpdateOpportunity(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req opportunityPatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	patch := db.OpportunityPatch{Quarter: req.Quarter}
	if req.Title != nil {
		title := sanitize.Line(*req.Title)
		if title == "" {
			return apperr.Validation("title must not be blank")
		}
		patch.Title = &title
	}
	if req.Description != nil {
		desc := sanitize.Text(*req.Description)
		patch.Description = &desc
	}
	productID, setProduct, err := optionalID(req.ProductID, "product_id")
	if err != nil {
		return err
	}
	patch.SetProduct, patch.ProductID = setProduct, productID
	if req.Horizon != nil {
		patch.SetHorizon = true
		if h := strings.TrimSpace(*req.Horizon); h != "" {
			horizon := models.Horizon(h)
			patch.Horizon = &horizon
		}
	}
	if req.Status != nil {
		status := models.OpportunityStatus(strings.TrimSpace(*req.Status))
		patch.Status = &status
	}

	ctx := c.Request().Context()
	opp, err := s.Store.UpdateOpportunity(ctx, id, patch)
	if err != nil {
		return err
	}
	if patch.Title != nil {
		s.invalidateFeedback(ctx)
	}
	if _, err := s.annotateOpportunity(ctx, opp); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) handleUpdateOpportunityScores(c echo.Context) error {
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
	opp, err := s.Store.UpdateOpportunityScores(ctx, id, scoreMutator(req, dims))
	if err != nil {
		return err
	}
	opp.CombinedScore = scoring.ComputeCombinedScore(opp.Scores, dims)
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) handleDeleteOpportunity(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := s.Store.DeleteOpportunity(ctx, id); err != nil {
		return err
	}
	s.invalidateFeedback(ctx)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleBulkDeleteOpportunities(c echo.Context) error {
	var req idsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, err := s.Store.BulkDeleteOpportunities(ctx, req.IDs)
	if err != nil {
		return err
	}
	s.invalidateFeedback(ctx)
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleMergeOpportunity(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req mergeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	opp, err := s.Store.MergeOpportunities(ctx, id, req.TargetID)
	if err != nil {
		return err
	}
	s.invalidateFeedback(ctx)
	if _, err := s.annotateOpportunity(ctx, opp); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, opp)
}

// handleOpportunityReport asks the model for a summary of the linked feedback
// and stores it on the opportunity.
func (s *Server) handleOpportunityReport(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	opp, err := s.Store.GetOpportunity(ctx, id)
	if err != nil {
		return err
	}
	items, err := s.Store.OpportunityFeedback(ctx, id)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return apperr.Validation("opportunity has no linked feedback to summarise")
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.Config.AITimeout)
	defer cancel()
	summary, err := ai.SummarizeOpportunity(aiCtx, s.AI, *opp, items)
	if err != nil {
		s.Log.Warn("opportunity report failed", "opportunity_id", id, "error", err)
		if errors.Is(err, ai.ErrAnalysisFailed) {
			return apperr.Upstream(ai.ErrAnalysisFailed.Error(), err)
		}
		return err
	}

	if err := s.Store.SetReportSummary(ctx, id, summary); err != nil {
		return err
	}
	opp.ReportSummary = summary
	if _, err := s.annotateOpportunity(ctx, opp); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, opp)
}
