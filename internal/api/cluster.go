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

type analyzeRequest struct {
	ProductID      *uuid.UUID `json:"product_id"`
	OnlyUnassigned *bool      `json:"only_unassigned"`
	Limit          int        `json:"limit" validate:"gte=0"`
}

type analyzeResponse struct {
	Clusters  []ai.Cluster `json:"clusters"`
	ItemCount int          `json:"item_count"`
}

type applyCluster struct {
	Title       string      `json:"title" validate:"required,max=500"`
	Description string      `json:"description"`
	ProductID   *uuid.UUID  `json:"product_id"`
	FeedbackIDs []uuid.UUID `json:"feedback_ids" validate:"required,min=1"`
}

type applyRequest struct {
	Clusters []applyCluster `json:"clusters" validate:"required,min=1,dive"`
}

type applyResponse struct {
	Opportunities  []models.Opportunity `json:"opportunities"`
	LinkedFeedback int                  `json:"linked_feedback"`
}

type promptRequest struct {
	Prompt string `json:"prompt" validate:"required,max=20000"`
}

type promptResponse struct {
	Prompt    string `json:"prompt"`
	IsDefault bool   `json:"is_default"`
}

func (s *Server) clusterLimit(requested int) int {
	limit := s.Config.ClusterMaxItems
	if limit <= 0 || limit > ai.MaxClusterItems {
		limit = ai.MaxClusterItems
	}
	if requested > 0 && requested < limit {
		limit = requested
	}
	return limit
}

func (s *Server) clusterPrompt(ctx context.Context) (promptResponse, error) {
	prompt, ok, err := s.Store.GetSetting(ctx, db.SettingClusterPrompt)
	if err != nil {
		return promptResponse{}, err
	}
	if !ok || strings.TrimSpace(prompt) == "" {
		return promptResponse{Prompt: s.Config.ClusterPrompt, IsDefault: true}, nil
	}
	return promptResponse{Prompt: prompt}, nil
}

func (s *Server) handleAnalyzeClusters(c echo.Context) error {
	var req analyzeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	onlyUnassigned := true
	if req.OnlyUnassigned != nil {
		onlyUnassigned = *req.OnlyUnassigned
	}

	ctx := c.Request().Context()
	catalog, err := s.products(ctx)
	if err != nil {
		return err
	}
	var productIDs []uuid.UUID
	if req.ProductID != nil {
		productIDs = products.ExpandWithDescendants(catalog, []uuid.UUID{*req.ProductID})
	}

	items, err := s.Store.ListClusterCandidates(ctx, productIDs, onlyUnassigned, s.clusterLimit(req.Limit))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return c.JSON(http.StatusOK, analyzeResponse{Clusters: []ai.Cluster{}})
	}

	prompt, err := s.clusterPrompt(ctx)
	if err != nil {
		return err
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.Config.AITimeout)
	defer cancel()
	clusters, err := s.Clusterer.Analyze(aiCtx, prompt.Prompt, items, catalog)
	if errors.Is(err, ai.ErrAnalysisFailed) {
		return apperr.Upstream(err.Error(), err)
	}
	if err != nil {
		return err
	}
	s.Log.Info("cluster analysis complete", "items", len(items), "clusters", len(clusters))
	return c.JSON(http.StatusOK, analyzeResponse{Clusters: clusters, ItemCount: len(items)})
}

// handleApplyClusters creates the opportunities and links in one transaction,
// then marks every linked item reviewed.
func (s *Server) handleApplyClusters(c echo.Context) error {
	var req applyRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	drafts := make([]db.OpportunityDraft, 0, len(req.Clusters))
	for _, cl := range req.Clusters {
		title := sanitize.Line(cl.Title)
		if title == "" {
			title = "Untitled opportunity"
		}
		drafts = append(drafts, db.OpportunityDraft{
			Title:       title,
			Description: sanitize.Text(cl.Description),
			ProductID:   cl.ProductID,
			FeedbackIDs: cl.FeedbackIDs,
		})
	}

	ctx := c.Request().Context()
	opps, linked, err := s.Store.CreateOpportunitiesWithLinks(ctx, drafts)
	if err != nil {
		return err
	}
	if _, err := s.Store.MarkFeedbackReviewed(ctx, linked); err != nil {
		return err
	}
	s.invalidateFeedback(ctx)

	dims, err := s.dimensions(ctx)
	if err != nil {
		return err
	}
	scoring.AnnotateOpportunities(opps, dims)
	return c.JSON(http.StatusCreated, applyResponse{Opportunities: opps, LinkedFeedback: len(linked)})
}

func (s *Server) handleGetClusterPrompt(c echo.Context) error {
	resp, err := s.clusterPrompt(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePutClusterPrompt(c echo.Context) error {
	var req promptRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return apperr.Validation("prompt must not be blank")
	}
	if err := s.Store.PutSetting(c.Request().Context(), db.SettingClusterPrompt, prompt); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, promptResponse{Prompt: prompt})
}
