package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/cache"
	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/feedback"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/sanitize"
)

type feedbackRequest struct {
	Title       string            `json:"title" validate:"required,max=500"`
	Description string            `json:"description"`
	ProductID   *uuid.UUID        `json:"product_id"`
	Metadata    map[string]string `json:"metadata"`
}

// feedbackPatchRequest clears the product when product_id is an empty string.
type feedbackPatchRequest struct {
	Status    *string `json:"status"`
	ProductID *string `json:"product_id"`
}

type linkRequest struct {
	OpportunityID uuid.UUID `json:"opportunity_id" validate:"required"`
}

type bulkAssignRequest struct {
	IDs           []uuid.UUID `json:"ids" validate:"required,min=1"`
	OpportunityID uuid.UUID   `json:"opportunity_id" validate:"required"`
}

// feedbackFilter reads the list query string. Unparsable page numbers fall
// back to defaults.
func feedbackFilter(c echo.Context) feedback.Filter {
	ids, unassigned := feedback.ParseProductParam(c.QueryParam("product"))
	f := feedback.Filter{
		ProductIDs:        ids,
		IncludeUnassigned: unassigned,
		Status:            strings.TrimSpace(c.QueryParam("status")),
		OpportunityID:     strings.TrimSpace(c.QueryParam("opportunity")),
		Search:            c.QueryParam("q"),
		SortDir:           feedback.ParseSortDir(c.QueryParam("sort")),
	}
	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		f.Page = v
	}
	size := c.QueryParam("pageSize")
	if size == "" {
		size = c.QueryParam("page_size")
	}
	if v, err := strconv.Atoi(size); err == nil {
		f.PageSize = v
	}
	return f
}

func (s *Server) handleListFeedback(c echo.Context) error {
	f := feedbackFilter(c)
	res, err := cache.Load(c.Request().Context(), s.Cache, s.Log, cache.FeedbackKey(f), cache.FeedbackPageTTL,
		func(ctx context.Context) (*feedback.ListResult, error) {
			return s.Composer.List(ctx, f)
		})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetFeedback(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	item, err := s.Store.GetFeedback(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) handleCreateFeedback(c echo.Context) error {
	var req feedbackRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	title := sanitize.Line(req.Title)
	if title == "" {
		return apperr.Validation("title is required")
	}
	meta := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		if k = sanitize.Line(k); k != "" {
			meta[k] = sanitize.Line(v)
		}
	}

	ctx := c.Request().Context()
	item, err := s.Store.CreateFeedback(ctx, models.FeedbackItem{
		Title:       title,
		Description: sanitize.Text(req.Description),
		Metadata:    meta,
		ProductID:   req.ProductID,
	})
	if err != nil {
		return err
	}
	s.invalidateFeedback(ctx)
	return c.JSON(http.StatusCreated, item)
}

func (s *Server) handleUpdateFeedback(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req feedbackPatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var patch db.FeedbackPatch
	if req.Status != nil {
		status := models.FeedbackStatus(strings.TrimSpace(*req.Status))
		patch.Status = &status
	}
	productID, setProduct, err := optionalID(req.ProductID, "product_id")
	if err != nil {
		return err
	}
	patch.SetProduct, patch.ProductID = setProduct, productID

	ctx := c.Request().Context()
	item, err := s.Store.UpdateFeedback(ctx, id, patch)
	if err != nil {
		return err
	}
	s.invalidateFeedback(ctx)
	return c.JSON(http.StatusOK, item)
}

func (s *Server) handleLinkFeedback(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req linkRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	item, err := s.Store.LinkFeedback(ctx, id, req.OpportunityID)
	if err != nil {
		return err
	}
	s.invalidateFeedback(ctx)
	return c.JSON(http.StatusOK, item)
}

func (s *Server) handleUnlinkFeedback(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	oppID, err := pathID(c, "opportunityId")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	item, err := s.Store.UnlinkFeedback(ctx, id, oppID)
	if err != nil {
		return err
	}
	s.invalidateFeedback(ctx)
	return c.JSON(http.StatusOK, item)
}

func (s *Server) handleBulkRejectFeedback(c echo.Context) error {
	var req idsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, err := s.Store.BulkRejectFeedback(ctx, req.IDs)
	if err != nil {
		return err
	}
	s.invalidateFeedback(ctx)
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleBulkAssignFeedback(c echo.Context) error {
	var req bulkAssignRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, err := s.Store.BulkAssignFeedback(ctx, req.IDs, req.OpportunityID)
	if err != nil {
		return err
	}
	s.invalidateFeedback(ctx)
	return c.JSON(http.StatusOK, res)
}
