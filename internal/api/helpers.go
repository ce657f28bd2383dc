package api

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/cache"
	"github.com/david/feedback-triage/internal/models"
)

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

// optionalID parses an optional id field. ok is false when raw is nil; an
// empty string yields ok with a nil id, which clears the reference.
func optionalID(raw *string, field string) (id *uuid.UUID, ok bool, err error) {
	if raw == nil {
		return nil, false, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, true, nil
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return nil, false, apperr.Validation("invalid %s", field)
	}
	return &parsed, true, nil
}

// splitIDs parses a comma separated id list.
func splitIDs(raw, field string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, apperr.Validation("invalid %s %q", field, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Server) dimensions(ctx context.Context) ([]models.Dimension, error) {
	return cache.Load(ctx, s.Cache, s.Log, cache.KeyDimensions, cache.DimensionsTTL, s.Store.ListDimensions)
}

func (s *Server) products(ctx context.Context) ([]models.Product, error) {
	return cache.Load(ctx, s.Cache, s.Log, cache.KeyProducts, cache.ProductsTTL, s.Store.ListProducts)
}

// productSnapshot serves the composer's product lookups from the cache.
type productSnapshot struct {
	s *Server
}

func (p productSnapshot) ListProducts(ctx context.Context) ([]models.Product, error) {
	return p.s.products(ctx)
}

func (s *Server) invalidateFeedback(ctx context.Context) {
	cache.Invalidate(ctx, s.Cache, s.Log, nil, cache.FeedbackPrefix)
}

func (s *Server) invalidateDimensions(ctx context.Context) {
	cache.Invalidate(ctx, s.Cache, s.Log, []string{cache.KeyDimensions})
}

// invalidateProducts also drops feedback pages since they depend on the hierarchy.
func (s *Server) invalidateProducts(ctx context.Context) {
	cache.Invalidate(ctx, s.Cache, s.Log, []string{cache.KeyProducts}, cache.FeedbackPrefix)
}
