package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/david/feedback-triage/internal/metrics"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/products"
	"github.com/david/feedback-triage/internal/tracing"
)

// Repository is the storage surface the composer reads from.
type Repository interface {
	// ListFeedbackPage returns one page of items matching c ordered by
	// (created_at, id) in dir, plus the total match count.
	ListFeedbackPage(ctx context.Context, c Criteria, dir SortDir, limit, offset int) ([]models.FeedbackItem, int, error)
	// ListFeedbackKeys returns the sort keys of every item matching c.
	ListFeedbackKeys(ctx context.Context, c Criteria) ([]Key, error)
	HasSearchIndex(ctx context.Context) (bool, error)
	// SearchFeedback returns one page of matching ids and the total count.
	SearchFeedback(ctx context.Context, c Criteria, ranked bool, dir SortDir, limit, offset int) ([]uuid.UUID, int, error)
	GetFeedbackByIDs(ctx context.Context, ids []uuid.UUID) ([]models.FeedbackItem, error)
	CountUnassignedFeedback(ctx context.Context) (int, error)
	CountFeedbackByStatus(ctx context.Context, status models.FeedbackStatus) (int, error)
}

// ProductLister supplies the product snapshot used for descendant expansion.
type ProductLister interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

type Composer struct {
	repo     Repository
	products ProductLister
}

func NewComposer(repo Repository, products ProductLister) *Composer {
	return &Composer{repo: repo, products: products}
}

// List resolves f into one page of feedback plus the global counters.
func (c *Composer) List(ctx context.Context, f Filter) (*ListResult, error) {
	f = f.normalized()
	ctx, span := tracing.StartSpan(ctx, "feedback.List",
		attribute.Int("page", f.Page),
		attribute.Bool("search", f.Search != ""),
	)
	defer span.End()

	res := &ListResult{
		Items:    []models.FeedbackItem{},
		Page:     f.Page,
		PageSize: f.PageSize,
	}

	crit, matchable, err := c.criteria(ctx, f)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.repo.CountUnassignedFeedback(gctx)
		if err != nil {
			return fmt.Errorf("count unassigned feedback: %w", err)
		}
		res.TotalUnassigned = n
		return nil
	})
	g.Go(func() error {
		n, err := c.repo.CountFeedbackByStatus(gctx, models.FeedbackNew)
		if err != nil {
			return fmt.Errorf("count new feedback: %w", err)
		}
		res.NewCount = n
		return nil
	})
	g.Go(func() error {
		var (
			items []models.FeedbackItem
			total int
			err   error
			path  string
		)
		switch {
		case !matchable:
			path = "empty"
		case crit.Search != "":
			items, total, path, err = c.search(gctx, crit, f)
		case len(crit.ProductIDs) > 0 && crit.ProductUnassigned:
			path = "split"
			items, total, err = c.splitOr(gctx, crit, f)
		default:
			path = "page"
			items, total, err = c.repo.ListFeedbackPage(gctx, crit, f.SortDir, f.PageSize, f.offset())
		}
		if err != nil {
			return fmt.Errorf("list feedback (%s): %w", path, err)
		}
		metrics.FeedbackListPath.WithLabelValues(path).Inc()
		if items != nil {
			res.Items = items
		}
		res.Total = total
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	res.TotalPages = TotalPages(res.Total, res.PageSize)
	return res, nil
}

// criteria normalises f. matchable is false when the filter can match no row
// (unknown status, unparsable ids) so storage is never asked.
func (c *Composer) criteria(ctx context.Context, f Filter) (Criteria, bool, error) {
	crit := Criteria{
		ProductUnassigned: f.IncludeUnassigned,
		Search:            f.Search,
	}

	if f.Status != "" {
		st := models.FeedbackStatus(f.Status)
		if !st.Valid() {
			return crit, false, nil
		}
		crit.Status = st
	}

	switch opp := f.OpportunityID; {
	case opp == "":
	case strings.EqualFold(opp, Unassigned):
		crit.OpportunityUnassigned = true
	default:
		id, err := uuid.Parse(opp)
		if err != nil {
			return crit, false, nil
		}
		crit.OpportunityID = &id
	}

	if len(f.ProductIDs) > 0 {
		var ids []uuid.UUID
		for _, raw := range f.ProductIDs {
			if id, err := uuid.Parse(raw); err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			flat, err := c.products.ListProducts(ctx)
			if err != nil {
				return crit, false, fmt.Errorf("load products: %w", err)
			}
			crit.ProductIDs = products.ExpandWithDescendants(flat, ids)
		} else if !crit.ProductUnassigned {
			return crit, false, nil
		}
	}

	return crit, true, nil
}

// splitOr serves "these products OR unassigned" by fetching both key sets
// concurrently and paginating the merged list in memory.
func (c *Composer) splitOr(ctx context.Context, crit Criteria, f Filter) ([]models.FeedbackItem, int, error) {
	assignedCrit := crit
	assignedCrit.ProductUnassigned = false
	unassignedCrit := crit
	unassignedCrit.ProductIDs = nil

	var assigned, unassigned []Key
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keys, err := c.repo.ListFeedbackKeys(gctx, assignedCrit)
		assigned = keys
		return err
	})
	g.Go(func() error {
		keys, err := c.repo.ListFeedbackKeys(gctx, unassignedCrit)
		unassigned = keys
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	merged := MergeKeys(f.SortDir, assigned, unassigned)
	page := PageKeys(merged, f.offset(), f.PageSize)
	if len(page) == 0 {
		return nil, len(merged), nil
	}
	items, err := c.hydrate(ctx, keyIDs(page))
	if err != nil {
		return nil, 0, err
	}
	return items, len(merged), nil
}

func (c *Composer) search(ctx context.Context, crit Criteria, f Filter) ([]models.FeedbackItem, int, string, error) {
	ranked, err := c.repo.HasSearchIndex(ctx)
	if err != nil {
		return nil, 0, "", err
	}
	path := "search_substring"
	if ranked {
		path = "search_ranked"
	}

	ids, total, err := c.repo.SearchFeedback(ctx, crit, ranked, f.SortDir, f.PageSize, f.offset())
	if err != nil {
		return nil, 0, path, err
	}
	if len(ids) == 0 {
		return nil, total, path, nil
	}
	items, err := c.hydrate(ctx, ids)
	if err != nil {
		return nil, 0, path, err
	}
	return items, total, path, nil
}

func (c *Composer) hydrate(ctx context.Context, ids []uuid.UUID) ([]models.FeedbackItem, error) {
	items, err := c.repo.GetFeedbackByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return orderByIDs(items, ids), nil
}
