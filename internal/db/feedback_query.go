package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/david/feedback-triage/internal/feedback"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/tracing"
)

var _ feedback.Repository = (*Store)(nil)

const feedbackCols = `f.id, f.title, f.description, f.metadata, f.status, f.product_id, f.import_id, f.created_at`

func scanFeedback(scan func(dest ...any) error) (models.FeedbackItem, error) {
	var it models.FeedbackItem
	var description *string
	var metadataRaw []byte
	var status string
	err := scan(&it.ID, &it.Title, &description, &metadataRaw, &status, &it.ProductID, &it.ImportID, &it.CreatedAt)
	if err != nil {
		return it, err
	}
	it.Description = deref(description)
	it.Metadata = decodeMetadata(metadataRaw)
	it.Status = models.FeedbackStatus(status)
	it.Opportunities = []models.OpportunityRef{}
	return it, nil
}

// feedbackWhere renders c as WHERE terms against the alias f.
func feedbackWhere(sb *sqlbuilder.SelectBuilder, c feedback.Criteria) []string {
	var where []string

	var productTerms []string
	if len(c.ProductIDs) > 0 {
		productTerms = append(productTerms, sb.In("f.product_id", uuidArgs(c.ProductIDs)...))
	}
	if c.ProductUnassigned {
		productTerms = append(productTerms, sb.IsNull("f.product_id"))
	}
	if len(productTerms) > 0 {
		where = append(where, sb.Or(productTerms...))
	}

	if c.Status != "" {
		where = append(where, sb.Equal("f.status", string(c.Status)))
	}

	if c.OpportunityUnassigned {
		where = append(where, "NOT EXISTS (SELECT 1 FROM feedback_opportunities fo WHERE fo.feedback_id = f.id)")
	} else if c.OpportunityID != nil {
		where = append(where, "EXISTS (SELECT 1 FROM feedback_opportunities fo WHERE fo.feedback_id = f.id AND fo.opportunity_id = "+sb.Var(c.OpportunityID.String())+")")
	}

	return where
}

func feedbackOrder(dir feedback.SortDir) []string {
	if dir == feedback.SortAsc {
		return []string{"f.created_at ASC", "f.id ASC"}
	}
	return []string{"f.created_at DESC", "f.id DESC"}
}

func (s *Store) countFeedback(ctx context.Context, c feedback.Criteria, extra func(sb *sqlbuilder.SelectBuilder) []string) (int, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)").From("feedback_items f")
	where := feedbackWhere(sb, c)
	if extra != nil {
		where = append(where, extra(sb)...)
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	query, args := sb.Build()

	var total int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count feedback: %w", err)
	}
	return total, nil
}

func (s *Store) ListFeedbackPage(ctx context.Context, c feedback.Criteria, dir feedback.SortDir, limit, offset int) ([]models.FeedbackItem, int, error) {
	ctx, span := tracing.StartSpan(ctx, "db.ListFeedbackPage")
	defer span.End()

	total, err := s.countFeedback(ctx, c, nil)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 || offset >= total {
		return nil, total, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(feedbackCols).From("feedback_items f")
	if where := feedbackWhere(sb, c); len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy(feedbackOrder(dir)...)
	sb.Limit(limit).Offset(offset)
	query, args := sb.Build()

	items, err := s.queryFeedback(ctx, s.pool, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) ListFeedbackKeys(ctx context.Context, c feedback.Criteria) ([]feedback.Key, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("f.id", "f.created_at").From("feedback_items f")
	if where := feedbackWhere(sb, c); len(where) > 0 {
		sb.Where(where...)
	}
	query, args := sb.Build()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback keys: %w", err)
	}
	defer rows.Close()

	var keys []feedback.Key
	for rows.Next() {
		var k feedback.Key
		if err := rows.Scan(&k.ID, &k.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// HasSearchIndex reports whether the generated search_vector column exists.
func (s *Store) HasSearchIndex(ctx context.Context) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = 'feedback_items' AND column_name = 'search_vector'
		)
	`).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("probe search index: %w", err)
	}
	return ok, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *Store) SearchFeedback(ctx context.Context, c feedback.Criteria, ranked bool, dir feedback.SortDir, limit, offset int) ([]uuid.UUID, int, error) {
	ctx, span := tracing.StartSpan(ctx, "db.SearchFeedback")
	defer span.End()

	q := c.Search
	match := func(sb *sqlbuilder.SelectBuilder) []string {
		if ranked {
			return []string{"f.search_vector @@ plainto_tsquery('english', " + sb.Var(q) + ")"}
		}
		pattern := "%" + escapeLike(q) + "%"
		return []string{sb.Or(
			"f.title ILIKE "+sb.Var(pattern),
			"COALESCE(f.description, '') ILIKE "+sb.Var(pattern),
		)}
	}

	total, err := s.countFeedback(ctx, c, match)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 || offset >= total {
		return nil, total, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("f.id").From("feedback_items f")
	sb.Where(append(feedbackWhere(sb, c), match(sb)...)...)
	order := feedbackOrder(dir)
	if ranked {
		order = append([]string{"ts_rank(f.search_vector, plainto_tsquery('english', " + sb.Var(q) + ")) DESC"}, order...)
	}
	sb.OrderBy(order...)
	sb.Limit(limit).Offset(offset)
	query, args := sb.Build()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search feedback: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return ids, total, nil
}

func (s *Store) GetFeedbackByIDs(ctx context.Context, ids []uuid.UUID) ([]models.FeedbackItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryFeedback(ctx, s.pool,
		`SELECT `+feedbackCols+` FROM feedback_items f WHERE f.id = ANY($1::uuid[])`,
		uuidStrings(ids))
}

func (s *Store) CountUnassignedFeedback(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM feedback_items f
		WHERE NOT EXISTS (SELECT 1 FROM feedback_opportunities fo WHERE fo.feedback_id = f.id)
	`).Scan(&n)
	return n, err
}

func (s *Store) CountFeedbackByStatus(ctx context.Context, status models.FeedbackStatus) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM feedback_items WHERE status = $1`, string(status)).Scan(&n)
	return n, err
}

// queryFeedback runs a feedback select and attaches opportunity links.
func (s *Store) queryFeedback(ctx context.Context, q querier, query string, args ...any) ([]models.FeedbackItem, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var items []models.FeedbackItem
	for rows.Next() {
		it, err := scanFeedback(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := attachOpportunities(ctx, q, items); err != nil {
		return nil, err
	}
	return items, nil
}

func attachOpportunities(ctx context.Context, q querier, items []models.FeedbackItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
		index[it.ID] = i
	}

	rows, err := q.Query(ctx, `
		SELECT fo.feedback_id, o.id, o.title
		FROM feedback_opportunities fo
		JOIN opportunities o ON o.id = fo.opportunity_id
		WHERE fo.feedback_id = ANY($1::uuid[])
		ORDER BY fo.created_at, o.title
	`, uuidStrings(ids))
	if err != nil {
		return fmt.Errorf("load feedback links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fid uuid.UUID
		var ref models.OpportunityRef
		if err := rows.Scan(&fid, &ref.ID, &ref.Title); err != nil {
			return err
		}
		if i, ok := index[fid]; ok {
			items[i].Opportunities = append(items[i].Opportunities, ref)
		}
	}
	return rows.Err()
}
