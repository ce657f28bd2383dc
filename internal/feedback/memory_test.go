package feedback

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/david/feedback-triage/internal/models"
)

// memoryRepo is an in-memory Repository mirroring the SQL predicates.
type memoryRepo struct {
	mu        sync.Mutex
	items     []models.FeedbackItem
	products  []models.Product
	indexed   bool
	pageCalls int
	keyCalls  int
	searches  int
	lastCrits []Criteria
}

func (m *memoryRepo) ListProducts(context.Context) ([]models.Product, error) {
	return m.products, nil
}

func (m *memoryRepo) record(c Criteria) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCrits = append(m.lastCrits, c)
}

func (m *memoryRepo) matches(it models.FeedbackItem, c Criteria) bool {
	if len(c.ProductIDs) > 0 || c.ProductUnassigned {
		ok := false
		if c.ProductUnassigned && it.ProductID == nil {
			ok = true
		}
		if it.ProductID != nil {
			for _, id := range c.ProductIDs {
				if id == *it.ProductID {
					ok = true
				}
			}
		}
		if !ok {
			return false
		}
	}
	if c.Status != "" && it.Status != c.Status {
		return false
	}
	if c.OpportunityUnassigned && len(it.Opportunities) > 0 {
		return false
	}
	if c.OpportunityID != nil {
		found := false
		for _, o := range it.Opportunities {
			if o.ID == *c.OpportunityID {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if c.Search != "" {
		q := strings.ToLower(c.Search)
		if !strings.Contains(strings.ToLower(it.Title), q) && !strings.Contains(strings.ToLower(it.Description), q) {
			return false
		}
	}
	return true
}

func (m *memoryRepo) matchingKeys(c Criteria, dir SortDir) []Key {
	var keys []Key
	for _, it := range m.items {
		if m.matches(it, c) {
			keys = append(keys, Key{ID: it.ID, CreatedAt: it.CreatedAt})
		}
	}
	return MergeKeys(dir, keys)
}

func (m *memoryRepo) ListFeedbackPage(_ context.Context, c Criteria, dir SortDir, limit, offset int) ([]models.FeedbackItem, int, error) {
	m.record(c)
	m.mu.Lock()
	m.pageCalls++
	m.mu.Unlock()
	keys := m.matchingKeys(c, dir)
	items, _ := m.GetFeedbackByIDs(context.Background(), keyIDs(PageKeys(keys, offset, limit)))
	return orderByIDs(items, keyIDs(PageKeys(keys, offset, limit))), len(keys), nil
}

func (m *memoryRepo) ListFeedbackKeys(_ context.Context, c Criteria) ([]Key, error) {
	m.record(c)
	m.mu.Lock()
	m.keyCalls++
	m.mu.Unlock()
	return m.matchingKeys(c, SortDesc), nil
}

func (m *memoryRepo) HasSearchIndex(context.Context) (bool, error) { return m.indexed, nil }

func (m *memoryRepo) SearchFeedback(_ context.Context, c Criteria, _ bool, dir SortDir, limit, offset int) ([]uuid.UUID, int, error) {
	m.record(c)
	m.mu.Lock()
	m.searches++
	m.mu.Unlock()
	keys := m.matchingKeys(c, dir)
	return keyIDs(PageKeys(keys, offset, limit)), len(keys), nil
}

func (m *memoryRepo) GetFeedbackByIDs(_ context.Context, ids []uuid.UUID) ([]models.FeedbackItem, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.FeedbackItem
	// reverse insertion order so callers must reorder
	for i := len(m.items) - 1; i >= 0; i-- {
		if want[m.items[i].ID] {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *memoryRepo) CountUnassignedFeedback(context.Context) (int, error) {
	n := 0
	for _, it := range m.items {
		if len(it.Opportunities) == 0 {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) CountFeedbackByStatus(_ context.Context, st models.FeedbackStatus) (int, error) {
	n := 0
	for _, it := range m.items {
		if it.Status == st {
			n++
		}
	}
	return n, nil
}
