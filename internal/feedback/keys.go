package feedback

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/david/feedback-triage/internal/models"
)

// Key is the sort key of a feedback row.
type Key struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

func keyLess(a, b Key, dir SortDir) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if dir == SortAsc {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	}
	c := bytes.Compare(a.ID[:], b.ID[:])
	if dir == SortAsc {
		return c < 0
	}
	return c > 0
}

// MergeKeys concatenates key sets, drops duplicate ids and sorts by
// (createdAt, id) in dir.
func MergeKeys(dir SortDir, sets ...[]Key) []Key {
	seen := make(map[uuid.UUID]struct{})
	var out []Key
	for _, set := range sets {
		for _, k := range set {
			if _, ok := seen[k.ID]; ok {
				continue
			}
			seen[k.ID] = struct{}{}
			out = append(out, k)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return keyLess(out[i], out[j], dir) })
	return out
}

// PageKeys returns the window [offset, offset+limit) of keys.
func PageKeys(keys []Key, offset, limit int) []Key {
	if offset < 0 || offset >= len(keys) || limit <= 0 {
		return nil
	}
	end := offset + limit
	if end > len(keys) {
		end = len(keys)
	}
	return keys[offset:end]
}

func keyIDs(keys []Key) []uuid.UUID {
	ids := make([]uuid.UUID, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}
	return ids
}

// orderByIDs returns items arranged in ids order. Ids without a row are skipped.
func orderByIDs(items []models.FeedbackItem, ids []uuid.UUID) []models.FeedbackItem {
	byID := make(map[uuid.UUID]models.FeedbackItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]models.FeedbackItem, 0, len(ids))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	return out
}
