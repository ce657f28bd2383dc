package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/david/feedback-triage/internal/models"
)

// ScoreUpdate is a partial change to a scored entity. A nil score removes the entry.
type ScoreUpdate struct {
	Scores       map[string]*float64 `json:"scores"`
	Explanations map[string]string   `json:"explanations"`
}

// ValidateRawScore checks that raw lies in the range the dimension type allows.
func ValidateRawScore(d models.Dimension, raw float64) error {
	switch d.Type {
	case models.DimensionScale:
		if raw != 1 && raw != 2 && raw != 3 {
			return fmt.Errorf("dimension %q expects 1, 2 or 3, got %v", d.Name, raw)
		}
	default:
		if raw != 0 && raw != 1 {
			return fmt.Errorf("dimension %q expects 0 or 1, got %v", d.Name, raw)
		}
	}
	return nil
}

// Apply merges u into copies of scores and explanations. Dimension ids that are not in
// dims are rejected, so deleted dimensions can't be written back to life.
func Apply(scores models.ScoreMap, explanations models.ExplanationMap, u ScoreUpdate, dims []models.Dimension) (models.ScoreMap, models.ExplanationMap, error) {
	byID := make(map[string]models.Dimension, len(dims))
	for _, d := range dims {
		byID[d.ID.String()] = d
	}

	nextScores := make(models.ScoreMap, len(scores)+len(u.Scores))
	for k, v := range scores {
		nextScores[k] = v
	}
	nextExpl := make(models.ExplanationMap, len(explanations)+len(u.Explanations))
	for k, v := range explanations {
		nextExpl[k] = v
	}

	for id, raw := range u.Scores {
		d, ok := byID[id]
		if !ok {
			return nil, nil, fmt.Errorf("unknown dimension %s", id)
		}
		if raw == nil {
			delete(nextScores, id)
			continue
		}
		if err := ValidateRawScore(d, *raw); err != nil {
			return nil, nil, err
		}
		nextScores[id] = *raw
	}

	for id, text := range u.Explanations {
		if _, ok := byID[id]; !ok {
			return nil, nil, fmt.Errorf("unknown dimension %s", id)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			delete(nextExpl, id)
			continue
		}
		nextExpl[id] = text
	}

	return nextScores, nextExpl, nil
}

// SortDimensions orders dimensions for display: order ascending, then name.
func SortDimensions(dims []models.Dimension) {
	sort.SliceStable(dims, func(i, j int) bool {
		if dims[i].Order != dims[j].Order {
			return dims[i].Order < dims[j].Order
		}
		return strings.ToLower(dims[i].Name) < strings.ToLower(dims[j].Name)
	})
}

// TagGroup is a display bucket of dimensions sharing a tag.
type TagGroup struct {
	Tag        string             `json:"tag"`
	Dimensions []models.Dimension `json:"dimensions"`
}

// GroupByTag buckets already-sorted dimensions by tag, keeping first-seen tag order.
func GroupByTag(dims []models.Dimension) []TagGroup {
	var groups []TagGroup
	index := map[string]int{}
	for _, d := range dims {
		tag := d.Tag
		if tag == "" {
			tag = models.DefaultDimensionTag
		}
		i, ok := index[tag]
		if !ok {
			i = len(groups)
			index[tag] = i
			groups = append(groups, TagGroup{Tag: tag})
		}
		groups[i].Dimensions = append(groups[i].Dimensions, d)
	}
	return groups
}

// AnnotateOpportunities recomputes CombinedScore on every opportunity in place.
func AnnotateOpportunities(opps []models.Opportunity, dims []models.Dimension) {
	for i := range opps {
		opps[i].CombinedScore = ComputeCombinedScore(opps[i].Scores, dims)
	}
}

func AnnotateFeatures(features []models.Feature, dims []models.Dimension) {
	for i := range features {
		features[i].CombinedScore = ComputeCombinedScore(features[i].Scores, dims)
	}
}
