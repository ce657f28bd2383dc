package scoring

import (
	"sort"
	"strings"

	"github.com/david/feedback-triage/internal/models"
)

// Roadmap buckets opportunities by horizon. Opportunities without a horizon
// land in Unplanned.
type Roadmap struct {
	Now       []models.Opportunity `json:"now"`
	Next      []models.Opportunity `json:"next"`
	Later     []models.Opportunity `json:"later"`
	Unplanned []models.Opportunity `json:"unplanned"`
	MaxScore  float64              `json:"max_score"`
}

// BuildRoadmap annotates opps with their combined score and groups them, each
// bucket ordered by score descending then title.
func BuildRoadmap(opps []models.Opportunity, dims []models.Dimension) Roadmap {
	annotated := make([]models.Opportunity, len(opps))
	copy(annotated, opps)
	AnnotateOpportunities(annotated, dims)

	rm := Roadmap{
		Now:       []models.Opportunity{},
		Next:      []models.Opportunity{},
		Later:     []models.Opportunity{},
		Unplanned: []models.Opportunity{},
		MaxScore:  MaxPossibleScore(dims),
	}
	for _, o := range annotated {
		switch {
		case o.Horizon == nil:
			rm.Unplanned = append(rm.Unplanned, o)
		case *o.Horizon == models.HorizonNow:
			rm.Now = append(rm.Now, o)
		case *o.Horizon == models.HorizonNext:
			rm.Next = append(rm.Next, o)
		case *o.Horizon == models.HorizonLater:
			rm.Later = append(rm.Later, o)
		default:
			rm.Unplanned = append(rm.Unplanned, o)
		}
	}
	for _, bucket := range [][]models.Opportunity{rm.Now, rm.Next, rm.Later, rm.Unplanned} {
		SortOpportunitiesByScore(bucket)
	}
	return rm
}

// SortOpportunitiesByScore orders annotated opportunities by combined score
// descending, then title.
func SortOpportunitiesByScore(opps []models.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].CombinedScore != opps[j].CombinedScore {
			return opps[i].CombinedScore > opps[j].CombinedScore
		}
		return strings.ToLower(opps[i].Title) < strings.ToLower(opps[j].Title)
	})
}

func SortFeaturesByScore(features []models.Feature) {
	sort.SliceStable(features, func(i, j int) bool {
		if features[i].CombinedScore != features[j].CombinedScore {
			return features[i].CombinedScore > features[j].CombinedScore
		}
		return strings.ToLower(features[i].Title) < strings.ToLower(features[j].Title)
	})
}
