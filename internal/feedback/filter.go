package feedback

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/david/feedback-triage/internal/models"
)

const (
	// Unassigned is the sentinel accepted for both the product and opportunity filters.
	Unassigned = "unassigned"

	DefaultPageSize = 25
	MaxPageSize     = 100

	minSearchRunes = 2
)

type SortDir string

const (
	SortDesc SortDir = "desc"
	SortAsc  SortDir = "asc"
)

// Filter is the caller-facing list request.
type Filter struct {
	ProductIDs        []string
	IncludeUnassigned bool
	Status            string
	OpportunityID     string
	Search            string
	SortDir           SortDir
	Page              int
	PageSize          int
}

// Criteria is the normalised predicate handed to the repository. ProductIDs
// already include descendants. When both ProductIDs and ProductUnassigned are
// set they are OR-ed; all other fields are AND-ed.
type Criteria struct {
	ProductIDs            []uuid.UUID
	ProductUnassigned     bool
	Status                models.FeedbackStatus
	OpportunityID         *uuid.UUID
	OpportunityUnassigned bool
	Search                string
}

// ListResult is the page returned by Composer.List.
type ListResult struct {
	Items           []models.FeedbackItem `json:"items"`
	Total           int                   `json:"total"`
	TotalPages      int                   `json:"total_pages"`
	TotalUnassigned int                   `json:"total_unassigned"`
	NewCount        int                   `json:"new_count"`
	Page            int                   `json:"page"`
	PageSize        int                   `json:"page_size"`
}

// ParseProductParam splits a comma separated product filter into ids and the
// unassigned sentinel.
func ParseProductParam(raw string) (ids []string, unassigned bool) {
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case strings.EqualFold(part, Unassigned):
			unassigned = true
		default:
			ids = append(ids, part)
		}
	}
	return ids, unassigned
}

func ParseSortDir(raw string) SortDir {
	if strings.EqualFold(strings.TrimSpace(raw), string(SortAsc)) {
		return SortAsc
	}
	return SortDesc
}

func (f Filter) normalized() Filter {
	if f.SortDir != SortAsc {
		f.SortDir = SortDesc
	}
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PageSize <= 0:
		f.PageSize = DefaultPageSize
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	}
	if maxPage := math.MaxInt / f.PageSize; f.Page > maxPage {
		f.Page = maxPage
	}
	f.Search = strings.TrimSpace(f.Search)
	if len([]rune(f.Search)) < minSearchRunes {
		f.Search = ""
	}
	return f
}

func (f Filter) offset() int {
	return (f.Page - 1) * f.PageSize
}

// TotalPages is ceil(total/pageSize), 0 for an empty result.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}
