package models

import (
	"time"

	"github.com/google/uuid"
)

type FeedbackStatus string

const (
	FeedbackNew      FeedbackStatus = "new"
	FeedbackReviewed FeedbackStatus = "reviewed"
	FeedbackRejected FeedbackStatus = "rejected"
)

func (s FeedbackStatus) Valid() bool {
	switch s {
	case FeedbackNew, FeedbackReviewed, FeedbackRejected:
		return true
	}
	return false
}

type FeedbackItem struct {
	ID            uuid.UUID         `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Status        FeedbackStatus    `json:"status"`
	ProductID     *uuid.UUID        `json:"product_id"`
	ImportID      *uuid.UUID        `json:"import_id"`
	CreatedAt     time.Time         `json:"created_at"`
	Opportunities []OpportunityRef  `json:"opportunities"`
}

// OpportunityRef is the slim view of an opportunity embedded in feedback responses.
type OpportunityRef struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// ImportRecord tracks one CSV batch. Deleting it deletes its feedback.
type ImportRecord struct {
	ID            uuid.UUID  `json:"id"`
	Filename      string     `json:"filename"`
	ProductID     *uuid.UUID `json:"product_id"`
	RowCount      int        `json:"row_count"`
	SkippedCount  int        `json:"skipped_count"`
	FeedbackCount int        `json:"feedback_count"`
	CreatedAt     time.Time  `json:"created_at"`
}
