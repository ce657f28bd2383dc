package models

import (
	"time"

	"github.com/google/uuid"
)

type Horizon string

const (
	HorizonNow   Horizon = "now"
	HorizonNext  Horizon = "next"
	HorizonLater Horizon = "later"
)

func (h Horizon) Valid() bool {
	switch h {
	case HorizonNow, HorizonNext, HorizonLater:
		return true
	}
	return false
}

type OpportunityStatus string

const (
	OpportunityDraft       OpportunityStatus = "draft"
	OpportunityUnderReview OpportunityStatus = "under_review"
	OpportunityApproved    OpportunityStatus = "approved"
	OpportunityOnRoadmap   OpportunityStatus = "on_roadmap"
	OpportunityRejected    OpportunityStatus = "rejected"
)

func (s OpportunityStatus) Valid() bool {
	switch s {
	case OpportunityDraft, OpportunityUnderReview, OpportunityApproved, OpportunityOnRoadmap, OpportunityRejected:
		return true
	}
	return false
}

// Opportunity groups feedback items into a product theme that is scored and roadmapped.
// CombinedScore is derived on read and never stored.
type Opportunity struct {
	ID            uuid.UUID         `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	ProductID     *uuid.UUID        `json:"product_id"`
	Scores        ScoreMap          `json:"scores"`
	Explanations  ExplanationMap    `json:"explanations"`
	ReportSummary string            `json:"report_summary,omitempty"`
	Horizon       *Horizon          `json:"horizon"`
	Quarter       string            `json:"quarter,omitempty"`
	Status        OpportunityStatus `json:"status"`
	FeedbackCount int               `json:"feedback_count"`
	CombinedScore float64           `json:"combined_score"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Feature is a scored candidate that lives outside the feedback flow.
type Feature struct {
	ID            uuid.UUID      `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Scores        ScoreMap       `json:"scores"`
	Explanations  ExplanationMap `json:"explanations"`
	CombinedScore float64        `json:"combined_score"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
