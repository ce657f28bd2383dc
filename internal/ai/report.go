package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/david/feedback-triage/internal/metrics"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/sanitize"
)

const maxReportItems = 100

const reportSystemPrompt = `You are a product analyst. Summarise the customer feedback linked to a product opportunity.
Write 3-5 sentences of plain text: the core problem, who is affected, how often it comes up and any notable quotes.
Do not use markdown or lists.`

// SummarizeOpportunity writes a short plain-text report of the feedback
// linked to opp.
func SummarizeOpportunity(ctx context.Context, gen Generator, opp models.Opportunity, items []models.FeedbackItem) (string, error) {
	if len(items) > maxReportItems {
		items = items[:maxReportItems]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "OPPORTUNITY: %s\n", opp.Title)
	if opp.Description != "" {
		fmt.Fprintf(&b, "DESCRIPTION: %s\n", opp.Description)
	}
	fmt.Fprintf(&b, "LINKED FEEDBACK (%d items):\n", len(items))
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s", i+1, it.Title)
		if it.Description != "" {
			fmt.Fprintf(&b, ": %s", strings.ReplaceAll(it.Description, "\n", " "))
		}
		b.WriteString("\n")
	}

	resp, err := gen.GenerateCompletion(ctx, reportSystemPrompt, b.String(), false)
	if err != nil {
		metrics.ClusterAnalyses.WithLabelValues("report_failed").Inc()
		return "", fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	summary := sanitize.Text(resp)
	if summary == "" {
		return "", ErrAnalysisFailed
	}
	return summary, nil
}
