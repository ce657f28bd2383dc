package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/david/feedback-triage/internal/logger"
	"github.com/david/feedback-triage/internal/metrics"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/sanitize"
)

// MaxClusterItems bounds how much feedback one analysis sends to the model.
const MaxClusterItems = 300

const maxPromptDescription = 500

var ErrAnalysisFailed = errors.New("analysis failed, try again")

// Cluster is a proposed opportunity. FeedbackIDs are resolved from the
// model's 1-based item numbers.
type Cluster struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ProductID   *uuid.UUID  `json:"product_id"`
	FeedbackIDs []uuid.UUID `json:"feedback_ids"`
}

type rawCluster struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	ProductID   *string           `json:"productId"`
	Items       []json.RawMessage `json:"items"`
}

type rawClusterResponse struct {
	Clusters []rawCluster `json:"clusters"`
}

type Clusterer struct {
	gen Generator
	log *logger.Logger
}

func NewClusterer(gen Generator, log *logger.Logger) *Clusterer {
	return &Clusterer{gen: gen, log: log}
}

// BuildClusterPrompt numbers items from 1 and lists the known products.
func BuildClusterPrompt(items []models.FeedbackItem, catalog []models.Product) string {
	var b strings.Builder
	b.WriteString("PRODUCTS (id: name):\n")
	if len(catalog) == 0 {
		b.WriteString("(none)\n")
	}
	for _, p := range catalog {
		fmt.Fprintf(&b, "- %s: %s\n", p.ID, p.Name)
	}
	b.WriteString("\nFEEDBACK ITEMS:\n")
	for i, it := range items {
		desc := it.Description
		if r := []rune(desc); len(r) > maxPromptDescription {
			desc = string(r[:maxPromptDescription]) + "..."
		}
		fmt.Fprintf(&b, "%d. %s", i+1, it.Title)
		if desc != "" {
			fmt.Fprintf(&b, " | %s", strings.ReplaceAll(desc, "\n", " "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nRespond ONLY with the JSON object.")
	return b.String()
}

// Analyze asks the model to group items and validates the answer. JSON mode
// is tried first; an unparsable answer is retried once in text mode.
func (c *Clusterer) Analyze(ctx context.Context, systemPrompt string, items []models.FeedbackItem, catalog []models.Product) ([]Cluster, error) {
	if len(items) > MaxClusterItems {
		items = items[:MaxClusterItems]
	}
	if len(items) == 0 {
		return []Cluster{}, nil
	}
	prompt := BuildClusterPrompt(items, catalog)

	var parsed *rawClusterResponse
	for _, jsonMode := range []bool{true, false} {
		resp, err := c.gen.GenerateCompletion(ctx, systemPrompt, prompt, jsonMode)
		if err != nil {
			c.log.Warn("cluster generation failed", "json_mode", jsonMode, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		parsed, err = parseClusterResponse(resp)
		if err == nil {
			break
		}
		c.log.Warn("cluster response unparsable", "json_mode", jsonMode, "error", err)
	}
	if parsed == nil {
		metrics.ClusterAnalyses.WithLabelValues("failed").Inc()
		return nil, ErrAnalysisFailed
	}

	clusters := validateClusters(parsed.Clusters, items, catalog)
	metrics.ClusterAnalyses.WithLabelValues("ok").Inc()
	return clusters, nil
}

func parseClusterResponse(resp string) (*rawClusterResponse, error) {
	var out rawClusterResponse
	if err := json.Unmarshal([]byte(cleanModelJSON(resp)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// validateClusters drops out-of-range and repeated item numbers, nulls unknown
// product ids and discards clusters left without items.
func validateClusters(raw []rawCluster, items []models.FeedbackItem, catalog []models.Product) []Cluster {
	out := []Cluster{}
	for _, rc := range raw {
		seen := map[int]bool{}
		var ids []uuid.UUID
		for _, msg := range rc.Items {
			n, ok := itemNumber(msg)
			if !ok || n < 1 || n > len(items) || seen[n] {
				continue
			}
			seen[n] = true
			ids = append(ids, items[n-1].ID)
		}
		if len(ids) == 0 {
			continue
		}

		title := sanitize.Line(rc.Title)
		if title == "" {
			title = "Untitled opportunity"
		}
		out = append(out, Cluster{
			Title:       title,
			Description: sanitize.Text(rc.Description),
			ProductID:   matchProduct(rc.ProductID, catalog),
			FeedbackIDs: ids,
		})
	}
	return out
}

// itemNumber accepts 3, 3.0 or "3".
func itemNumber(msg json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(msg, &f); err == nil {
		if f != float64(int(f)) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil
	}
	return 0, false
}

// matchProduct resolves the model's product reference by id, falling back to
// a case-insensitive name match. Anything else is dropped.
func matchProduct(ref *string, catalog []models.Product) *uuid.UUID {
	if ref == nil {
		return nil
	}
	want := strings.TrimSpace(*ref)
	if want == "" {
		return nil
	}
	if id, err := uuid.Parse(want); err == nil {
		for _, p := range catalog {
			if p.ID == id {
				return &id
			}
		}
		return nil
	}
	for _, p := range catalog {
		if strings.EqualFold(p.Name, want) {
			id := p.ID
			return &id
		}
	}
	return nil
}
