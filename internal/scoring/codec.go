package scoring

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/david/feedback-triage/internal/models"
)

// ParseScores decodes a stored score blob. Anything malformed yields an empty map so a
// single corrupted row renders as unscored instead of failing the read.
func ParseScores(raw []byte) models.ScoreMap {
	out := models.ScoreMap{}
	if len(raw) == 0 {
		return out
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return out
	}
	for k, v := range generic {
		switch n := v.(type) {
		case float64:
			if !math.IsNaN(n) && !math.IsInf(n, 0) {
				out[k] = n
			}
		case json.Number:
			if f, err := n.Float64(); err == nil {
				out[k] = f
			}
		}
	}
	return out
}

// ParseExplanations decodes a stored explanation blob, degrading to an empty map.
func ParseExplanations(raw []byte) models.ExplanationMap {
	out := models.ExplanationMap{}
	if len(raw) == 0 {
		return out
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return out
	}
	for k, v := range generic {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func EncodeScores(s models.ScoreMap) ([]byte, error) {
	if s == nil {
		s = models.ScoreMap{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode scores: %w", err)
	}
	return b, nil
}

func EncodeExplanations(e models.ExplanationMap) ([]byte, error) {
	if e == nil {
		e = models.ExplanationMap{}
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode explanations: %w", err)
	}
	return b, nil
}
