package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DimensionType string

const (
	DimensionYesNo DimensionType = "yesno"
	DimensionScale DimensionType = "scale"
)

type Direction string

const (
	DirectionBenefit Direction = "benefit"
	DirectionCost    Direction = "cost"
)

const DefaultDimensionTag = "General"

// Dimension is a weighted evaluation axis that features and opportunities are scored on.
type Dimension struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Type      DimensionType `json:"type"`
	Weight    float64       `json:"weight"`
	Order     int           `json:"order"`
	Tag       string        `json:"tag"`
	Direction Direction     `json:"direction"`
	CreatedAt time.Time     `json:"created_at"`
}

// ParseDimensionType coerces any unrecognised input to yesno.
func ParseDimensionType(s string) DimensionType {
	if DimensionType(s) == DimensionScale {
		return DimensionScale
	}
	return DimensionYesNo
}

// ParseDirection coerces any unrecognised input to benefit.
func ParseDirection(s string) Direction {
	if Direction(s) == DirectionCost {
		return DirectionCost
	}
	return DirectionBenefit
}

// NormalizeDimension applies creation defaults: coerced type and direction,
// weight 1 when not positive, and the default tag when blank.
func NormalizeDimension(d Dimension) Dimension {
	d.Name = strings.TrimSpace(d.Name)
	d.Type = ParseDimensionType(string(d.Type))
	d.Direction = ParseDirection(string(d.Direction))
	if d.Weight <= 0 || math.IsNaN(d.Weight) || math.IsInf(d.Weight, 0) {
		d.Weight = 1
	}
	d.Tag = strings.TrimSpace(d.Tag)
	if d.Tag == "" {
		d.Tag = DefaultDimensionTag
	}
	return d
}

// ScoreMap holds raw per-dimension scores keyed by dimension id. Entries are sparse.
type ScoreMap map[string]float64

// ExplanationMap holds free-text rationale per dimension id.
type ExplanationMap map[string]string
