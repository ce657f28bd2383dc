// Package seed loads dimension definitions from YAML and inserts the ones
// that don't exist yet.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/david/feedback-triage/internal/models"
)

//go:embed dimensions.yaml
var defaultDimensions []byte

// DimensionFile is the on-disk seed format.
type DimensionFile struct {
	Dimensions []DimensionSeed `yaml:"dimensions"`
}

type DimensionSeed struct {
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"`
	Weight    float64 `yaml:"weight,omitempty"` // Default: 1
	Order     int     `yaml:"order,omitempty"`
	Tag       string  `yaml:"tag,omitempty"`       // Default: General
	Direction string  `yaml:"direction,omitempty"` // benefit or cost
}

// ParseDimensions decodes a seed file into normalised dimensions.
func ParseDimensions(data []byte) ([]models.Dimension, error) {
	var f DimensionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse dimension seed: %w", err)
	}
	out := make([]models.Dimension, 0, len(f.Dimensions))
	seen := map[string]bool{}
	for i, s := range f.Dimensions {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("dimension %d: name is required", i+1)
		}
		if strings.TrimSpace(s.Type) == "" {
			return nil, fmt.Errorf("dimension %q: type is required", name)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("dimension %q is listed twice", name)
		}
		seen[key] = true
		out = append(out, models.NormalizeDimension(models.Dimension{
			Name:      name,
			Type:      models.ParseDimensionType(s.Type),
			Weight:    s.Weight,
			Order:     s.Order,
			Tag:       s.Tag,
			Direction: models.ParseDirection(s.Direction),
		}))
	}
	return out, nil
}

// LoadDimensions reads path, or the built-in defaults when path is empty.
func LoadDimensions(path string) ([]models.Dimension, error) {
	data := defaultDimensions
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read dimension seed: %w", err)
		}
	}
	return ParseDimensions(data)
}

type DimensionStore interface {
	ListDimensions(ctx context.Context) ([]models.Dimension, error)
	CreateDimension(ctx context.Context, d models.Dimension) (*models.Dimension, error)
}

// Apply creates every dimension whose name is not taken yet, matching names
// case-insensitively.
func Apply(ctx context.Context, store DimensionStore, dims []models.Dimension) (created, skipped int, err error) {
	existing, err := store.ListDimensions(ctx)
	if err != nil {
		return 0, 0, err
	}
	taken := make(map[string]bool, len(existing))
	for _, d := range existing {
		taken[strings.ToLower(d.Name)] = true
	}
	for _, d := range dims {
		if taken[strings.ToLower(d.Name)] {
			skipped++
			continue
		}
		if _, err := store.CreateDimension(ctx, d); err != nil {
			return created, skipped, fmt.Errorf("create dimension %q: %w", d.Name, err)
		}
		taken[strings.ToLower(d.Name)] = true
		created++
	}
	return created, skipped, nil
}
