package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/feedback-triage/internal/models"
)

type fakeStore struct {
	dims []models.Dimension
}

func (f *fakeStore) ListDimensions(context.Context) ([]models.Dimension, error) {
	return f.dims, nil
}

func (f *fakeStore) CreateDimension(_ context.Context, d models.Dimension) (*models.Dimension, error) {
	d.ID = uuid.New()
	f.dims = append(f.dims, d)
	return &d, nil
}

func TestLoadDimensions_Defaults(t *testing.T) {
	dims, err := LoadDimensions("")
	require.NoError(t, err)
	require.NotEmpty(t, dims)

	var effort models.Dimension
	for _, d := range dims {
		if d.Name == "Engineering effort" {
			effort = d
		}
	}
	assert.Equal(t, models.DimensionScale, effort.Type)
	assert.Equal(t, models.DirectionCost, effort.Direction)
	assert.Equal(t, "Cost", effort.Tag)
}

func TestParseDimensions_Normalises(t *testing.T) {
	dims, err := ParseDimensions([]byte(`
dimensions:
  - name: "  Reach "
    type: bogus
    weight: -2
    direction: sideways
`))
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.Equal(t, "Reach", dims[0].Name)
	assert.Equal(t, models.DimensionYesNo, dims[0].Type)
	assert.Equal(t, 1.0, dims[0].Weight)
	assert.Equal(t, models.DirectionBenefit, dims[0].Direction)
	assert.Equal(t, models.DefaultDimensionTag, dims[0].Tag)
}

func TestParseDimensions_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing name": "dimensions:\n  - type: scale\n",
		"missing type": "dimensions:\n  - name: Reach\n",
		"duplicate":    "dimensions:\n  - {name: Reach, type: scale}\n  - {name: reach, type: yesno}\n",
		"bad yaml":     "dimensions: [",
	}
	for name, doc := range cases {
		_, err := ParseDimensions([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadDimensions_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dims.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dimensions:\n  - {name: Reach, type: scale, weight: 2}\n"), 0o600))
	dims, err := LoadDimensions(path)
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.Equal(t, 2.0, dims[0].Weight)

	_, err = LoadDimensions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApply_SkipsExistingNames(t *testing.T) {
	store := &fakeStore{dims: []models.Dimension{{ID: uuid.New(), Name: "customer IMPACT"}}}
	dims, err := LoadDimensions("")
	require.NoError(t, err)

	created, skipped, err := Apply(context.Background(), store, dims)
	require.NoError(t, err)
	assert.Equal(t, len(dims)-1, created)
	assert.Equal(t, 1, skipped)

	created, skipped, err = Apply(context.Background(), store, dims)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Equal(t, len(dims), skipped)
}
