package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/feedback-triage/internal/logger"
)

func TestInit_EmptyEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), logger.NewNop(), "test", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan_WithoutTracer(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, ctx)
	assert.Equal(t, "", TraceID(ctx))
}
