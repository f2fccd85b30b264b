package trace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "abcd1234")
	assert.Equal(t, "abcd1234", TraceID(ctx))
	assert.Equal(t, "", TraceID(context.Background()))
}

func TestNewTraceID(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}

func TestSetup(t *testing.T) {
	require.NoError(t, Setup("debug", filepath.Join(t.TempDir(), "radar.log")))
	require.Error(t, Setup("loud", ""))
	require.NoError(t, Setup("", ""))
	Log(context.Background(), "hello %d", 1)
}
