package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "spoticord", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.False(t, cfg.Profiling.Enabled)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestInitRejectsBadProfileType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiling.Enabled = true
	cfg.Profiling.ProfileTypes = []string{"cpu", "heat"}

	_, err := Init(context.Background(), cfg)
	assert.ErrorContains(t, err, "heat")
}

func TestSpansWithoutInit(t *testing.T) {
	ctx, span := StartSpan(context.Background(), SpanStartup, Policy("joint"), Shards(2))
	require.NotNil(t, span)

	require.NotPanics(t, func() {
		RecordError(ctx, nil)
		RecordError(ctx, errors.New("boom"))
		AddEvent(ctx, "responder.bound", Address("127.0.0.1:10000"))
	})
	span.End()

	assert.Empty(t, TraceID(ctx))
}

func TestParseProfileTypes(t *testing.T) {
	got, err := ParseProfileTypes([]string{"CPU", " goroutines "})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileGoroutines}, got)

	_, err = ParseProfileTypes([]string{"nope"})
	assert.Error(t, err)
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, AttrPolicy, string(Policy("detached").Key))
	assert.Equal(t, "store", Stage("store").Value.AsString())
	assert.Equal(t, AttrDuty, string(Duty("primary").Key))
	assert.Equal(t, "raw", Variant("raw").Value.AsString())
	assert.Equal(t, "sqlite", Database("sqlite").Value.AsString())
	assert.Equal(t, int64(3), Shards(3).Value.AsInt64())
}
