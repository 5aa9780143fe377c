package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_Default(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}

func TestWith(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupWriter(&buf, "prod", false)

	ctx := With(context.Background(), "request_id", "r-1")
	ctx = With(ctx, "owner", "alice")
	FromContext(ctx).Info("turn processed", "conversation_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "turn processed", entry["msg"])
	assert.Equal(t, "r-1", entry["request_id"])
	assert.Equal(t, "alice", entry["owner"])
	assert.Equal(t, float64(7), entry["conversation_id"])
}

func TestSetupWriter_DebugLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := SetupWriter(&buf, "dev", false)
	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger = SetupWriter(&buf, "dev", true)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}
