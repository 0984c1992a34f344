package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var out map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &out))
	return out
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf).Component("engine")

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, ActorIDKey, "client-1")
	log.WithContext(ctx).StoreError("save", errors.New("connection refused"))

	line := lastLine(t, &buf)
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "store_error", line["msg"])
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "client-1", line["actor_id"])
	assert.Equal(t, "save", line["operation"])
}

func TestTransitionIsDebugOnly(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("production", &buf).Transition("n-1", "ACCEPT", "COUNTERED", "ACCEPTED", 3)
	assert.Zero(t, buf.Len())

	NewWithWriter("development", &buf).Transition("n-1", "ACCEPT", "COUNTERED", "ACCEPTED", 3)
	assert.Contains(t, buf.String(), "negotiation_transition")
	assert.Contains(t, buf.String(), "to=ACCEPTED")
}

func TestWithContextWithoutValues(t *testing.T) {
	log := Discard()
	assert.Same(t, log, log.WithContext(context.Background()))
}
