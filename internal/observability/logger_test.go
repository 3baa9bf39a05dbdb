package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := NewLogger(LogConfig{
		Level:       "debug",
		Format:      "json",
		Output:      buf,
		ServiceName: "test-service",
	})
	return logger, buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_JSONOutput(t *testing.T) {
	logger, buf := newBufLogger(t)

	logger.Info().
		Str("component", "assistant").
		Int("articles_used", 3).
		Bool("insight_generated", true).
		Msg("Request completed")

	entry := lastLine(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "test-service", entry["service"])
	assert.Equal(t, "assistant", entry["component"])
	assert.Equal(t, float64(3), entry["articles_used"])
	assert.Equal(t, true, entry["insight_generated"])
	assert.Equal(t, "Request completed", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestLogger_WithTenantAndConversation(t *testing.T) {
	logger, buf := newBufLogger(t)

	logger.WithTenant("tenant-1").WithConversation("conv-9").Info().Msg("ok")

	entry := lastLine(t, buf)
	assert.Equal(t, "tenant-1", entry["customer_id"])
	assert.Equal(t, "conv-9", entry["conversation_id"])
}

func TestLogger_WithContext(t *testing.T) {
	logger, buf := newBufLogger(t)

	ctx := ContextWithRequestID(context.Background(), "req-42")
	logger.WithContext(ctx).Info().Msg("ok")

	entry := lastLine(t, buf)
	assert.Equal(t, "req-42", entry["request_id"])
}

func TestLogger_WithContext_NoRequestID(t *testing.T) {
	logger, buf := newBufLogger(t)

	logger.WithContext(context.Background()).Info().Msg("ok")

	entry := lastLine(t, buf)
	assert.NotContains(t, entry, "request_id")
}

func TestRequestIDRoundTrip(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))

	ctx := ContextWithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
}

func TestNop_DiscardsEverything(t *testing.T) {
	logger := Nop()
	logger.Error().Str("k", "v").Msg("should vanish")
	logger.WithTenant("t").Warn().Msg("ditto")
}
