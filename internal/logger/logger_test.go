package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromContextRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewWithWriter(&buf)
	ctx := WithContext(context.Background(), l.With().Str("component", "ingest").Logger())

	// Level methods must be chainable directly on the result.
	FromContext(ctx).Info().Msg("hello")

	out := buf.String()
	require.Contains(t, out, `"component":"ingest"`)
	require.Contains(t, out, `"message":"hello"`)
}

func TestFromContextDefault(t *testing.T) {
	t.Parallel()

	log := FromContext(context.Background())
	require.NotNil(t, log)
	log.Debug().Msg("no context logger attached")
}
