package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Parallel()

	prod, err := New("production", "warn")
	require.NoError(t, err)
	require.False(t, prod.Core().Enabled(zap.InfoLevel))
	require.True(t, prod.Core().Enabled(zap.WarnLevel))

	dev, err := New("development", "")
	require.NoError(t, err)
	require.True(t, dev.Core().Enabled(zap.DebugLevel))

	fallback, err := New("production", "not-a-level")
	require.NoError(t, err)
	require.True(t, fallback.Core().Enabled(zap.InfoLevel))
}
