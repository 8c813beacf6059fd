package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewSugaredLogger(t *testing.T) {
	t.Run("verbose enables debug", func(t *testing.T) {
		sugar, err := NewSugaredLogger(true)
		require.NoError(t, err)
		assert.True(t, sugar.Desugar().Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("default hides debug", func(t *testing.T) {
		sugar, err := NewSugaredLogger(false)
		require.NoError(t, err)
		assert.False(t, sugar.Desugar().Core().Enabled(zapcore.DebugLevel))
		assert.True(t, sugar.Desugar().Core().Enabled(zapcore.InfoLevel))
	})
}
