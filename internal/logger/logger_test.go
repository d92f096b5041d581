package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	log, err := New("production", "")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.DebugLevel))
	assert.True(t, log.Core().Enabled(zap.InfoLevel))

	log, err = New("development", "")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))

	log, err = New("production", "WARN")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.InfoLevel))

	log, err = New("production", "loud")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
}
