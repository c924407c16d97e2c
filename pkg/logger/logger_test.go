package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With("connection_id", "c1")

	log.Info("Joined project", "project_id", "p1")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Joined project", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "c1", fields["connection_id"])
	assert.Equal(t, "p1", fields["project_id"])
}
