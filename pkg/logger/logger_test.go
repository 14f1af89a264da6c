package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewWithOptionsFileSink(t *testing.T) {
	file := filepath.Join(t.TempDir(), "faqbot.log")

	log, err := NewWithOptions(Options{Level: "debug", File: file})
	require.NoError(t, err)

	log.Info("hello")
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.FileExists(t, file)
}

func TestWithContextReturnsChild(t *testing.T) {
	log := NewNop()
	child := log.WithContext("corr-1", "sess-1")
	assert.NotSame(t, log, child)
}
