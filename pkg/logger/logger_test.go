package logger

import (
	"encoding/json"
	"os"
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
		" warn ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	log, err := New("warn")
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestBuildWritesServiceAndScope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	log, err := Build(Options{Level: "info", Outputs: []string{path}})
	require.NoError(t, err)

	log.WithConversation("c1").WithRequest("corr-1", "").Info("mediated")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, ServiceName, entry["service"])
	assert.Equal(t, "c1", entry["conversation_id"])
	assert.Equal(t, "corr-1", entry["correlation_id"])
	assert.NotContains(t, entry, "user_id")
	assert.Equal(t, "mediated", entry["msg"])
}

func TestGlobal(t *testing.T) {
	prev := global.Load()
	t.Cleanup(func() { global.Store(prev) })

	global.Store(nil)
	assert.NotNil(t, Global())

	nop := NewNop()
	SetGlobal(nop)
	assert.Same(t, nop, Global())
}
