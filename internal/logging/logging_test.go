package logging

import (
	"bytes"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn")
	require.NoError(t, err)

	level.Debug(logger).Log("msg", "debug line")
	level.Info(logger).Log("msg", "info line")
	level.Warn(logger).Log("msg", "warn line")
	level.Error(logger).Log("msg", "error line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, `msg="warn line"`)
	assert.Contains(t, out, `msg="error line"`)
}

func TestNew_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug")
	require.NoError(t, err)

	level.Info(logger).Log("msg", "hello", "port", "zlib")

	out := buf.String()
	assert.Contains(t, out, "ts=")
	assert.Contains(t, out, "caller=logging_test.go:")
	assert.Contains(t, out, "level=info")
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "port=zlib")
}

func TestNew_UnknownLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "verbose")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "", "WARN", "warning", "error"} {
		_, err := ParseLevel(lvl)
		assert.NoError(t, err, "level %q", lvl)
	}
}
