package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhn-coaching/coachsync/internal/config"
)

func TestSinkWritesToConsoleAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "coachsync.log")
	var console bytes.Buffer

	sink, err := NewSink(config.LogConfig{File: path, MaxSizeMB: 1}, &console)
	require.NoError(t, err)

	sink.Logger("queue").Printf("Processing row %d", 2)
	require.NoError(t, sink.Close())

	assert.Contains(t, console.String(), "[queue] ")
	assert.Contains(t, console.String(), "Processing row 2")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[queue] ")
}

func TestDiscardSink(t *testing.T) {
	sink := Discard()
	sink.Logger("x").Printf("dropped")
	assert.NoError(t, sink.Close())

	var nilSink *Sink
	assert.NotNil(t, nilSink.Logger("x"))
}
