package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	require.NoError(t, Init(Options{File: path}))
	Info("scrape started")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scrape started")
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestGet_DefaultsWhenUninitialized(t *testing.T) {
	log = nil
	assert.NotNil(t, Get())
}
