package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"FREDflow/internal/config"
)

func TestConnect_DryRunCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	a := &app{
		cfg:    &config.Config{DryRun: true},
		logger: zap.NewNop(),
		registry: &config.Registry{Destinations: []config.Destination{
			{Driver: "sqlite", Host: filepath.Join(dir, "fred.db"), Name: "local"},
		}},
	}
	a.connect(context.Background())
	defer a.close()

	require.Len(t, a.destinations, 1)
	assert.Equal(t, "local (dry run)", a.destinations[0].Name())

	_, err := os.Stat(filepath.Join(dir, "fred.db"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
