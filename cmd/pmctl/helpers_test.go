package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahmed20kamel/project-management-api/internal/config"
	"github.com/ahmed20kamel/project-management-api/internal/logging"
)

func mustConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func quietLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewTestLogger().Logger
}
