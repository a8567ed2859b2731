package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "sweep", "migrate-legacy", "delete-audit", "check-media"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestArgsValidation(t *testing.T) {
	require.Error(t, migrateLegacyCmd.Args(migrateLegacyCmd, nil))
	require.NoError(t, migrateLegacyCmd.Args(migrateLegacyCmd, []string{"snap.json"}))
	require.Error(t, deleteAuditCmd.Args(deleteAuditCmd, []string{"a", "b"}))
	require.Error(t, sweepCmd.Args(sweepCmd, []string{"extra"}))
}
