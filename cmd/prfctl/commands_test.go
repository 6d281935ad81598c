package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "reconcile", "dedupe-budgets", "sync-utilization"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestDedupeCommand_Flags(t *testing.T) {
	root := newRootCommand()
	cmd, _, err := root.Find([]string{"dedupe-budgets"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--merge", "--dry-run", "--year", "2025"}))

	merge, _ := cmd.Flags().GetBool("merge")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	year, _ := cmd.Flags().GetInt("year")
	assert.True(t, merge)
	assert.True(t, dryRun)
	assert.Equal(t, 2025, year)
}

func TestYearFlag_DefaultsToCurrentYear(t *testing.T) {
	root := newRootCommand()
	cmd, _, err := root.Find([]string{"reconcile"})
	require.NoError(t, err)
	year, err := cmd.Flags().GetInt("year")
	require.NoError(t, err)
	assert.Equal(t, time.Now().Year(), year)
}

func TestRootCommand_RejectsArgs(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"migrate", "extra"})
	assert.Error(t, root.Execute())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"updated": 2}))
	assert.Equal(t, "{\n  \"updated\": 2\n}\n", buf.String())
}
