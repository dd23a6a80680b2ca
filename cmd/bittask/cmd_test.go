package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaveSongnata/BitTask/internal/types"
)

func parsedCmd(t *testing.T, register func(*cobra.Command), args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	register(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestTaskFilterFromFlags(t *testing.T) {
	cmd := parsedCmd(t, addTaskListFlags, "--board", "2", "--open", "--priority", "HIGH", "--tag", "ops", "-s", "#4")

	filter, err := taskFilterFromFlags(cmd)
	require.NoError(t, err)
	require.NotNil(t, filter.BoardID)
	assert.Equal(t, int64(2), *filter.BoardID)
	require.NotNil(t, filter.Completed)
	assert.False(t, *filter.Completed)
	require.NotNil(t, filter.Priority)
	assert.Equal(t, types.PriorityHigh, *filter.Priority)
	assert.Equal(t, "ops", filter.Tag)
	assert.Equal(t, "#4", filter.Search)
}

func TestTaskFilterFromFlagsEmpty(t *testing.T) {
	filter, err := taskFilterFromFlags(parsedCmd(t, addTaskListFlags))
	require.NoError(t, err)
	assert.Equal(t, types.TaskFilter{}, filter)
}

func TestTaskFilterRejectsConflicts(t *testing.T) {
	_, err := taskFilterFromFlags(parsedCmd(t, addTaskListFlags, "--open", "--done"))
	assert.Error(t, err)

	_, err = taskFilterFromFlags(parsedCmd(t, addTaskListFlags, "--priority", "urgent"))
	assert.Error(t, err)
}

func TestTaskPatchOnlyChangedFlags(t *testing.T) {
	cmd := parsedCmd(t, addTaskUpdateFlags, "--title", "Ship", "--description", "", "--tags", "a,b")

	patch, err := taskPatchFromFlags(cmd)
	require.NoError(t, err)
	require.NotNil(t, patch.Title)
	assert.Equal(t, "Ship", *patch.Title)
	require.NotNil(t, patch.Description, "an explicit empty description clears it")
	assert.Equal(t, "", *patch.Description)
	require.NotNil(t, patch.Tags)
	assert.Equal(t, []string{"a", "b"}, *patch.Tags)
	assert.Nil(t, patch.Priority)
	assert.Nil(t, patch.BoardID)
	assert.Nil(t, patch.Completed)
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs("board", []string{"3", " 1", "2"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	for _, bad := range []string{"0", "-1", "x", "#2"} {
		_, err := parseID("board", bad)
		assert.Error(t, err, bad)
	}
}

func TestGuessMIME(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.Equal(t, "image/png", guessMIME("shot.unknownext", png))
	assert.Equal(t, "application/pdf", guessMIME("doc.unknownext", []byte("%PDF-1.7\n")))
}
