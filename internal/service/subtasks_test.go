package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaveSongnata/BitTask/internal/types"
)

func subtaskTitles(t *testing.T, env *testEnv, taskID int64) []string {
	t.Helper()
	list, err := env.svc.Subtasks.ListSubtasks(env.ctx, taskID)
	require.NoError(t, err)
	out := []string{}
	for i, st := range list {
		assert.Equal(t, i, st.Order, "orders stay packed")
		out = append(out, st.Title)
	}
	return out
}

func TestSubtaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "parent"})
	require.NoError(t, err)

	var ids []int64
	for _, title := range []string{"one", "two", "three"} {
		st, err := env.svc.Subtasks.CreateSubtask(env.ctx, task.ID, title)
		require.NoError(t, err)
		ids = append(ids, st.ID)
	}
	assert.Equal(t, []string{"one", "two", "three"}, subtaskTitles(t, env, task.ID))

	toggled, err := env.svc.Subtasks.ToggleSubtask(env.ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, toggled.Completed)

	renamed, err := env.svc.Subtasks.UpdateSubtask(env.ctx, ids[2], types.SubtaskPatch{Title: ptr("THREE")})
	require.NoError(t, err)
	assert.Equal(t, "THREE", renamed.Title)

	ok, err := env.svc.Subtasks.DeleteSubtask(env.ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"two", "THREE"}, subtaskTitles(t, env, task.ID))

	n, err := env.queue.CountPending(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "subtask changes are not queued")
}

func TestToggleSubtaskConcurrent(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "parent"})
	require.NoError(t, err)
	st, err := env.svc.Subtasks.CreateSubtask(env.ctx, task.ID, "child")
	require.NoError(t, err)

	const toggles = 10
	var wg sync.WaitGroup
	errs := make(chan error, toggles)
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.Subtasks.ToggleSubtask(env.ctx, st.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := env.svc.Subtasks.ListSubtasks(env.ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Completed, "an even number of flips ends open")
}

func TestCreateSubtaskMissingTask(t *testing.T) {
	env := newTestEnv(t)

	st, err := env.svc.Subtasks.CreateSubtask(env.ctx, 999, "orphan")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestReorderSubtasks(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "parent"})
	require.NoError(t, err)
	other, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "other"})
	require.NoError(t, err)

	a, err := env.svc.Subtasks.CreateSubtask(env.ctx, task.ID, "a")
	require.NoError(t, err)
	b, err := env.svc.Subtasks.CreateSubtask(env.ctx, task.ID, "b")
	require.NoError(t, err)
	c, err := env.svc.Subtasks.CreateSubtask(env.ctx, task.ID, "c")
	require.NoError(t, err)
	foreign, err := env.svc.Subtasks.CreateSubtask(env.ctx, other.ID, "x")
	require.NoError(t, err)

	require.NoError(t, env.svc.Subtasks.ReorderSubtasks(env.ctx, task.ID, []int64{c.ID, a.ID, b.ID}))
	assert.Equal(t, []string{"c", "a", "b"}, subtaskTitles(t, env, task.ID))

	var verr *ValidationError
	err = env.svc.Subtasks.ReorderSubtasks(env.ctx, task.ID, []int64{a.ID, b.ID})
	assert.True(t, errors.As(err, &verr), "incomplete list")

	err = env.svc.Subtasks.ReorderSubtasks(env.ctx, task.ID, []int64{a.ID, b.ID, foreign.ID})
	assert.True(t, errors.As(err, &verr), "foreign subtask")

	err = env.svc.Subtasks.ReorderSubtasks(env.ctx, task.ID, []int64{a.ID, a.ID, b.ID})
	assert.True(t, errors.As(err, &verr), "duplicate id")

	assert.Equal(t, []string{"c", "a", "b"}, subtaskTitles(t, env, task.ID))
}
