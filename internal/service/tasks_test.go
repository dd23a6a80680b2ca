package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaveSongnata/BitTask/internal/types"
)

func TestCreateTask(t *testing.T) {
	env := newTestEnv(t)

	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{
		Title:    "  Buy milk ",
		Tags:     []string{"home", "errand", "home"},
		Priority: types.PriorityHigh,
	})
	require.NoError(t, err)
	require.NotNil(t, task)

	assert.Equal(t, "Buy milk", task.Title)
	assert.Equal(t, int64(1), task.SequentialID)
	assert.Equal(t, env.inbox(t), task.BoardID)
	assert.Equal(t, []string{"home", "errand"}, task.Tags)
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)

	ops, err := env.queue.ListPending(env.ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, types.OpCreate, ops[0].OpType)
	assert.Equal(t, types.EntityTask, ops[0].Entity)
	assert.Equal(t, task.ID, ops[0].EntityID)
	assert.False(t, ops[0].Synced)

	rec, ok := ops[0].Payload.(types.TaskRecord)
	require.True(t, ok, "payload is %T", ops[0].Payload)
	assert.Equal(t, task.Title, rec.Title)
	assert.Equal(t, task.SequentialID, rec.SequentialID)
}

func TestCreateTaskDefaultsPriority(t *testing.T) {
	env := newTestEnv(t)

	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, types.PriorityMedium, task.Priority)
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		in    CreateTaskInput
		field string
	}{
		{"blank title", CreateTaskInput{Title: "   "}, "title"},
		{"bad priority", CreateTaskInput{Title: "x", Priority: "urgent"}, "priority"},
		{"missing board", CreateTaskInput{Title: "x", BoardID: 999}, "boardId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := env.svc.Tasks.CreateTask(env.ctx, tt.in)
			assert.Nil(t, task)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	n, err := env.queue.CountPending(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "rejected input must not queue anything")
}

func TestSequentialIDsNeverReused(t *testing.T) {
	env := newTestEnv(t)

	var seqs []int64
	var last *types.Task
	for i := 0; i < 3; i++ {
		task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "t"})
		require.NoError(t, err)
		seqs = append(seqs, task.SequentialID)
		last = task
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)

	// Deleting the highest number must not free it.
	ok, err := env.svc.Tasks.DeleteTask(env.ctx, last.ID)
	require.NoError(t, err)
	require.True(t, ok)

	next, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.SequentialID)

	tasks, err := env.svc.Tasks.ListTasks(env.ctx, types.TaskFilter{})
	require.NoError(t, err)
	for _, task := range tasks {
		ok, err := env.svc.Tasks.DeleteTask(env.ctx, task.ID)
		require.NoError(t, err)
		require.True(t, ok)
	}

	again, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), again.SequentialID)
}

func TestCreateTaskConcurrentSequentialIDs(t *testing.T) {
	env := newTestEnv(t)
	const workers = 20

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs = map[int64]bool{}
	)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: fmt.Sprintf("task %d", i)})
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			seqs[task.SequentialID] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, seqs, workers, "every create gets its own number")
	for n := int64(1); n <= workers; n++ {
		assert.True(t, seqs[n], "number %d handed out", n)
	}

	tasks, err := env.svc.Tasks.ListTasks(env.ctx, types.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, workers)

	ops, err := env.queue.ListPending(env.ctx)
	require.NoError(t, err)
	require.Len(t, ops, workers)
	for _, op := range ops {
		assert.Equal(t, types.OpCreate, op.OpType)
		assert.Equal(t, types.EntityTask, op.Entity)
	}
}

func TestUpdateTask(t *testing.T) {
	env := newTestEnv(t)

	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "draft", Description: "old"})
	require.NoError(t, err)

	updated, err := env.svc.Tasks.UpdateTask(env.ctx, task.ID, types.TaskPatch{
		Title:    ptr("final"),
		Priority: ptr(types.PriorityLow),
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, "old", updated.Description)
	assert.Equal(t, types.PriorityLow, updated.Priority)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))

	ops, err := env.queue.ListPending(env.ctx)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	delta, ok := ops[1].Payload.(types.TaskDelta)
	require.True(t, ok, "payload is %T", ops[1].Payload)
	require.NotNil(t, delta.Title)
	assert.Equal(t, "final", *delta.Title)
	assert.Nil(t, delta.Description, "delta carries only the patched fields")
	assert.Nil(t, delta.BoardID)
}

func TestUpdateTaskMissing(t *testing.T) {
	env := newTestEnv(t)

	task, err := env.svc.Tasks.UpdateTask(env.ctx, 42, types.TaskPatch{Title: ptr("x")})
	require.NoError(t, err)
	assert.Nil(t, task)

	n, err := env.queue.CountPending(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateTaskEmptyPatchStillQueues(t *testing.T) {
	env := newTestEnv(t)

	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "x"})
	require.NoError(t, err)

	updated, err := env.svc.Tasks.UpdateTask(env.ctx, task.ID, types.TaskPatch{})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))

	n, err := env.queue.CountPending(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestToggleTaskComplete(t *testing.T) {
	env := newTestEnv(t)

	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "x"})
	require.NoError(t, err)

	toggled, err := env.svc.Tasks.ToggleTaskComplete(env.ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)

	toggled, err = env.svc.Tasks.ToggleTaskComplete(env.ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Completed)

	missing, err := env.svc.Tasks.ToggleTaskComplete(env.ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestToggleTaskCompleteConcurrent(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "x"})
	require.NoError(t, err)

	const toggles = 11
	var wg sync.WaitGroup
	errs := make(chan error, toggles)
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.Tasks.ToggleTaskComplete(env.ctx, task.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := env.svc.Tasks.GetTask(env.ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed, "an odd number of flips ends completed")

	ops, err := env.queue.ListPending(env.ctx)
	require.NoError(t, err)
	require.Len(t, ops, toggles+1)

	// Each queued delta must record the flip of the state before it.
	completed := false
	for _, op := range ops[1:] {
		assert.Equal(t, types.OpUpdate, op.OpType)
		delta, ok := op.Payload.(types.TaskDelta)
		require.True(t, ok)
		require.NotNil(t, delta.Completed)
		assert.Equal(t, !completed, *delta.Completed)
		completed = *delta.Completed
	}
}

func TestDeleteTaskCascades(t *testing.T) {
	env := newTestEnv(t)

	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "with children"})
	require.NoError(t, err)
	_, err = env.svc.Subtasks.CreateSubtask(env.ctx, task.ID, "step")
	require.NoError(t, err)
	att, err := env.svc.Attachments.CreateAttachment(env.ctx, CreateAttachmentInput{
		TaskID: task.ID, Filename: "a.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4"),
	})
	require.NoError(t, err)
	require.NotNil(t, att)

	ok, err := env.svc.Tasks.DeleteTask(env.ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := env.svc.Attachments.GetAttachment(env.ctx, att.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	subtasks, err := env.svc.Subtasks.ListSubtasks(env.ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, subtasks)

	ops, err := env.queue.ListPending(env.ctx)
	require.NoError(t, err)
	last := ops[len(ops)-1]
	assert.Equal(t, types.OpDelete, last.OpType)
	assert.Equal(t, types.EntityTask, last.Entity)
	assert.Nil(t, last.Payload)

	again, err := env.svc.Tasks.DeleteTask(env.ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestTagsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	tags := []string{"zeta", "alpha", "mid"}
	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "x", Tags: tags})
	require.NoError(t, err)

	got, err := env.svc.Tasks.GetTask(env.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, tags, got.Tags)
}

func TestListTasksFilters(t *testing.T) {
	env := newTestEnv(t)
	other, err := env.svc.Boards.CreateBoard(env.ctx, "Work")
	require.NoError(t, err)

	_, err = env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "Buy milk", Tags: []string{"Groceries"}})
	require.NoError(t, err)
	_, err = env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "Report", Description: "quarterly numbers", BoardID: other.ID, Priority: types.PriorityHigh})
	require.NoError(t, err)
	done, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "Call mom", Completed: true, Tags: []string{"family"}})
	require.NoError(t, err)

	titles := func(filter types.TaskFilter) []string {
		t.Helper()
		tasks, err := env.svc.Tasks.ListTasks(env.ctx, filter)
		require.NoError(t, err)
		out := []string{}
		for _, task := range tasks {
			out = append(out, task.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Buy milk", "Report", "Call mom"}, titles(types.TaskFilter{}))
	assert.Equal(t, []string{"Report"}, titles(types.TaskFilter{BoardID: &other.ID}))
	assert.Equal(t, []string{"Call mom"}, titles(types.TaskFilter{Completed: ptr(true)}))
	assert.Equal(t, []string{"Report"}, titles(types.TaskFilter{Priority: ptr(types.PriorityHigh)}))
	assert.Equal(t, []string{"Call mom"}, titles(types.TaskFilter{Tag: "family"}))

	// Search: citation forms are exact, anything else is a substring.
	assert.Equal(t, []string{"Call mom"}, titles(types.TaskFilter{Search: done.Citation()}))
	assert.Equal(t, []string{"Report"}, titles(types.TaskFilter{Search: "2"}))
	assert.Empty(t, titles(types.TaskFilter{Search: "#99"}))
	assert.Equal(t, []string{"Buy milk"}, titles(types.TaskFilter{Search: "grocer"}))
	assert.Equal(t, []string{"Report"}, titles(types.TaskFilter{Search: "QUARTERLY"}))
	assert.Equal(t, []string{"Buy milk", "Call mom"}, titles(types.TaskFilter{Search: "mi"}))

	bySeq, err := env.svc.Tasks.GetTaskBySequentialID(env.ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, bySeq)
	assert.Equal(t, done.ID, bySeq.ID)
}

// A create, two updates and a delete leave four entries in that order;
// once synced and cleaned up the queue is empty.
func TestQueueLifecycleScenario(t *testing.T) {
	env := newTestEnv(t)

	task, err := env.svc.Tasks.CreateTask(env.ctx, CreateTaskInput{Title: "t"})
	require.NoError(t, err)
	_, err = env.svc.Tasks.UpdateTask(env.ctx, task.ID, types.TaskPatch{Title: ptr("t2")})
	require.NoError(t, err)
	_, err = env.svc.Tasks.UpdateTask(env.ctx, task.ID, types.TaskPatch{Completed: ptr(true)})
	require.NoError(t, err)
	_, err = env.svc.Tasks.DeleteTask(env.ctx, task.ID)
	require.NoError(t, err)

	ops, err := env.queue.ListPending(env.ctx)
	require.NoError(t, err)
	require.Len(t, ops, 4)
	want := []types.OpType{types.OpCreate, types.OpUpdate, types.OpUpdate, types.OpDelete}
	for i, op := range ops {
		assert.Equal(t, want[i], op.OpType)
		assert.Equal(t, task.ID, op.EntityID)
		if i > 0 {
			assert.False(t, op.Timestamp.Before(ops[i-1].Timestamp))
		}
	}

	for _, op := range ops {
		require.NoError(t, env.queue.MarkSynced(env.ctx, op.ID))
	}
	n, err := env.queue.CountPending(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	removed, err := env.queue.CleanupSynced(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)

	all, err := env.queue.ListAll(env.ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
