package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaveSongnata/BitTask/internal/queue"
	"github.com/DaveSongnata/BitTask/internal/service"
	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

type testEnv struct {
	svc    *service.Services
	server *Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	q := queue.New(db)
	svc := service.New(db, q)
	server := NewServer(db, svc, q, Config{})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		_ = server.Stop()
		ts.Close()
	})
	return &testEnv{svc: svc, server: server, http: ts}
}

func (e *testEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) *Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, MessageTypeSnapshot, msg.Type, "message: %s", data)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	return &snap
}

// readUntil reads snapshots until one satisfies ok. Writes may coalesce,
// so intermediate states are not guaranteed.
func readUntil(t *testing.T, conn *websocket.Conn, ok func(*Snapshot) bool) *Snapshot {
	t.Helper()
	for i := 0; i < 20; i++ {
		if snap := readSnapshot(t, conn); ok(snap) {
			return snap
		}
	}
	t.Fatal("expected snapshot never arrived")
	return nil
}

func TestFeedStreamsBoardChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	boards, err := env.svc.Boards.ListBoards(ctx)
	require.NoError(t, err)
	inbox := boards[0].ID
	other, err := env.svc.Boards.CreateBoard(ctx, "Other")
	require.NoError(t, err)

	conn := env.dial(t, "?board="+strconv.FormatInt(inbox, 10))

	first := readSnapshot(t, conn)
	assert.Equal(t, inbox, first.BoardID)
	assert.Empty(t, first.Tasks)
	assert.Zero(t, first.Pending)

	_, err = env.svc.Tasks.CreateTask(ctx, service.CreateTaskInput{BoardID: other.ID, Title: "elsewhere"})
	require.NoError(t, err)
	task, err := env.svc.Tasks.CreateTask(ctx, service.CreateTaskInput{BoardID: inbox, Title: "here"})
	require.NoError(t, err)

	snap := readUntil(t, conn, func(s *Snapshot) bool { return len(s.Tasks) == 1 && s.Pending == 2 })
	assert.Equal(t, task.ID, snap.Tasks[0].ID)
	assert.Equal(t, "here", snap.Tasks[0].Title)

	require.Eventually(t, func() bool { return env.server.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestFeedRejectsBadBoard(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.http.URL + "/ws?board=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Tasks.CreateTask(context.Background(), service.CreateTaskInput{Title: "x"})
	require.NoError(t, err)

	resp, err := http.Get(env.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["pending"])
}

func TestBoardTasksEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task, err := env.svc.Tasks.CreateTask(ctx, service.CreateTaskInput{Title: "Pay rent"})
	require.NoError(t, err)
	_, err = env.svc.Tasks.CreateTask(ctx, service.CreateTaskInput{Title: "Walk dog"})
	require.NoError(t, err)

	resp, err := http.Get(env.http.URL + "/api/boards/" + strconv.FormatInt(task.BoardID, 10) + "/tasks?q=rent")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tasks []*types.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "Pay rent", tasks[0].Title)

	resp2, err := http.Get(env.http.URL + "/api/boards/999/tasks")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)

	resp3, err := http.Get(env.http.URL + "/api/boards")
	require.NoError(t, err)
	defer resp3.Body.Close()
	var boards []*types.Board
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&boards))
	assert.Len(t, boards, 1)
}
