package datastore

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskCleanup(t *testing.T) {
	t.Parallel()

	t.Run("deletes old completed tasks and reports the count", func(t *testing.T) {
		t.Parallel()

		transport := &stubTransport{}
		store := newTestStore(t, transport)
		rec := &sleepRecorder{}
		store.sleep = rec.sleep

		transport.enqueue(
			respond(http.StatusOK, `{"task":"node-1:42"}`),
			// First poll answers before the task is done.
			respond(http.StatusInternalServerError, `{"error":{"type":"timeout_exception","reason":"Timed out waiting for completion"}}`),
			respond(http.StatusOK, `{"completed":true,"response":{"deleted":3,"total":3,"version_conflicts":0}}`),
		)

		deleted, err := store.TaskCleanup(context.Background(), 24*time.Hour, 500)
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)

		reqs := transport.requests()
		require.Len(t, reqs, 4) // version probe, delete, two polls

		del := reqs[1]
		assert.Equal(t, "/.tasks/_delete_by_query", del.path)
		assert.True(t, strings.HasPrefix(del.query.Get("q"), "completed:true AND task.start_time_in_millis:<"),
			"query %q", del.query.Get("q"))
		assert.Equal(t, "proceed", del.query.Get("conflicts"))
		assert.Equal(t, "false", del.query.Get("wait_for_completion"))
		assert.Equal(t, "500", del.query.Get("max_docs"))

		poll := reqs[2]
		assert.Equal(t, "/_tasks/node-1:42", poll.path)
		assert.Equal(t, "true", poll.query.Get("wait_for_completion"))
		assert.NotEmpty(t, poll.query.Get("timeout"))
	})

	t.Run("unbounded cleanup omits the document cap", func(t *testing.T) {
		t.Parallel()

		transport := &stubTransport{}
		store := newTestStore(t, transport)

		transport.enqueue(
			respond(http.StatusOK, `{"task":"node-1:7"}`),
			respond(http.StatusOK, `{"completed":true,"response":{"deleted":0}}`),
		)

		deleted, err := store.TaskCleanup(context.Background(), time.Hour, 0)
		require.NoError(t, err)
		assert.Zero(t, deleted)

		del := transport.requests()[1]
		assert.False(t, del.query.Has("max_docs"))
	})

	t.Run("falls back to the task status shape", func(t *testing.T) {
		t.Parallel()

		transport := &stubTransport{}
		store := newTestStore(t, transport)

		transport.enqueue(
			respond(http.StatusOK, `{"task":"node-1:9"}`),
			respond(http.StatusOK, `{"completed":true,"task":{"status":{"deleted":2,"total":2}}}`),
		)

		deleted, err := store.TaskCleanup(context.Background(), time.Hour, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
	})

	t.Run("missing task id fails", func(t *testing.T) {
		t.Parallel()

		transport := &stubTransport{}
		store := newTestStore(t, transport)

		transport.enqueue(respond(http.StatusOK, `{"deleted":0}`))

		_, err := store.TaskCleanup(context.Background(), time.Hour, 10)
		assert.ErrorIs(t, err, ErrUnexpectedResponse)
	})

	t.Run("poll failures other than poll timeouts abort", func(t *testing.T) {
		t.Parallel()

		transport := &stubTransport{}
		store := newTestStore(t, transport)

		transport.enqueue(
			respond(http.StatusOK, `{"task":"node-1:11"}`),
			respond(http.StatusBadRequest, `{"error":{"type":"illegal_argument_exception","reason":"malformed task id"}}`),
		)

		_, err := store.TaskCleanup(context.Background(), time.Hour, 10)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "illegal_argument_exception", apiErr.Type)
	})
}
