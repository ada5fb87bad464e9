package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/dmitrymomot/searchstore/core/logger"
)

// taskIndex is the engine's internal task-tracking index.
const taskIndex = ".tasks"

// taskPollTimeout bounds each wait-for-completion poll so the transport
// never idles long enough to drop the connection while a task runs.
const taskPollTimeout = 5 * time.Second

// TaskCleanup deletes completed entries from the internal task-tracking
// index whose start time is older than age, at most maxTasks of them when
// maxTasks > 0. The delete runs asynchronously server-side and tolerates
// concurrent writes to the index; TaskCleanup waits for it to finish and
// returns the number of deleted entries.
func (s *Store) TaskCleanup(ctx context.Context, age time.Duration, maxTasks int) (int64, error) {
	threshold := time.Now().Add(-age).UnixMilli()
	query := fmt.Sprintf("completed:true AND task.start_time_in_millis:<%d", threshold)

	res, err := s.Execute(ctx, Operation{
		Name:  "delete_by_query",
		Index: taskIndex,
		Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
			req := opensearchapi.DeleteByQueryRequest{
				Index:             []string{taskIndex},
				Query:             query,
				Conflicts:         "proceed",
				WaitForCompletion: opensearchapi.BoolPtr(false),
			}
			if maxTasks > 0 {
				req.MaxDocs = opensearchapi.IntPtr(maxTasks)
			}
			return req.Do(ctx, client)
		},
	})
	if err != nil {
		return 0, err
	}

	var submitted struct {
		Task string `json:"task"`
	}
	if err := res.Decode(&submitted); err != nil || submitted.Task == "" {
		return 0, fmt.Errorf("%w: missing task id in delete response", ErrUnexpectedResponse)
	}

	payload, err := s.waitForTask(ctx, submitted.Task)
	if err != nil {
		return 0, err
	}

	var counts struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.Unmarshal(payload, &counts); err != nil {
		return 0, errors.Join(ErrUnexpectedResponse, err)
	}

	s.log.InfoContext(ctx, "task cleanup finished",
		logger.Count("deleted", counts.Deleted),
		logger.Task(submitted.Task),
	)
	return counts.Deleted, nil
}

// waitForTask polls a server-side task until it completes. Each poll blocks
// server-side for at most taskPollTimeout; the engine answering 500
// "timeout_exception" just means the task is still running, so the poll is
// reissued. Any other failure aborts the wait.
//
// The returned payload is the task's response object when present, otherwise
// its status sub-object. Callers must handle both shapes: which one the
// engine reports depends on how the task was started.
func (s *Store) waitForTask(ctx context.Context, taskID string) (json.RawMessage, error) {
	for {
		res, err := s.Execute(ctx, Operation{
			Name: "tasks.get",
			Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
				return opensearchapi.TasksGetRequest{
					TaskID:            taskID,
					WaitForCompletion: opensearchapi.BoolPtr(true),
					Timeout:           taskPollTimeout,
				}.Do(ctx, client)
			},
		})
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusInternalServerError && apiErr.Type == "timeout_exception" {
				continue
			}
			return nil, err
		}

		var task struct {
			Response json.RawMessage `json:"response"`
			Task     struct {
				Status json.RawMessage `json:"status"`
			} `json:"task"`
		}
		if err := res.Decode(&task); err != nil {
			return nil, errors.Join(ErrUnexpectedResponse, err)
		}
		if len(task.Response) > 0 {
			return task.Response, nil
		}
		return task.Task.Status, nil
	}
}
