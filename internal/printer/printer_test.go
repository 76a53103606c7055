package printer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/fxtask/internal/model"
	"github.com/slok/fxtask/internal/printer"
)

func taskFixture(status model.TaskStatus) model.Task {
	createdAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	polled := createdAt.Add(30 * time.Second)
	return model.Task{
		ID:           "01JTASK0000000000000000000",
		EffectID:     "cartoonify",
		Status:       status,
		Progress:     45,
		PollAttempts: 3,
		CreatedAt:    createdAt,
		UpdatedAt:    polled,
		LastPolledAt: &polled,
	}
}

func TestTablePrinterPrintTask(t *testing.T) {
	tests := map[string]struct {
		task      func() model.Task
		expOut    []string
		expNotOut []string
	}{
		"A running task should print its progress and timestamps.": {
			task: func() model.Task { return taskFixture(model.TaskStatusRunning) },
			expOut: []string{
				"ID:         01JTASK0000000000000000000",
				"Effect:     cartoonify",
				"Status:     running",
				"Progress:   45%",
				"Polls:      3",
				"Updated:    2026-01-30 10:00:30 UTC (30s elapsed)",
				"Last poll:  2026-01-30 10:00:30 UTC",
			},
			expNotOut: []string{"Error:"},
		},

		"A succeeded task should print its results in order.": {
			task: func() model.Task {
				t := taskFixture(model.TaskStatusSucceeded)
				t.Progress = 100
				t.Results = []string{"https://r/b.png", "https://r/a.png"}
				return t
			},
			expOut: []string{
				"Progress:   100%",
				"Result 1:   https://r/b.png\nResult 2:   https://r/a.png",
			},
		},

		"A failed task should print the error and its code.": {
			task: func() model.Task {
				t := taskFixture(model.TaskStatusFailed)
				t.Error = "no terminal status after 60 poll attempts"
				t.ErrorCode = model.TaskErrorCodeTimeout
				return t
			},
			expOut: []string{"Error:      no terminal status after 60 poll attempts (timeout)"},
		},

		"A cancelled task should not print an error.": {
			task: func() model.Task {
				t := taskFixture(model.TaskStatusCancelled)
				t.Error = "stale"
				return t
			},
			expOut:    []string{"Status:     cancelled"},
			expNotOut: []string{"Error:"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			p := printer.NewTablePrinter(&buf)

			require.NoError(t, p.PrintTask(test.task()))

			out := buf.String()
			for _, exp := range test.expOut {
				assert.Contains(t, out, exp)
			}
			for _, exp := range test.expNotOut {
				assert.NotContains(t, out, exp)
			}
		})
	}
}

func TestTablePrinterPrintTasks(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	done := taskFixture(model.TaskStatusSucceeded)
	done.ID = "task-2"
	done.Results = []string{"https://r/1.png"}
	require.NoError(t, p.PrintTasks([]model.Task{taskFixture(model.TaskStatusRunning), done}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "EFFECT", "STATUS", "PROGRESS", "RESULTS", "CREATED"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"01JTASK0000000000000000000", "cartoonify", "running", "45%", "0"}, strings.Fields(lines[1])[:5])
	assert.Equal(t, []string{"task-2", "cartoonify", "succeeded", "45%", "1"}, strings.Fields(lines[2])[:5])

	buf.Reset()
	require.NoError(t, p.PrintTasks(nil))
	assert.Empty(t, buf.String())
}

func TestTablePrinterPrintState(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	latest := taskFixture(model.TaskStatusRunning)
	err := p.PrintState(model.AggregateState{
		IsProcessing: true,
		Progress:     50,
		TaskProgress: map[string]float64{"task-b": 45, "task-a": 55},
		Latest:       &latest,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Processing: yes")
	assert.Contains(t, out, "Progress:   50%")
	assert.Contains(t, out, "Latest:     01JTASK0000000000000000000 (running)")
	assert.Less(t, strings.Index(out, "task-a"), strings.Index(out, "task-b"))
}

func TestTablePrinterPrintResultsAndMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintResults("task-1", []string{"https://r/1.png", "https://r/2.png"}))
	assert.Equal(t, "https://r/1.png\nhttps://r/2.png\n", buf.String())

	buf.Reset()
	require.NoError(t, p.PrintMessage("ok"))
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}

func TestJSONPrinterPrintTask(t *testing.T) {
	tests := map[string]struct {
		task   model.Task
		expErr string
		expRes []any
	}{
		"A failed task should include the error.": {
			task: func() model.Task {
				t := taskFixture(model.TaskStatusFailed)
				t.Error = "boom"
				t.ErrorCode = model.TaskErrorCodeBackendFailed
				return t
			}(),
			expErr: "boom",
			expRes: []any{},
		},
		"A succeeded task should include the results.": {
			task: func() model.Task {
				t := taskFixture(model.TaskStatusSucceeded)
				t.Results = []string{"https://r/1.png"}
				return t
			}(),
			expRes: []any{"https://r/1.png"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			p := printer.NewJSONPrinter(&buf)
			require.NoError(t, p.PrintTask(test.task))

			var got map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
			assert.Equal(t, "cartoonify", got["effect_id"])
			assert.Equal(t, string(test.task.Status), got["status"])
			assert.Equal(t, test.expRes, got["results"])
			if test.expErr != "" {
				assert.Equal(t, test.expErr, got["error"])
			} else {
				assert.NotContains(t, got, "error")
			}
		})
	}
}

func TestJSONPrinterPrintState(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintState(model.AggregateState{}))

	out := buf.String()
	assert.Contains(t, out, `"is_processing": false`)
	assert.Contains(t, out, `"task_progress": {}`)
	assert.Contains(t, out, `"latest": null`)
}
