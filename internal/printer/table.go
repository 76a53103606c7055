package printer

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/slok/fxtask/internal/model"
)

// TablePrinter prints effect task information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintTasks prints tasks in a table format.
func (t *TablePrinter) PrintTasks(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tEFFECT\tSTATUS\tPROGRESS\tRESULTS\tCREATED")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			task.ID,
			task.EffectID,
			task.Status,
			FormatProgress(task.Progress),
			len(task.Results),
			TimeAgo(task.CreatedAt),
		)
	}

	return nil
}

// PrintTask prints the detailed task information. Errors are only shown for
// failed tasks, cancelled ones are a regular status.
func (t *TablePrinter) PrintTask(task model.Task) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", task.ID)
	fmt.Fprintf(t.writer, "Effect:     %s\n", task.EffectID)
	fmt.Fprintf(t.writer, "Status:     %s\n", task.Status)
	fmt.Fprintf(t.writer, "Progress:   %s\n", FormatProgress(task.Progress))
	fmt.Fprintf(t.writer, "Polls:      %d\n", task.PollAttempts)
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(task.CreatedAt))
	fmt.Fprintf(t.writer, "Updated:    %s (%s elapsed)\n", FormatTimestamp(task.UpdatedAt), FormatElapsed(task.CreatedAt, task.UpdatedAt))

	if task.LastPolledAt != nil {
		fmt.Fprintf(t.writer, "Last poll:  %s\n", FormatTimestamp(*task.LastPolledAt))
	}

	if task.Status == model.TaskStatusFailed {
		code := string(task.ErrorCode)
		if code == "" {
			code = "unknown"
		}
		fmt.Fprintf(t.writer, "Error:      %s (%s)\n", task.Error, code)
	}

	for i, r := range task.Results {
		fmt.Fprintf(t.writer, "Result %d:   %s\n", i+1, r)
	}

	return nil
}

// PrintResults prints one result reference per line, in order.
func (t *TablePrinter) PrintResults(taskID string, results []string) error {
	for _, r := range results {
		fmt.Fprintln(t.writer, r)
	}
	return nil
}

// PrintState prints the aggregated state of the active tasks.
func (t *TablePrinter) PrintState(state model.AggregateState) error {
	processing := "no"
	if state.IsProcessing {
		processing = "yes"
	}
	fmt.Fprintf(t.writer, "Processing: %s\n", processing)
	fmt.Fprintf(t.writer, "Progress:   %s\n", FormatProgress(state.Progress))

	if state.Latest != nil {
		fmt.Fprintf(t.writer, "Latest:     %s (%s)\n", state.Latest.ID, state.Latest.Status)
	}

	if len(state.TaskProgress) == 0 {
		return nil
	}

	ids := make([]string, 0, len(state.TaskProgress))
	for id := range state.TaskProgress {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tPROGRESS")
	for _, id := range ids {
		fmt.Fprintf(tw, "%s\t%s\n", id, FormatProgress(state.TaskProgress[id]))
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
