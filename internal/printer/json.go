package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/fxtask/internal/model"
)

// JSONPrinter prints effect task information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// listItem represents a task in the list output (subset of fields).
type listItem struct {
	ID        string    `json:"id"`
	EffectID  string    `json:"effect_id"`
	Status    string    `json:"status"`
	Progress  float64   `json:"progress"`
	Results   int       `json:"results"`
	CreatedAt time.Time `json:"created_at"`
}

type taskOutput struct {
	ID           string     `json:"id"`
	EffectID     string     `json:"effect_id"`
	Status       string     `json:"status"`
	Progress     float64    `json:"progress"`
	Error        string     `json:"error,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	Results      []string   `json:"results"`
	PollAttempts int        `json:"poll_attempts"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastPolledAt *time.Time `json:"last_polled_at"`
}

type resultsOutput struct {
	TaskID  string   `json:"task_id"`
	Results []string `json:"results"`
}

type stateOutput struct {
	IsProcessing bool               `json:"is_processing"`
	Progress     float64            `json:"progress"`
	TaskProgress map[string]float64 `json:"task_progress"`
	Latest       *taskOutput        `json:"latest"`
	IsCancelled  bool               `json:"is_cancelled"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintTasks prints tasks in JSON format with a subset of fields.
func (j *JSONPrinter) PrintTasks(tasks []model.Task) error {
	items := make([]listItem, len(tasks))
	for i, t := range tasks {
		items[i] = listItem{
			ID:        t.ID,
			EffectID:  t.EffectID,
			Status:    string(t.Status),
			Progress:  t.Progress,
			Results:   len(t.Results),
			CreatedAt: t.CreatedAt.UTC(),
		}
	}

	return j.encode(items)
}

// PrintTask prints the detailed task in JSON format.
func (j *JSONPrinter) PrintTask(task model.Task) error {
	return j.encode(toTaskOutput(task))
}

// PrintResults prints the task results in JSON format.
func (j *JSONPrinter) PrintResults(taskID string, results []string) error {
	if results == nil {
		results = []string{}
	}
	return j.encode(resultsOutput{TaskID: taskID, Results: results})
}

// PrintState prints the aggregated task state in JSON format.
func (j *JSONPrinter) PrintState(state model.AggregateState) error {
	out := stateOutput{
		IsProcessing: state.IsProcessing,
		Progress:     state.Progress,
		TaskProgress: state.TaskProgress,
		IsCancelled:  state.IsCancelled,
	}
	if out.TaskProgress == nil {
		out.TaskProgress = map[string]float64{}
	}
	if state.Latest != nil {
		latest := toTaskOutput(*state.Latest)
		out.Latest = &latest
	}

	return j.encode(out)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toTaskOutput(t model.Task) taskOutput {
	out := taskOutput{
		ID:           t.ID,
		EffectID:     t.EffectID,
		Status:       string(t.Status),
		Progress:     t.Progress,
		Results:      t.Results,
		PollAttempts: t.PollAttempts,
		CreatedAt:    t.CreatedAt.UTC(),
		UpdatedAt:    t.UpdatedAt.UTC(),
	}
	if out.Results == nil {
		out.Results = []string{}
	}

	if t.Status == model.TaskStatusFailed {
		out.Error = t.Error
		out.ErrorCode = string(t.ErrorCode)
	}

	if t.LastPolledAt != nil {
		lp := t.LastPolledAt.UTC()
		out.LastPolledAt = &lp
	}

	return out
}
