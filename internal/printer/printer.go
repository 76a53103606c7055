package printer

import "github.com/slok/fxtask/internal/model"

// Printer knows how to print effect task information in different formats.
type Printer interface {
	PrintTasks(tasks []model.Task) error
	PrintTask(task model.Task) error
	PrintResults(taskID string, results []string) error
	PrintState(state model.AggregateState) error
	PrintMessage(msg string) error
}
