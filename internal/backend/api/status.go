package api

import (
	"strings"

	"github.com/slok/fxtask/internal/model"
)

// statusTable maps the backend status vocabulary to task statuses. The backend is not
// consistent with case or synonyms so all the tolerance lives here. Keys are lowercase.
var statusTable = map[string]model.TaskStatus{
	"queued":    model.TaskStatusQueued,
	"pending":   model.TaskStatusQueued,
	"waiting":   model.TaskStatusQueued,
	"submitted": model.TaskStatusQueued,
	"created":   model.TaskStatusQueued,

	"running":     model.TaskStatusRunning,
	"processing":  model.TaskStatusRunning,
	"in_progress": model.TaskStatusRunning,
	"started":     model.TaskStatusRunning,

	"completed": model.TaskStatusSucceeded,
	"complete":  model.TaskStatusSucceeded,
	"success":   model.TaskStatusSucceeded,
	"succeeded": model.TaskStatusSucceeded,
	"done":      model.TaskStatusSucceeded,
	"finished":  model.TaskStatusSucceeded,

	"failed":  model.TaskStatusFailed,
	"failure": model.TaskStatusFailed,
	"error":   model.TaskStatusFailed,
	"errored": model.TaskStatusFailed,

	"cancelled": model.TaskStatusCancelled,
	"canceled":  model.TaskStatusCancelled,
	"aborted":   model.TaskStatusCancelled,
}

// NormalizeStatus maps a raw backend status to a task status. Unknown statuses are
// reported as running so a vocabulary change on the backend never ends a task early.
func NormalizeStatus(raw string) model.TaskStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if st, ok := statusTable[key]; ok {
		return st
	}
	return model.TaskStatusRunning
}
