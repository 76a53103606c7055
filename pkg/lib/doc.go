// Package lib provides a Go SDK to apply AI photo effects and track the
// resulting backend tasks programmatically.
//
// This package allows applications (e.g. a UI) to submit effect requests, follow
// their progress, cancel them and read their results without shelling out to
// the fxtask CLI binary.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{
//	    APIURL:   "https://fx.example.com/api/v1",
//	    APIToken: os.Getenv("FXTASK_API_TOKEN"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	task, err := client.ProcessTask(ctx, lib.EffectRequest{
//	    EffectID:   "cartoonify",
//	    Parameters: map[string]any{"style": "anime"},
//	    Images:     []lib.ImagePayload{{Param: "image", Data: photo, Filename: "me.png"}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	task, err = client.Wait(ctx, task.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := task.Err(); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(task.Results)
//
// # Task Lifecycle
//
// Every task goes through queued and running until it reaches one of the
// terminal statuses: succeeded, failed or cancelled. Terminal tasks never
// change. The client polls the backend in the background every
// [Config].PollInterval, a task without a terminal status after
// [Config].MaxPollAttempts polls fails with [ErrTimeout].
//
// Cancelling is local and immediate: the task is cancelled when
// [Client.CancelTask] returns, the backend is notified in the background.
//
// # Observing Tasks
//
// Use [Client.Subscribe] to receive every task change, or [Client.State] to get
// an aggregated view ready to render:
//
//	events, stop := client.Subscribe()
//	defer stop()
//	for ev := range events {
//	    fmt.Printf("%s: %s %.0f%%\n", ev.Task.ID, ev.Task.Status, ev.Task.Progress)
//	}
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrValidation]: The effect request lacks required input.
//   - [ErrSubmission]: The backend did not accept the task.
//   - [ErrNotFound]: The task is not tracked.
//   - [ErrNotValid]: Invalid input or operation (e.g. cancelling a finished task).
//
// Failed tasks expose their failure with [Task.Err], matching [ErrTimeout] or
// [ErrResultFetch] when applicable.
//
// # Testing
//
// Use [BackendFake] to write tests without a real backend:
//
//	client, _ := lib.New(ctx, lib.Config{
//	    Backend:      lib.BackendFake,
//	    PollInterval: time.Millisecond,
//	})
//	defer client.Close()
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines.
package lib
