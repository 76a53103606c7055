package lib_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/fxtask/pkg/lib"
)

// This example shows how to create a client using the fake backend for testing.
func Example_testing() {
	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{
		Backend:      lib.BackendFake,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	task, err := client.ProcessTask(ctx, lib.EffectRequest{
		EffectID: "cartoonify",
		Images:   []lib.ImagePayload{{Param: "image", URL: "https://cdn.example.com/me.png"}},
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("Submitted (status: %s)\n", task.Status)

	task, err = client.Wait(ctx, task.ID)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Finished (status: %s, progress: %.0f, results: %d)\n", task.Status, task.Progress, len(task.Results))

	// Output:
	// Submitted (status: queued)
	// Finished (status: succeeded, progress: 100, results: 1)
}

// This example shows how to keep the task history on disk.
func Example_history() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "fxtask-example-history-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	client, err := lib.New(ctx, lib.Config{
		Backend:      lib.BackendFake,
		DBPath:       filepath.Join(dir, "fxtask.db"),
		PollInterval: time.Millisecond,
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	task, err := client.ProcessTask(ctx, lib.EffectRequest{
		EffectID: "enhance",
		Images:   []lib.ImagePayload{{Param: "image", Data: []byte("raw"), Filename: "me.png"}},
	})
	if err != nil {
		panic(err)
	}
	if _, err := client.Wait(ctx, task.ID); err != nil {
		panic(err)
	}

	// Acknowledged tasks stop being tracked but stay on the history.
	if err := client.Acknowledge(task.ID); err != nil {
		panic(err)
	}

	history, err := client.History(ctx, lib.HistoryOpts{EffectID: "enhance"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("Tracked: %d, history: %d (%s)\n", len(client.ListTasks()), len(history), history[0].Status)

	// Output:
	// Tracked: 0, history: 1 (succeeded)
}

// This example shows how to inspect errors.
func Example_errorHandling() {
	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{Backend: lib.BackendFake})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	_, err = client.ProcessTask(ctx, lib.EffectRequest{
		EffectID:       "face-swap",
		Images:         []lib.ImagePayload{{Param: "source", URL: "https://cdn.example.com/a.png"}},
		RequiredImages: []string{"source", "target"},
	})
	if errors.Is(err, lib.ErrValidation) {
		fmt.Println("Invalid request")
	}

	_, err = client.GetTask("missing")
	if errors.Is(err, lib.ErrNotFound) {
		fmt.Println("Task not found")
	}

	// Output:
	// Invalid request
	// Task not found
}
