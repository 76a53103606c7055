package lib_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdklib "github.com/slok/fxtask/pkg/lib"
	intlib "github.com/slok/fxtask/test/integration/lib"
)

func TestSDKTaskLifecycle(t *testing.T) {
	config := intlib.NewConfig(t)
	client := intlib.NewTestClient(t, config)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	// Submit.
	task, err := client.ProcessTask(ctx, config.EffectRequest(t))
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, sdklib.TaskStatusQueued, task.Status)

	// Wait.
	task, err = client.Wait(ctx, task.ID)
	require.NoError(t, err)
	require.NoError(t, task.Err())
	assert.Equal(t, sdklib.TaskStatusSucceeded, task.Status)
	assert.Equal(t, 100.0, task.Progress)
	assert.NotEmpty(t, task.Results)

	// History.
	history, err := client.History(ctx, sdklib.HistoryOpts{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, task.Results, history[0].Results)

	// Acknowledge.
	require.NoError(t, client.Acknowledge(task.ID))
	assert.Empty(t, client.ListTasks())
}

func TestSDKTaskCancel(t *testing.T) {
	config := intlib.NewConfig(t)
	client := intlib.NewTestClient(t, config)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	task, err := client.ProcessTask(ctx, config.EffectRequest(t))
	require.NoError(t, err)

	cancelled, err := client.CancelTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, sdklib.TaskStatusCancelled, cancelled.Status)

	// The task stays cancelled whatever the backend does after.
	time.Sleep(5 * time.Second)
	got, err := client.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, sdklib.TaskStatusCancelled, got.Status)

	_, err = client.CancelTask(task.ID)
	assert.True(t, errors.Is(err, sdklib.ErrNotValid))
}
