package list_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/fxtask/internal/app/list"
	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/model"
	"github.com/slok/fxtask/internal/storage"
	"github.com/slok/fxtask/internal/storage/storagemock"
)

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config list.ServiceConfig
		expErr bool
	}{
		"valid config should create service": {
			config: list.ServiceConfig{
				Repository: &storagemock.MockTaskRepository{},
				Logger:     log.Noop,
			},
		},
		"missing repository should fail": {
			config: list.ServiceConfig{Logger: log.Noop},
			expErr: true,
		},
		"nil logger should default to noop": {
			config: list.ServiceConfig{Repository: &storagemock.MockTaskRepository{}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			svc, err := list.NewService(test.config)

			if test.expErr {
				require.Error(err)
				require.Nil(svc)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func TestService_Run(t *testing.T) {
	createdAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	succeeded := model.TaskStatusSucceeded

	tests := map[string]struct {
		mock      func(m *storagemock.MockTaskRepository)
		req       list.Request
		expResult []model.Task
		expErr    bool
	}{
		"list all tasks without filter": {
			mock: func(m *storagemock.MockTaskRepository) {
				m.On("ListTasks", mock.Anything, storage.ListTasksOpts{}).Once().Return([]model.Task{
					{ID: "task-2", EffectID: "anime", Status: model.TaskStatusFailed, CreatedAt: createdAt},
					{ID: "task-1", EffectID: "cartoon", Status: model.TaskStatusSucceeded, CreatedAt: createdAt},
				}, nil)
			},
			req: list.Request{},
			expResult: []model.Task{
				{ID: "task-2", EffectID: "anime", Status: model.TaskStatusFailed, CreatedAt: createdAt},
				{ID: "task-1", EffectID: "cartoon", Status: model.TaskStatusSucceeded, CreatedAt: createdAt},
			},
		},

		"filters should be passed to the repository": {
			mock: func(m *storagemock.MockTaskRepository) {
				exp := storage.ListTasksOpts{Status: &succeeded, EffectID: "cartoon", Limit: 5}
				m.On("ListTasks", mock.Anything, exp).Once().Return([]model.Task{
					{ID: "task-1", EffectID: "cartoon", Status: model.TaskStatusSucceeded, CreatedAt: createdAt},
				}, nil)
			},
			req: list.Request{StatusFilter: &succeeded, EffectID: "cartoon", Limit: 5},
			expResult: []model.Task{
				{ID: "task-1", EffectID: "cartoon", Status: model.TaskStatusSucceeded, CreatedAt: createdAt},
			},
		},

		"a negative limit should fail": {
			mock:   func(m *storagemock.MockTaskRepository) {},
			req:    list.Request{Limit: -1},
			expErr: true,
		},

		"repository error should propagate": {
			mock: func(m *storagemock.MockTaskRepository) {
				m.On("ListTasks", mock.Anything, mock.Anything).Once().Return(nil, fmt.Errorf("db error"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			mRepo := storagemock.NewMockTaskRepository(t)
			test.mock(mRepo)

			svc, err := list.NewService(list.ServiceConfig{Repository: mRepo, Logger: log.Noop})
			require.NoError(err)

			result, err := svc.Run(context.Background(), test.req)

			if test.expErr {
				require.Error(err)
			} else {
				require.NoError(err)
				assert.Equal(t, test.expResult, result)
			}
		})
	}
}
