package results_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/fxtask/internal/app/results"
	"github.com/slok/fxtask/internal/backend/backendmock"
	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/model"
	"github.com/slok/fxtask/internal/storage/storagemock"
)

func TestService_Run(t *testing.T) {
	tests := map[string]struct {
		mock       func(mb *backendmock.MockBackend, mr *storagemock.MockTaskRepository)
		req        results.Request
		expResults []string
		expErr     error
	}{
		"results of an untracked task should be returned in order": {
			mock: func(mb *backendmock.MockBackend, mr *storagemock.MockTaskRepository) {
				mb.On("FetchResults", mock.Anything, "task-1").Once().Return([]string{"b", "a"}, nil)
				mr.On("GetTask", mock.Anything, "task-1").Once().Return(nil, fmt.Errorf("task-1: %w", model.ErrNotFound))
			},
			req:        results.Request{TaskID: "task-1"},
			expResults: []string{"b", "a"},
		},

		"results of a tracked succeeded task without results should be stored": {
			mock: func(mb *backendmock.MockBackend, mr *storagemock.MockTaskRepository) {
				mb.On("FetchResults", mock.Anything, "task-1").Once().Return([]string{"a"}, nil)
				mr.On("GetTask", mock.Anything, "task-1").Once().Return(&model.Task{ID: "task-1", Status: model.TaskStatusSucceeded}, nil)
				mr.On("SaveTask", mock.Anything, mock.MatchedBy(func(t model.Task) bool {
					return t.ID == "task-1" && len(t.Results) == 1 && t.Results[0] == "a"
				})).Once().Return(nil)
			},
			req:        results.Request{TaskID: "task-1"},
			expResults: []string{"a"},
		},

		"a tracked task that already has results should not be stored again": {
			mock: func(mb *backendmock.MockBackend, mr *storagemock.MockTaskRepository) {
				mb.On("FetchResults", mock.Anything, "task-1").Once().Return([]string{"a"}, nil)
				mr.On("GetTask", mock.Anything, "task-1").Once().Return(&model.Task{ID: "task-1", Status: model.TaskStatusSucceeded, Results: []string{"a"}}, nil)
			},
			req:        results.Request{TaskID: "task-1"},
			expResults: []string{"a"},
		},

		"a history error should not fail the results": {
			mock: func(mb *backendmock.MockBackend, mr *storagemock.MockTaskRepository) {
				mb.On("FetchResults", mock.Anything, "task-1").Once().Return([]string{"a"}, nil)
				mr.On("GetTask", mock.Anything, "task-1").Once().Return(nil, errors.New("db locked"))
			},
			req:        results.Request{TaskID: "task-1"},
			expResults: []string{"a"},
		},

		"a fetch error should fail": {
			mock: func(mb *backendmock.MockBackend, mr *storagemock.MockTaskRepository) {
				mb.On("FetchResults", mock.Anything, "task-1").Once().Return(nil, model.ErrResultFetch)
			},
			req:    results.Request{TaskID: "task-1"},
			expErr: model.ErrResultFetch,
		},

		"an empty task id should fail": {
			mock:   func(mb *backendmock.MockBackend, mr *storagemock.MockTaskRepository) {},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			mb := backendmock.NewMockBackend(t)
			mr := storagemock.NewMockTaskRepository(t)
			test.mock(mb, mr)

			svc, err := results.NewService(results.ServiceConfig{ResultFetcher: mb, Repository: mr, Logger: log.Noop})
			require.NoError(err)

			got, err := svc.Run(context.Background(), test.req)
			if test.expErr != nil {
				assert.True(t, errors.Is(err, test.expErr), "unexpected error: %v", err)
				return
			}
			require.NoError(err)
			assert.Equal(t, test.expResults, got)
		})
	}
}
