package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/fxtask/internal/backend/api"
	"github.com/slok/fxtask/internal/model"
)

func newTestClient(t *testing.T, h http.Handler, maxImageDim int) *api.Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := api.NewClient(api.ClientConfig{
		BaseURL:           srv.URL + "/api/v1/",
		Token:             "s3cr3t",
		MaxImageDimension: maxImageDim,
	})
	require.NoError(t, err)

	return c
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()

	var b bytes.Buffer
	require.NoError(t, png.Encode(&b, image.NewRGBA(image.Rect(0, 0, w, h))))
	return b.Bytes()
}

func TestNewClient(t *testing.T) {
	tests := map[string]struct {
		cfg    api.ClientConfig
		expErr bool
	}{
		"A valid config should create the client.": {
			cfg: api.ClientConfig{BaseURL: "https://fx.test/api"},
		},
		"A missing base URL should fail.": {
			cfg:    api.ClientConfig{},
			expErr: true,
		},
		"A relative base URL should fail.": {
			cfg:    api.ClientConfig{BaseURL: "/api"},
			expErr: true,
		},
		"A negative max image dimension should fail.": {
			cfg:    api.ClientConfig{BaseURL: "https://fx.test/api", MaxImageDimension: -1},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := api.NewClient(test.cfg)
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, c)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, c)
			}
		})
	}
}

func TestClientSubmit(t *testing.T) {
	tests := map[string]struct {
		req         model.EffectRequest
		maxImageDim int
		handler     func(t *testing.T) http.HandlerFunc
		expTaskID   string
		expErrIs    error
		expCalls    int32
	}{
		"Submitting reference images should send a JSON body.": {
			req: model.EffectRequest{
				EffectID:   "cartoonify",
				Parameters: map[string]any{"strength": 0.8, "style": "anime"},
				Images:     []model.ImagePayload{{Param: "image", URL: "https://cdn.test/a.png"}},
			},
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, http.MethodPost, r.Method)
					assert.Equal(t, "/api/v1/tasks", r.URL.Path)
					assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
					assert.Equal(t, "Bearer s3cr3t", r.Header.Get("Authorization"))
					assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

					var body map[string]any
					require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
					assert.Equal(t, "cartoonify", body["effect_id"])
					assert.Equal(t, map[string]any{"strength": 0.8, "style": "anime"}, body["parameters"])
					assert.Equal(t, []any{map[string]any{"param": "image", "url": "https://cdn.test/a.png"}}, body["images"])

					w.WriteHeader(http.StatusCreated)
					_, _ = w.Write([]byte(`{"task_id":"task-1"}`))
				}
			},
			expTaskID: "task-1",
			expCalls:  1,
		},

		"Submitting raw images should send a multipart body.": {
			req: model.EffectRequest{
				EffectID:   "faceswap",
				Parameters: map[string]any{"blend": 1},
				Images: []model.ImagePayload{
					{Param: "source", Data: []byte("raw-bytes"), Filename: "me.bin"},
					{Param: "target", URL: "https://cdn.test/b.png"},
				},
			},
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					require.NoError(t, r.ParseMultipartForm(1<<20))
					assert.Equal(t, "faceswap", r.FormValue("effect_id"))
					assert.JSONEq(t, `{"blend":1}`, r.FormValue("parameters"))
					assert.Equal(t, "https://cdn.test/b.png", r.FormValue("target_url"))

					f, fh, err := r.FormFile("source")
					require.NoError(t, err)
					defer f.Close()
					data, _ := io.ReadAll(f)
					assert.Equal(t, "raw-bytes", string(data))
					assert.Equal(t, "me.bin", fh.Filename)

					_, _ = w.Write([]byte(`{"taskId":"task-2"}`))
				}
			},
			expTaskID: "task-2",
			expCalls:  1,
		},

		"Submitting big raw images with a max dimension should downscale them.": {
			req: model.EffectRequest{
				EffectID: "cartoonify",
				Images:   []model.ImagePayload{{Param: "image", Data: pngImage(t, 100, 40)}},
			},
			maxImageDim: 50,
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					require.NoError(t, r.ParseMultipartForm(1<<20))
					f, fh, err := r.FormFile("image")
					require.NoError(t, err)
					defer f.Close()
					assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))

					cfg, _, err := image.DecodeConfig(f)
					require.NoError(t, err)
					assert.Equal(t, 50, cfg.Width)
					assert.Equal(t, 20, cfg.Height)

					_, _ = w.Write([]byte(`{"id":"task-3"}`))
				}
			},
			expTaskID: "task-3",
			expCalls:  1,
		},

		"A request without images should fail before any network call.": {
			req: model.EffectRequest{EffectID: "cartoonify"},
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {}
			},
			expErrIs: model.ErrValidation,
			expCalls: 0,
		},

		"A backend rejection should fail with the backend message.": {
			req: model.EffectRequest{
				EffectID: "cartoonify",
				Images:   []model.ImagePayload{{Param: "image", URL: "https://cdn.test/a.png"}},
			},
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusPaymentRequired)
					_, _ = w.Write([]byte(`{"error":"not enough credits"}`))
				}
			},
			expErrIs: model.ErrSubmission,
			expCalls: 1,
		},

		"A response without task ID should fail.": {
			req: model.EffectRequest{
				EffectID: "cartoonify",
				Images:   []model.ImagePayload{{Param: "image", URL: "https://cdn.test/a.png"}},
			},
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(`{"ok":true}`))
				}
			},
			expErrIs: model.ErrSubmission,
			expCalls: 1,
		},

		"A malformed response should fail.": {
			req: model.EffectRequest{
				EffectID: "cartoonify",
				Images:   []model.ImagePayload{{Param: "image", URL: "https://cdn.test/a.png"}},
			},
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(`<html>`))
				}
			},
			expErrIs: model.ErrSubmission,
			expCalls: 1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			var calls int32
			h := test.handler(t)
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				h(w, r)
			}), test.maxImageDim)

			taskID, err := c.Submit(context.Background(), test.req)

			assert.Equal(test.expCalls, atomic.LoadInt32(&calls))
			if test.expErrIs != nil {
				require.Error(err)
				assert.ErrorIs(err, test.expErrIs)
				return
			}
			require.NoError(err)
			assert.Equal(test.expTaskID, taskID)
		})
	}
}

func TestClientSubmitBackendMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"unknown effect"}`))
	}), 0)

	_, err := c.Submit(context.Background(), model.EffectRequest{
		EffectID: "nope",
		Images:   []model.ImagePayload{{Param: "image", URL: "https://cdn.test/a.png"}},
	})

	var berr *model.BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, http.StatusBadRequest, berr.StatusCode)
	assert.Equal(t, "unknown effect", berr.Message)
}

func TestClientPollOnce(t *testing.T) {
	progress := func(f float64) *float64 { return &f }

	tests := map[string]struct {
		status   int
		body     string
		expState *model.TaskState
		expErrIs error
	}{
		"A running task with progress should be reported.": {
			status:   http.StatusOK,
			body:     `{"status":"processing","progress":50}`,
			expState: &model.TaskState{Status: model.TaskStatusRunning, Progress: progress(50), RawStatus: "processing"},
		},

		"An uppercase success should be normalized.": {
			status:   http.StatusOK,
			body:     `{"status":"SUCCESS"}`,
			expState: &model.TaskState{Status: model.TaskStatusSucceeded, RawStatus: "SUCCESS"},
		},

		"A failed task should carry the backend error.": {
			status:   http.StatusOK,
			body:     `{"status":"failed","error":"nsfw content"}`,
			expState: &model.TaskState{Status: model.TaskStatusFailed, Message: "nsfw content", RawStatus: "failed"},
		},

		"An unknown status should be reported as running.": {
			status:   http.StatusOK,
			body:     `{"status":"gpu_warming"}`,
			expState: &model.TaskState{Status: model.TaskStatusRunning, RawStatus: "gpu_warming"},
		},

		"A server error should be transient.": {
			status:   http.StatusBadGateway,
			body:     `bad gateway`,
			expErrIs: model.ErrPollTransient,
		},

		"A response without status should be transient.": {
			status:   http.StatusOK,
			body:     `{"progress":10}`,
			expErrIs: model.ErrPollTransient,
		},

		"A malformed response should be transient.": {
			status:   http.StatusOK,
			body:     `{`,
			expErrIs: model.ErrPollTransient,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(http.MethodGet, r.Method)
				assert.Equal("/api/v1/tasks/task%2F1", r.URL.EscapedPath())
				w.WriteHeader(test.status)
				_, _ = w.Write([]byte(test.body))
			}), 0)

			state, err := c.PollOnce(context.Background(), "task/1")

			if test.expErrIs != nil {
				require.Error(err)
				assert.ErrorIs(err, test.expErrIs)
				return
			}
			require.NoError(err)
			assert.Equal(test.expState, state)
		})
	}
}

func TestClientFetchResults(t *testing.T) {
	tests := map[string]struct {
		status     int
		body       string
		expResults []string
		expErrIs   error
	}{
		"Object results should be returned in backend order.": {
			status:     http.StatusOK,
			body:       `{"results":[{"fileUrl":"https://cdn.test/c.png"},{"file_url":"https://cdn.test/a.png"},{"url":"https://cdn.test/b.png"}]}`,
			expResults: []string{"https://cdn.test/c.png", "https://cdn.test/a.png", "https://cdn.test/b.png"},
		},

		"String results should be returned in backend order.": {
			status:     http.StatusOK,
			body:       `{"results":["https://cdn.test/1.png","https://cdn.test/2.png"]}`,
			expResults: []string{"https://cdn.test/1.png", "https://cdn.test/2.png"},
		},

		"An empty body should fail.": {
			status:   http.StatusOK,
			body:     ``,
			expErrIs: model.ErrResultFetch,
		},

		"No results should fail.": {
			status:   http.StatusOK,
			body:     `{"results":[]}`,
			expErrIs: model.ErrResultFetch,
		},

		"A result without URL should fail.": {
			status:   http.StatusOK,
			body:     `{"results":[{"name":"x"}]}`,
			expErrIs: model.ErrResultFetch,
		},

		"A not found should fail.": {
			status:   http.StatusNotFound,
			body:     `{"error":"expired"}`,
			expErrIs: model.ErrResultFetch,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal("/api/v1/tasks/task-1/results", r.URL.Path)
				w.WriteHeader(test.status)
				_, _ = w.Write([]byte(test.body))
			}), 0)

			results, err := c.FetchResults(context.Background(), "task-1")

			if test.expErrIs != nil {
				require.Error(err)
				assert.ErrorIs(err, test.expErrIs)
				return
			}
			require.NoError(err)
			assert.Equal(test.expResults, results)
		})
	}
}

func TestClientCancel(t *testing.T) {
	tests := map[string]struct {
		status int
		expErr bool
	}{
		"An accepted cancel should not fail.": {status: http.StatusAccepted},
		"A rejected cancel should fail.":      {status: http.StatusConflict, expErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/v1/tasks/task-1/cancel", r.URL.Path)
				w.WriteHeader(test.status)
			}), 0)

			err := c.Cancel(context.Background(), "task-1")

			if test.expErr {
				assert.ErrorIs(t, err, model.ErrCancellation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
