package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/slok/fxtask/internal/imageprep"
	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/model"
)

const (
	userAgent        = "fxtask"
	maxResponseBytes = 10 << 20
	maxErrorMsgBytes = 512
)

// ClientConfig configures the effects backend HTTP client.
type ClientConfig struct {
	// BaseURL is the backend API base URL (e.g. "https://fx.example.com/api/v1").
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// HTTPClient is the HTTP client used for all the requests.
	HTTPClient *http.Client
	// MaxImageDimension downscales raw images whose longest side is bigger, 0 disables it.
	MaxImageDimension int
	// Logger for logging.
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base url %q is not a valid absolute url", c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.MaxImageDimension < 0 {
		return fmt.Errorf("max image dimension can't be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "backend.API"})
	return nil
}

// Client talks to the effects backend over HTTP. It implements backend.Backend.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	maxImageDim int
	logger      log.Logger
}

// NewClient returns a new effects backend HTTP client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		token:       cfg.Token,
		httpClient:  cfg.HTTPClient,
		maxImageDim: cfg.MaxImageDimension,
		logger:      cfg.Logger,
	}, nil
}

// --- JSON wire types ---

type submitImageJSON struct {
	Param string `json:"param"`
	URL   string `json:"url"`
}

type submitRequestJSON struct {
	EffectID   string            `json:"effect_id"`
	Parameters map[string]any    `json:"parameters"`
	Images     []submitImageJSON `json:"images"`
}

type submitResponseJSON struct {
	TaskID      string `json:"task_id"`
	TaskIDCamel string `json:"taskId"`
	ID          string `json:"id"`
}

func (s submitResponseJSON) id() string {
	for _, id := range []string{s.TaskID, s.TaskIDCamel, s.ID} {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

type statusResponseJSON struct {
	Status   string   `json:"status"`
	Progress *float64 `json:"progress"`
	Error    string   `json:"error"`
	Message  string   `json:"message"`
}

type resultsResponseJSON struct {
	Results []resultItemJSON `json:"results"`
}

// resultItemJSON accepts both `"https://..."` and `{"file_url": "https://..."}` items.
type resultItemJSON struct {
	URL string
}

func (r *resultItemJSON) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.URL = s
		return nil
	}

	var obj struct {
		FileURL      string `json:"file_url"`
		FileURLCamel string `json:"fileUrl"`
		URL          string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for _, u := range []string{obj.FileURL, obj.FileURLCamel, obj.URL} {
		if u != "" {
			r.URL = u
			break
		}
	}
	return nil
}

type errorResponseJSON struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// --- backend.Backend implementation ---

// Submit sends the effect task to the backend. The request is validated before any
// network call and it is never retried.
func (c *Client) Submit(ctx context.Context, req model.EffectRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	body, contentType, err := c.submitBody(req)
	if err != nil {
		return "", err
	}

	status, data, err := c.do(ctx, http.MethodPost, "/tasks", contentType, body)
	if err != nil {
		return "", &model.BackendError{Kind: model.ErrSubmission, Message: err.Error()}
	}
	if !isSuccess(status) {
		return "", &model.BackendError{Kind: model.ErrSubmission, StatusCode: status, Message: errorMessage(data)}
	}

	var resp submitResponseJSON
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &model.BackendError{Kind: model.ErrSubmission, StatusCode: status, Message: fmt.Sprintf("malformed response: %s", err)}
	}
	taskID := resp.id()
	if taskID == "" {
		return "", &model.BackendError{Kind: model.ErrSubmission, StatusCode: status, Message: "response without task id"}
	}

	c.logger.Debugf("Submitted effect %s task: %s", req.EffectID, taskID)
	return taskID, nil
}

// PollOnce gets the current task status from the backend.
func (c *Client) PollOnce(ctx context.Context, taskID string) (*model.TaskState, error) {
	status, data, err := c.do(ctx, http.MethodGet, taskPath(taskID, ""), "", nil)
	if err != nil {
		return nil, &model.BackendError{Kind: model.ErrPollTransient, Message: err.Error()}
	}
	if !isSuccess(status) {
		return nil, &model.BackendError{Kind: model.ErrPollTransient, StatusCode: status, Message: errorMessage(data)}
	}

	var resp statusResponseJSON
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &model.BackendError{Kind: model.ErrPollTransient, StatusCode: status, Message: fmt.Sprintf("malformed response: %s", err)}
	}
	if strings.TrimSpace(resp.Status) == "" {
		return nil, &model.BackendError{Kind: model.ErrPollTransient, StatusCode: status, Message: "response without status"}
	}

	msg := resp.Error
	if msg == "" {
		msg = resp.Message
	}

	return &model.TaskState{
		Status:    NormalizeStatus(resp.Status),
		Progress:  resp.Progress,
		Message:   msg,
		RawStatus: resp.Status,
	}, nil
}

// FetchResults gets the artifacts of a succeeded task in backend order.
func (c *Client) FetchResults(ctx context.Context, taskID string) ([]string, error) {
	status, data, err := c.do(ctx, http.MethodGet, taskPath(taskID, "results"), "", nil)
	if err != nil {
		return nil, &model.BackendError{Kind: model.ErrResultFetch, Message: err.Error()}
	}
	if !isSuccess(status) {
		return nil, &model.BackendError{Kind: model.ErrResultFetch, StatusCode: status, Message: errorMessage(data)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &model.BackendError{Kind: model.ErrResultFetch, StatusCode: status, Message: "empty response"}
	}

	var resp resultsResponseJSON
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &model.BackendError{Kind: model.ErrResultFetch, StatusCode: status, Message: fmt.Sprintf("malformed response: %s", err)}
	}

	results := make([]string, 0, len(resp.Results))
	for i, r := range resp.Results {
		if r.URL == "" {
			return nil, &model.BackendError{Kind: model.ErrResultFetch, StatusCode: status, Message: fmt.Sprintf("result %d without url", i)}
		}
		results = append(results, r.URL)
	}
	if len(results) == 0 {
		return nil, &model.BackendError{Kind: model.ErrResultFetch, StatusCode: status, Message: "no results"}
	}

	return results, nil
}

// Cancel asks the backend to cancel the task. The answer is advisory.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	status, data, err := c.do(ctx, http.MethodPost, taskPath(taskID, "cancel"), "", nil)
	if err != nil {
		return &model.BackendError{Kind: model.ErrCancellation, Message: err.Error()}
	}
	if !isSuccess(status) {
		return &model.BackendError{Kind: model.ErrCancellation, StatusCode: status, Message: errorMessage(data)}
	}

	return nil
}

// --- helpers ---

func (c *Client) submitBody(req model.EffectRequest) (io.Reader, string, error) {
	params := req.Parameters
	if params == nil {
		params = map[string]any{}
	}

	hasRaw := false
	for _, img := range req.Images {
		if img.IsRaw() {
			hasRaw = true
			break
		}
	}

	// Only references, plain JSON.
	if !hasRaw {
		images := make([]submitImageJSON, 0, len(req.Images))
		for _, img := range req.Images {
			images = append(images, submitImageJSON{Param: img.Param, URL: img.URL})
		}
		data, err := json.Marshal(submitRequestJSON{EffectID: req.EffectID, Parameters: params, Images: images})
		if err != nil {
			return nil, "", fmt.Errorf("could not marshal request: %s: %w", err, model.ErrValidation)
		}
		return bytes.NewReader(data), "application/json", nil
	}

	// Raw images, multipart.
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	if err := w.WriteField("effect_id", req.EffectID); err != nil {
		return nil, "", fmt.Errorf("could not write effect id: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, "", fmt.Errorf("could not marshal parameters: %s: %w", err, model.ErrValidation)
	}
	if err := w.WriteField("parameters", string(paramsJSON)); err != nil {
		return nil, "", fmt.Errorf("could not write parameters: %w", err)
	}

	for _, img := range req.Images {
		if !img.IsRaw() {
			if err := w.WriteField(img.Param+"_url", img.URL); err != nil {
				return nil, "", fmt.Errorf("could not write image %q url: %w", img.Param, err)
			}
			continue
		}

		data, contentType := img.Data, http.DetectContentType(img.Data)
		if c.maxImageDim > 0 {
			var err error
			data, contentType, err = imageprep.Prepare(img.Data, c.maxImageDim)
			if err != nil {
				return nil, "", fmt.Errorf("could not prepare image %q: %w", img.Param, err)
			}
		}
		filename := img.Filename
		if filename == "" {
			filename = img.Param
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(img.Param), quoteEscaper.Replace(filename)))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("could not create image %q part: %w", img.Param, err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", fmt.Errorf("could not write image %q: %w", img.Param, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("could not close multipart body: %w", err)
	}

	return &b, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (status int, data []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("could not create request: %w", err)
	}

	requestID := ulid.Make().String()
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("could not read %s %s response: %w", method, path, err)
	}

	c.logger.Debugf("%s %s -> %d (request %s)", method, path, resp.StatusCode, requestID)
	return resp.StatusCode, data, nil
}

func taskPath(taskID, sub string) string {
	p := "/tasks/" + url.PathEscape(taskID)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }

// errorMessage extracts the backend message from an error response body.
func errorMessage(data []byte) string {
	var e errorResponseJSON
	if err := json.Unmarshal(data, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}

	msg := strings.TrimSpace(string(data))
	if len(msg) > maxErrorMsgBytes {
		msg = msg[:maxErrorMsgBytes]
	}
	return msg
}
