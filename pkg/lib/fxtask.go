package lib

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slok/fxtask/internal/app/list"
	"github.com/slok/fxtask/internal/backend"
	"github.com/slok/fxtask/internal/backend/api"
	"github.com/slok/fxtask/internal/backend/fake"
	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/storage"
	"github.com/slok/fxtask/internal/storage/memory"
	"github.com/slok/fxtask/internal/storage/sqlite"
	"github.com/slok/fxtask/internal/task"
)

// Config configures the SDK client.
type Config struct {
	// Backend selects the effects backend.
	// Default: [BackendAPI].
	Backend BackendType

	// APIURL is the effects backend base URL, required for [BackendAPI].
	APIURL string
	// APIToken is sent as a bearer token when set.
	APIToken string
	// HTTPClient is used for the backend requests.
	// Default: http.DefaultClient.
	HTTPClient *http.Client
	// MaxImageDimension downscales uploaded images whose longest side is bigger.
	// Default: 0 (disabled).
	MaxImageDimension int

	// DBPath is the SQLite task history path.
	// Default: empty, the history is kept in memory.
	DBPath string

	// PollInterval is the time between task status polls.
	// Default: 10s.
	PollInterval time.Duration
	// MaxPollAttempts is the number of polls before a task times out.
	// Default: 60.
	MaxPollAttempts int

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Backend == "" {
		c.Backend = BackendAPI
	}
	if c.Backend != BackendAPI && c.Backend != BackendFake {
		return fmt.Errorf("unsupported backend type %q", c.Backend)
	}
	if c.Backend == BackendAPI && c.APIURL == "" {
		return fmt.Errorf("api url is required for the %q backend", BackendAPI)
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	return nil
}

// Client is the main SDK entry point to process effect tasks programmatically.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	manager *task.Manager
	repo    storage.TaskRepository
	logger  log.Logger
	closeFn func() error
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done, it stops polling the running tasks
// and releases the history database.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, mapError(fmt.Errorf("invalid config: %w: %w", err, ErrNotValid))
	}

	b, err := newBackend(cfg)
	if err != nil {
		return nil, mapError(err)
	}

	var (
		repo      storage.TaskRepository
		closeRepo = func() error { return nil }
	)
	if cfg.DBPath == "" {
		r, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		repo = r
	} else {
		r, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: cfg.DBPath,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		repo = r
		closeRepo = r.Close
	}

	manager, err := task.NewManager(task.ManagerConfig{
		Submitter:       b,
		Poller:          b,
		ResultFetcher:   b,
		Canceller:       b,
		Repository:      repo,
		PollInterval:    cfg.PollInterval,
		MaxPollAttempts: cfg.MaxPollAttempts,
		Logger:          cfg.Logger,
	})
	if err != nil {
		_ = closeRepo()
		return nil, mapError(fmt.Errorf("could not create task manager: %w: %w", err, ErrNotValid))
	}

	return &Client{
		manager: manager,
		repo:    repo,
		logger:  cfg.Logger,
		closeFn: func() error {
			if err := manager.Close(); err != nil {
				return err
			}
			return closeRepo()
		},
	}, nil
}

func newBackend(cfg Config) (backend.Backend, error) {
	if cfg.Backend == BackendFake {
		b, err := fake.NewBackend(fake.BackendConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create fake backend: %w", err)
		}
		return b, nil
	}

	b, err := api.NewClient(api.ClientConfig{
		BaseURL:           cfg.APIURL,
		Token:             cfg.APIToken,
		HTTPClient:        cfg.HTTPClient,
		MaxImageDimension: cfg.MaxImageDimension,
		Logger:            cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create api backend: %w: %w", err, ErrNotValid)
	}
	return b, nil
}

// Close stops polling the tasks still running and releases the client resources.
// Those tasks are not cancelled, they keep running on the backend and keep their
// last status on the history. After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// History returns the persisted task history, newest first. Acknowledged tasks
// are kept on the history.
func (c *Client) History(ctx context.Context, opts HistoryOpts) ([]Task, error) {
	svc, err := list.NewService(list.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	tasks, err := svc.Run(ctx, list.Request{
		StatusFilter: toInternalStatusFilter(opts.Status),
		EffectID:     opts.EffectID,
		Limit:        opts.Limit,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalTaskList(tasks), nil
}
