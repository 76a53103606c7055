package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/fxtask/internal/backend"
	"github.com/slok/fxtask/internal/backend/api"
	"github.com/slok/fxtask/internal/backend/fake"
	"github.com/slok/fxtask/internal/conventions"
	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/printer"
	"github.com/slok/fxtask/internal/storage/sqlite"
	"github.com/slok/fxtask/internal/task"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	// BackendTypeAPI is the HTTP effects backend.
	BackendTypeAPI = "api"
	// BackendTypeFake is the in-memory scripted backend.
	BackendTypeFake = "fake"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug             bool
	NoLog             bool
	NoColor           bool
	LoggerType        string
	DBPath            string
	APIURL            string
	APIToken          string
	BackendType       string
	PollInterval      time.Duration
	MaxPollAttempts   int
	MaxImageDimension int

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	app.Flag("db-path", "Path to the SQLite task history database file.").Default(conventions.DBPath(homedir.HomeDir())).StringVar(&c.DBPath)

	app.Flag("api-url", "Effects backend base URL.").StringVar(&c.APIURL)
	app.Flag("api-token", "Effects backend bearer token.").StringVar(&c.APIToken)
	app.Flag("backend", "Effects backend type.").Default(BackendTypeAPI).EnumVar(&c.BackendType, BackendTypeAPI, BackendTypeFake)
	app.Flag("poll-interval", "Interval between task status polls.").Default(task.DefaultPollInterval.String()).DurationVar(&c.PollInterval)
	app.Flag("max-attempts", "Max status polls before a task times out.").Default(fmt.Sprint(task.DefaultMaxPollAttempts)).IntVar(&c.MaxPollAttempts)
	app.Flag("max-image-dimension", "Downscale uploaded images so the longest side fits (0 disables).").Default(fmt.Sprint(conventions.DefaultMaxImageDimension)).IntVar(&c.MaxImageDimension)

	return c
}

func (r RootCommand) newBackend() (backend.Backend, error) {
	switch r.BackendType {
	case BackendTypeFake:
		b, err := fake.NewBackend(fake.BackendConfig{Logger: r.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create fake backend: %w", err)
		}
		return b, nil
	default:
		if r.APIURL == "" {
			return nil, fmt.Errorf("api url is required for the %q backend", BackendTypeAPI)
		}
		c, err := api.NewClient(api.ClientConfig{
			BaseURL:           r.APIURL,
			Token:             r.APIToken,
			MaxImageDimension: r.MaxImageDimension,
			Logger:            r.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create api backend: %w", err)
		}
		return c, nil
	}
}

func (r RootCommand) newRepository(ctx context.Context) (*sqlite.Repository, error) {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: r.DBPath,
		Logger: r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}
	return repo, nil
}

func (r RootCommand) newPrinter(format string) printer.Printer {
	switch format {
	case "json":
		return printer.NewJSONPrinter(r.Stdout)
	default: // table
		return printer.NewTablePrinter(r.Stdout)
	}
}

func addFormatFlag(cmd *kingpin.CmdClause, format *string) {
	cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(format, "table", "json")
}
