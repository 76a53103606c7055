package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/fxtask/internal/app/list"
	"github.com/slok/fxtask/internal/model"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	status   string
	effectID string
	limit    int
	format   string
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("list", "List the task history.")
	c.Cmd.Alias("ls")
	c.Cmd.Flag("status", "Filter by status.").EnumVar(&c.status,
		string(model.TaskStatusQueued),
		string(model.TaskStatusRunning),
		string(model.TaskStatusSucceeded),
		string(model.TaskStatusFailed),
		string(model.TaskStatusCancelled),
	)
	c.Cmd.Flag("effect", "Filter by effect ID.").StringVar(&c.effectID)
	c.Cmd.Flag("limit", "Max number of tasks (0 means all).").Default("0").IntVar(&c.limit)
	addFormatFlag(c.Cmd, &c.format)

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := list.NewService(list.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	req := list.Request{
		EffectID: c.effectID,
		Limit:    c.limit,
	}
	if c.status != "" {
		s := model.TaskStatus(c.status)
		req.StatusFilter = &s
	}

	tasks, err := svc.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	p := c.rootCmd.newPrinter(c.format)
	if err := p.PrintTasks(tasks); err != nil {
		return fmt.Errorf("could not print tasks: %w", err)
	}

	return nil
}
