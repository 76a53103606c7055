package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/fxtask/internal/app/results"
)

type ResultsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
	format string
}

// NewResultsCommand returns the results command.
func NewResultsCommand(rootCmd *RootCommand, app *kingpin.Application) *ResultsCommand {
	c := &ResultsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("results", "Fetch the result URLs of a succeeded task.")
	c.Cmd.Arg("task-id", "Backend task ID.").Required().StringVar(&c.taskID)
	addFormatFlag(c.Cmd, &c.format)

	return c
}

func (c ResultsCommand) Name() string { return c.Cmd.FullCommand() }

func (c ResultsCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	b, err := c.rootCmd.newBackend()
	if err != nil {
		return err
	}

	repo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := results.NewService(results.ServiceConfig{
		ResultFetcher: b,
		Repository:    repo,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	urls, err := svc.Run(ctx, results.Request{TaskID: c.taskID})
	if err != nil {
		return fmt.Errorf("could not get task results: %w", err)
	}

	p := c.rootCmd.newPrinter(c.format)
	if err := p.PrintResults(c.taskID, urls); err != nil {
		return fmt.Errorf("could not print results: %w", err)
	}

	return nil
}
