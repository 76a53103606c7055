package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/fxtask/internal/app/ack"
)

type AckCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
}

// NewAckCommand returns the ack command.
func NewAckCommand(rootCmd *RootCommand, app *kingpin.Application) *AckCommand {
	c := &AckCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("ack", "Acknowledge a finished task removing it from the history.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.taskID)

	return c
}

func (c AckCommand) Name() string { return c.Cmd.FullCommand() }

func (c AckCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := ack.NewService(ack.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	t, err := svc.Run(ctx, ack.Request{TaskID: c.taskID})
	if err != nil {
		return fmt.Errorf("could not acknowledge task: %w", err)
	}

	logger.Infof("Task %s acknowledged", t.ID)
	return nil
}
