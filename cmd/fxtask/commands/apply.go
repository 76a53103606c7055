package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/fxtask/internal/app/apply"
	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/printer"
	storageio "github.com/slok/fxtask/internal/storage/io"
	"github.com/slok/fxtask/internal/task"
	"github.com/slok/fxtask/internal/utils/params"
)

type ApplyCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file       string
	paramSpecs []string
	wait       bool
	format     string
}

// NewApplyCommand returns the apply command.
func NewApplyCommand(rootCmd *RootCommand, app *kingpin.Application) *ApplyCommand {
	c := &ApplyCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("apply", "Apply an AI effect described in a YAML file and track the task.")
	c.Cmd.Flag("file", "Effect request YAML file.").Short('f').Required().StringVar(&c.file)
	c.Cmd.Flag("param", "Effect parameter in key=value format overriding the file ones (repeatable).").Short('p').StringsVar(&c.paramSpecs)
	c.Cmd.Flag("wait", "Wait for the task to finish (--no-wait returns after submitting).").Default("true").BoolVar(&c.wait)
	addFormatFlag(c.Cmd, &c.format)

	return c
}

func (c ApplyCommand) Name() string { return c.Cmd.FullCommand() }

func (c ApplyCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	absPath, err := filepath.Abs(c.file)
	if err != nil {
		return fmt.Errorf("could not resolve %q: %w", c.file, err)
	}
	loader := storageio.NewEffectRequestYAMLRepository(os.DirFS("/"))
	req, err := loader.GetEffectRequest(ctx, strings.TrimPrefix(filepath.ToSlash(absPath), "/"))
	if err != nil {
		return fmt.Errorf("could not load effect request: %w", err)
	}
	overrides, err := params.ParseSpecs(c.paramSpecs)
	if err != nil {
		return fmt.Errorf("invalid effect parameters: %w", err)
	}
	req.Parameters = params.MergeMaps(req.Parameters, overrides)
	for _, img := range req.Images {
		if img.IsRaw() {
			logger.WithValues(log.Kv{"param": img.Param, "file": img.Filename}).Infof("Uploading image (%s)", printer.FormatBytes(int64(len(img.Data))))
		}
	}

	b, err := c.rootCmd.newBackend()
	if err != nil {
		return err
	}

	repo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	manager, err := task.NewManager(task.ManagerConfig{
		Submitter:       b,
		Poller:          b,
		ResultFetcher:   b,
		Canceller:       b,
		Repository:      repo,
		PollInterval:    c.rootCmd.PollInterval,
		MaxPollAttempts: c.rootCmd.MaxPollAttempts,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task manager: %w", err)
	}
	defer manager.Close()

	svc, err := apply.NewService(apply.ServiceConfig{
		Manager: manager,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	applyReq := apply.Request{
		EffectRequest: req,
		Wait:          c.wait,
	}
	bar := printer.NewProgressBar(c.rootCmd.Stderr)
	if c.wait && c.format == "table" {
		applyReq.OnProgress = bar.Update
	}

	t, err := svc.Run(ctx, applyReq)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("could not apply effect: %w", err)
	}

	p := c.rootCmd.newPrinter(c.format)
	if err := p.PrintTask(*t); err != nil {
		return fmt.Errorf("could not print task: %w", err)
	}

	return t.Err()
}
