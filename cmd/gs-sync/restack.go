package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"go.abhg.dev/gs-sync/internal/restack"
)

// restackCmd rebases tracked branches back onto their recorded parents,
// per spec §6.5.
type restackCmd struct {
	globalFlags

	Branch string `arg:"" optional:"" help:"Branch to restack up to. Defaults to the current branch."`
}

func (c *restackCmd) Run(ctx context.Context, logger *log.Logger) error {
	app, err := newApp(ctx, c.globalFlags, logger)
	if err != nil {
		return err
	}

	branch := c.Branch
	if branch == "" {
		branch, err = app.adapter.CurrentBranch(ctx)
		if err != nil {
			return fmt.Errorf("determine current branch: %w", err)
		}
	}

	_, repoState, err := app.loadState(c.Trunk)
	if err != nil {
		return err
	}

	pairs, err := repoState.Tree.PlanRestack(branch)
	if err != nil {
		return fmt.Errorf("plan restack for %s: %w", branch, err)
	}

	runVersion := strconv.FormatInt(time.Now().Unix(), 10)
	executor := restack.New(app.adapter, app.remote, runVersion, logger)

	results, err := executor.Run(ctx, branch, pairs)
	for _, r := range results {
		if r.FastPath {
			logger.Infof("%s: already up to date on %s", r.Pair.Child, r.Pair.Parent)
		} else {
			logger.Infof("%s: rebased onto %s (backup: %s)", r.Pair.Child, r.Pair.Parent, r.BackupRef)
		}
	}
	if err != nil {
		return fmt.Errorf("restack: %w", err)
	}
	return nil
}
