package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// newCmd creates a branch off the current branch (or an explicit parent)
// and starts tracking it, per spec §6.5.
type newCmd struct {
	globalFlags

	Name   string `arg:"" help:"Name of the branch to create."`
	Parent string `help:"Branch to create Name on top of. Defaults to the current branch."`
}

func (c *newCmd) Run(ctx context.Context, logger *log.Logger) error {
	app, err := newApp(ctx, c.globalFlags, logger)
	if err != nil {
		return err
	}

	parent := c.Parent
	if parent == "" {
		parent, err = app.adapter.CurrentBranch(ctx)
		if err != nil {
			return fmt.Errorf("determine current branch: %w", err)
		}
	}

	exists, err := app.adapter.BranchExists(ctx, c.Name)
	if err != nil {
		return fmt.Errorf("check branch %s: %w", c.Name, err)
	}
	if exists {
		return fmt.Errorf("branch %s already exists", c.Name)
	}

	if err := app.adapter.CreateOrResetBranch(ctx, c.Name, parent); err != nil {
		return fmt.Errorf("create branch %s: %w", c.Name, err)
	}
	if err := app.adapter.Checkout(ctx, c.Name); err != nil {
		return fmt.Errorf("checkout %s: %w", c.Name, err)
	}

	doc, repoState, err := app.loadState(c.Trunk)
	if err != nil {
		return err
	}
	if err := repoState.Tree.Mount(ctx, app.adapter, c.Name, parent); err != nil {
		return fmt.Errorf("track %s: %w", c.Name, err)
	}
	if err := app.saveState(doc, repoState); err != nil {
		return err
	}

	logger.Infof("created %s on top of %s", c.Name, parent)
	return nil
}
