package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// addCmd starts tracking a branch that already exists locally, per spec
// §6.5 — the local counterpart of mount for branches gs-sync didn't
// itself create.
type addCmd struct {
	globalFlags

	Name   string `arg:"" help:"Name of the existing branch to track."`
	Parent string `help:"Branch Name should be tracked under. Defaults to trunk."`
}

func (c *addCmd) Run(ctx context.Context, logger *log.Logger) error {
	app, err := newApp(ctx, c.globalFlags, logger)
	if err != nil {
		return err
	}

	exists, err := app.adapter.BranchExists(ctx, c.Name)
	if err != nil {
		return fmt.Errorf("check branch %s: %w", c.Name, err)
	}
	if !exists {
		return fmt.Errorf("branch %s does not exist", c.Name)
	}

	doc, repoState, err := app.loadState(c.Trunk)
	if err != nil {
		return err
	}

	parent := c.Parent
	if parent == "" {
		parent = repoState.Tree.Trunk()
	}

	if err := repoState.Tree.Mount(ctx, app.adapter, c.Name, parent); err != nil {
		return fmt.Errorf("track %s: %w", c.Name, err)
	}
	if err := app.saveState(doc, repoState); err != nil {
		return err
	}

	logger.Infof("now tracking %s under %s", c.Name, parent)
	return nil
}
