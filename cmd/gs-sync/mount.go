package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// mountCmd re-parents a tracked branch under a new parent, per spec
// §6.5. It does not touch git refs; the next sync or restack reconciles
// the working tree to match.
type mountCmd struct {
	globalFlags

	Branch string `arg:"" optional:"" help:"Branch to mount. Defaults to the current branch."`
	Parent string `arg:"" optional:"" help:"New parent branch. Defaults to trunk."`
}

func (c *mountCmd) Run(ctx context.Context, logger *log.Logger) error {
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

	doc, repoState, err := app.loadState(c.Trunk)
	if err != nil {
		return err
	}

	parent := c.Parent
	if parent == "" {
		parent = repoState.Tree.Trunk()
	}

	if err := repoState.Tree.Mount(ctx, app.adapter, branch, parent); err != nil {
		return fmt.Errorf("mount %s on %s: %w", branch, parent, err)
	}
	if err := app.saveState(doc, repoState); err != nil {
		return err
	}

	logger.Infof("mounted %s on %s", branch, parent)
	return nil
}
