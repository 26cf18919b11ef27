package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// unmountCmd stops tracking a branch, repointing its children onto its
// former parent before removing it from the tree (spec §6.5, §4.5's
// unmount-then-delete sequencing).
type unmountCmd struct {
	globalFlags

	Branch string `arg:"" optional:"" help:"Branch to stop tracking. Defaults to the current branch."`
}

func (c *unmountCmd) Run(ctx context.Context, logger *log.Logger) error {
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
	tree := repoState.Tree

	parent, hasParent := tree.ParentOf(branch)
	if !hasParent {
		return fmt.Errorf("%s has no parent to repoint its children onto", branch)
	}

	for _, child := range tree.Children(branch) {
		if err := tree.Mount(ctx, app.adapter, child, parent); err != nil {
			return fmt.Errorf("repoint %s onto %s: %w", child, parent, err)
		}
	}

	if err := tree.DeleteBranch(branch); err != nil {
		return fmt.Errorf("unmount %s: %w", branch, err)
	}
	if err := app.saveState(doc, repoState); err != nil {
		return err
	}

	logger.Infof("unmounted %s, children repointed onto %s", branch, parent)
	return nil
}
