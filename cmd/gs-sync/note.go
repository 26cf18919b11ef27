package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// noteCmd sets or edits a tracked branch's free-form note. With --message
// it sets the note directly (like "git commit -m"); otherwise it opens
// $EDITOR on the current note and saves whatever's left behind.
type noteCmd struct {
	globalFlags

	Branch  string `arg:"" optional:"" help:"Branch to annotate. Defaults to the current branch."`
	Message string `short:"m" help:"Set the note to this text instead of opening an editor."`
	Editor  string `help:"Editor command to invoke. Defaults to $EDITOR, then vi."`
}

func (c *noteCmd) Run(ctx context.Context, logger *log.Logger) error {
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

	if c.Message != "" {
		if err := repoState.Tree.SetNote(branch, c.Message); err != nil {
			return fmt.Errorf("set note for %s: %w", branch, err)
		}
	} else {
		if err := repoState.Tree.EditNote(branch, c.Editor); err != nil {
			return fmt.Errorf("edit note for %s: %w", branch, err)
		}
	}

	if err := app.saveState(doc, repoState); err != nil {
		return err
	}

	logger.Infof("updated note for %s", branch)
	return nil
}
