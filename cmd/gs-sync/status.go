package main

import (
	"context"

	"github.com/charmbracelet/log"

	"go.abhg.dev/gs-sync/internal/sync"
)

// statusCmd shows the sync plan without applying it: always a dry run,
// and never persists anything (spec §6.5).
type statusCmd struct {
	globalFlags
}

func (c *statusCmd) Run(ctx context.Context, logger *log.Logger) error {
	app, err := newApp(ctx, c.globalFlags, logger)
	if err != nil {
		return err
	}

	_, repoState, err := app.loadState(c.Trunk)
	if err != nil {
		return err
	}

	closedCache, _, err := app.prCache()
	if err != nil {
		return err
	}

	engine := sync.New(app.adapter, app.review, app.remote, logger)
	result, err := engine.Sync(ctx, app.repoID, repoState, closedCache, sync.Options{
		DryRun:      true,
		SyncAuthors: app.syncAuthors,
	})
	if err != nil {
		return err
	}

	printPlan(logger, result.Plan)
	return nil
}
