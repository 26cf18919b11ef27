package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"go.abhg.dev/gs-sync/internal/sync"
)

// syncCmd reconciles the local stack against its pull requests, per spec
// §6.5: read, model, diff, validate, and (unless told otherwise) apply.
type syncCmd struct {
	globalFlags

	PushOnly bool `help:"Only push local changes; skip pulling remote updates."`
	PullOnly bool `help:"Only pull remote updates; skip pushing local changes."`
	DryRun   bool `help:"Print the plan without applying it."`
}

func (c *syncCmd) Run(ctx context.Context, logger *log.Logger) error {
	app, err := newApp(ctx, c.globalFlags, logger)
	if err != nil {
		return err
	}

	doc, repoState, err := app.loadState(c.Trunk)
	if err != nil {
		return err
	}

	closedCache, saveCache, err := app.prCache()
	if err != nil {
		return err
	}

	engine := sync.New(app.adapter, app.review, app.remote, logger)
	result, err := engine.Sync(ctx, app.repoID, repoState, closedCache, sync.Options{
		PushOnly:    c.PushOnly,
		PullOnly:    c.PullOnly,
		DryRun:      c.DryRun,
		SyncAuthors: app.syncAuthors,
		Persist: func() error {
			return app.saveState(doc, repoState)
		},
	})
	if err != nil {
		return err
	}

	printPlan(logger, result.Plan)

	if err := app.saveState(doc, repoState); err != nil {
		return err
	}
	if err := saveCache(); err != nil {
		logger.Warnf("save PR cache: %v", err)
	}

	if c.DryRun {
		return nil
	}
	printApplied(logger, result.Applied)
	return nil
}

func printPlan(logger *log.Logger, plan *sync.Plan) {
	if plan.IsEmpty() {
		logger.Info("nothing to do")
		return
	}

	for _, m := range plan.MountBranches {
		fmt.Printf("mount %s -> %s\n", m.Name, m.Parent)
	}
	for _, u := range plan.UpdatePRNumbers {
		fmt.Printf("update pr number: %s -> #%d\n", u.Branch, u.Number)
	}
	for _, u := range plan.UnmountBranches {
		fmt.Printf("unmount %s (children -> %s)\n", u.Name, u.RepointChildrenTo)
	}
	for _, d := range plan.DeleteLocalBranches {
		fmt.Printf("delete local branch %s (%s)\n", d.Name, d.Reason)
	}
	for _, r := range plan.RetargetPRs {
		fmt.Printf("retarget #%d: %s -> %s\n", r.Number, r.OldBase, r.NewBase)
	}
	for _, c := range plan.CreatePRs {
		fmt.Printf("create pr for %s against %s: %q\n", c.Branch, c.Base, c.Title)
	}
	for _, w := range plan.Warnings {
		logger.Warn(w)
	}
}

func printApplied(logger *log.Logger, report *sync.ApplyReport) {
	if report == nil {
		return
	}
	for _, b := range report.MountedBranches {
		logger.Infof("mounted %s", b)
	}
	for _, b := range report.UpdatedPRNumbers {
		logger.Infof("updated pr number for %s", b)
	}
	for _, b := range report.UnmountedBranches {
		logger.Infof("unmounted %s", b)
	}
	for _, b := range report.DeletedBranches {
		logger.Infof("deleted %s", b)
	}
	for _, n := range report.RetargetedPRs {
		logger.Infof("retargeted #%d", n)
	}
	for _, pr := range report.CreatedPRs {
		logger.Infof("created #%d for %s", pr.Number, pr.Branch)
	}
}
