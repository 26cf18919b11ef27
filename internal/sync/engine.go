package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"go.abhg.dev/gs-sync/internal/gitshim"
	"go.abhg.dev/gs-sync/internal/review"
	"go.abhg.dev/gs-sync/internal/stack"
)

const defaultGCBudget = 100 * time.Millisecond

// Engine reconciles one repository's local stack tree, local refs, and
// remote PRs (spec §4.5).
type Engine struct {
	adapter gitshim.Adapter
	review  review.Client
	remote  string
	log     *log.Logger
}

// New returns an Engine.
func New(adapter gitshim.Adapter, reviewClient review.Client, remote string, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{adapter: adapter, review: reviewClient, remote: remote, log: logger}
}

// Result is the outcome of one Sync invocation: the plan that was built
// and (if applied) the apply report.
type Result struct {
	Plan    *Plan
	Applied *ApplyReport
}

// Sync runs the full pipeline against state for repository repoID,
// mutating state.Tree and state.SeenRemoteSHAs in place as it progresses.
// The caller is responsible for persisting state (via stack.Document.Put
// and Store.Save) after Sync returns; during Apply, Options.Persist (if
// set) is called after each batch for finer-grained durability.
func (e *Engine) Sync(ctx context.Context, repoID review.RepoID, state *stack.RepoState, closedCache review.Cache, opts Options) (*Result, error) {
	if opts.GCBudget == 0 {
		opts.GCBudget = defaultGCBudget
	}

	local, remote, seenSHAs, err := e.read(ctx, repoID, state, closedCache, opts)
	if err != nil {
		return nil, fmt.Errorf("read stage: %w", err)
	}

	e.ingestSeenSHAs(ctx, state, seenSHAs)
	e.gcSeenSHAs(ctx, state, opts.GCBudget)

	target := e.model(local, remote)

	ps := &pipelineState{tree: state.Tree, repo: state, local: local, remote: remote, target: target}
	plan := e.diff(ps, opts)

	e.validate(plan)

	result := &Result{Plan: plan}

	if opts.DryRun {
		return result, nil
	}

	applied, err := e.apply(ctx, repoID, state, plan, opts)
	result.Applied = applied
	if err != nil {
		return result, fmt.Errorf("apply stage: %w", err)
	}

	return result, nil
}
