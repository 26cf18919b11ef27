// Package restack implements RestackExecutor: walking a planned chain of
// (parent, child) pairs and bringing each child branch back on top of its
// parent, fast-forwarding when possible and rebasing (with a backup ref)
// otherwise.
package restack

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"go.abhg.dev/gs-sync/internal/gitshim"
	"go.abhg.dev/gs-sync/internal/stack"
)

// ConflictError halts a restack chain: the rebase of Branch onto Parent
// produced a conflict the user must resolve by hand.
type ConflictError struct {
	Branch string
	Parent string
	Err    error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("rebase of %s onto %s stopped with a conflict: %v", e.Branch, e.Parent, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// BranchMissingError indicates the requested branch has no resolvable SHA,
// most likely because it no longer exists.
type BranchMissingError struct {
	Branch string
	Err    error
}

func (e *BranchMissingError) Error() string {
	return fmt.Sprintf("branch %q does not exist: %v", e.Branch, e.Err)
}

func (e *BranchMissingError) Unwrap() error { return e.Err }

// StepResult describes the outcome of restacking a single (parent, child)
// pair.
type StepResult struct {
	Pair      stack.RestackPair
	FastPath  bool
	BackupRef string // set only on the slow path, even if the backup failed
}

// Executor performs restacks against a RepoAdapter.
type Executor struct {
	adapter    gitshim.Adapter
	remote     string
	runVersion string
	log        *log.Logger
}

// New returns an Executor. runVersion is embedded in backup ref names
// (e.g. "<branch>-at-<runVersion>") so repeated runs don't collide.
func New(adapter gitshim.Adapter, remote, runVersion string, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{adapter: adapter, remote: remote, runVersion: runVersion, log: logger}
}

// Run walks pairs top-down, restacking each child onto its (possibly
// freshly restacked) parent, then checks out startingBranch. It stops at
// the first conflict, returning the results gathered so far alongside the
// error.
func (e *Executor) Run(ctx context.Context, startingBranch string, pairs []stack.RestackPair) ([]StepResult, error) {
	var results []StepResult

	for _, pair := range pairs {
		res, err := e.step(ctx, pair)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	if err := e.adapter.Checkout(ctx, startingBranch); err != nil {
		return results, fmt.Errorf("checkout %s: %w", startingBranch, err)
	}
	return results, nil
}

func (e *Executor) step(ctx context.Context, pair stack.RestackPair) (StepResult, error) {
	childSHA, err := e.adapter.SHA(ctx, pair.Child)
	if err != nil {
		return StepResult{}, &BranchMissingError{Branch: pair.Child, Err: err}
	}

	isAnc, err := e.adapter.IsAncestor(ctx, gitshim.Hash(pair.Parent), childSHA)
	if err != nil {
		return StepResult{}, fmt.Errorf("check ancestry of %s on %s: %w", pair.Child, pair.Parent, err)
	}

	if isAnc {
		e.log.Debug("already up to date", "branch", pair.Child, "base", pair.Parent)
		if err := e.adapter.Push(ctx, e.remote, gitshim.PushRequest{Branch: pair.Child, Force: true}); err != nil {
			return StepResult{}, fmt.Errorf("push %s: %w", pair.Child, err)
		}
		return StepResult{Pair: pair, FastPath: true}, nil
	}

	upstream, err := ForkPointUpstream(ctx, e.adapter, pair.Parent, pair.Child, pair.LKGParent)
	if err != nil {
		return StepResult{}, fmt.Errorf("resolve upstream for %s: %w", pair.Child, err)
	}

	backupRef := fmt.Sprintf("%s-at-%s", pair.Child, e.runVersion)
	if err := e.adapter.CreateOrResetBranch(ctx, backupRef, pair.Child); err != nil {
		e.log.Warn("could not create backup ref, continuing anyway", "ref", backupRef, "err", err)
		backupRef = ""
	}

	if err := e.adapter.Checkout(ctx, pair.Child); err != nil {
		return StepResult{}, fmt.Errorf("checkout %s: %w", pair.Child, err)
	}

	rebaseErr := e.adapter.Rebase(ctx, gitshim.RebaseRequest{
		Onto:     pair.Parent,
		Upstream: string(upstream),
		Branch:   pair.Child,
	})
	if rebaseErr != nil {
		return StepResult{BackupRef: backupRef}, &ConflictError{Branch: pair.Child, Parent: pair.Parent, Err: rebaseErr}
	}

	return StepResult{Pair: pair, BackupRef: backupRef}, nil
}

// ForkPointUpstream resolves the upstream commit to rebase from. It
// returns recordedUpstream when that is an ancestor of the branch head;
// otherwise the fork point between parent and branch; and when no fork
// point exists, recordedUpstream if it is set, else parent itself.
func ForkPointUpstream(ctx context.Context, adapter gitshim.Adapter, parent, branch string, recordedUpstream gitshim.Hash) (gitshim.Hash, error) {
	headSHA, err := adapter.SHA(ctx, branch)
	if err != nil {
		return "", err
	}

	if recordedUpstream != "" {
		isAnc, err := adapter.IsAncestor(ctx, recordedUpstream, headSHA)
		if err == nil && isAnc {
			return recordedUpstream, nil
		}
	}

	forkPoint, err := adapter.ForkPoint(ctx, parent, branch)
	if err != nil {
		if errors.Is(err, gitshim.ErrNotExist) {
			if recordedUpstream != "" {
				return recordedUpstream, nil
			}
			// No recorded upstream and no resolvable fork point:
			// fall back to parent itself so the rebase invocation
			// still gets a valid revision, even though it replays
			// nothing beyond what's already shared with parent.
			return gitshim.Hash(parent), nil
		}
		return "", fmt.Errorf("fork point of %s from %s: %w", branch, parent, err)
	}
	return forkPoint, nil
}
