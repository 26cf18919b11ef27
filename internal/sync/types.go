// Package sync implements SyncEngine: the five-stage reconciliation
// pipeline (Read, Model, Diff, Validate, Apply) that reconciles a
// repository's local stack tree, local refs, and remote PRs into a
// coherent state without losing user work.
//
// The pipeline's shape is grounded directly in the source program's
// sync module, whose own header describes it as "a Terraform-style staged
// workflow: 1. Read 2. Model 3. Diff 4. Validate 5. Apply" — this package
// follows that same staging, expressed in the teacher's idiom (explicit
// collaborators, typed errors, charmbracelet/log).
package sync

import (
	"time"

	"go.abhg.dev/gs-sync/internal/review"
)

// LocalBranch is one tracked branch as observed from the local tree and
// refs (spec §3 LocalState).
type LocalBranch struct {
	Parent         string
	PRNumber       int
	PushedToRemote bool
}

// LocalState is built by walking the stack tree at the start of a sync.
type LocalState struct {
	Trunk    string
	Branches map[string]LocalBranch
}

// RemotePR is a PR/MR as observed from the review service.
type RemotePR struct {
	Number int
	Base   string
	State  review.State
	Title  string
	URL    string
}

// RemoteState is built from the review client during Stage 1.
type RemoteState struct {
	OpenPRs   map[string]RemotePR // keyed by head branch
	ClosedPRs map[string]RemotePR // keyed by head branch
}

// TargetBranch is the reconciled, desired state for one branch (spec §3
// TargetState).
type TargetBranch struct {
	Parent         string
	PRNumber       int
	ExpectedPRBase string // "" if no PR should exist for this branch
	PushedToRemote bool
}

// TargetState is the output of Stage 3 (Model).
type TargetState struct {
	Branches map[string]TargetBranch
}

// DeleteReason names which branch-deletion strategy justified a
// DeleteLocalBranch change (spec §4.5).
type DeleteReason string

const (
	// SeenOnRemote: the branch's closed PR is Merged, its remote ref is
	// gone post-prune, and its local head SHA was observed in seenSHAs
	// (catches squash/rebase merges).
	SeenOnRemote DeleteReason = "seen_on_remote"

	// MergedIntoMain: branchesMerged(<remote>/trunk) listed the branch
	// (catches merge-commit merges).
	MergedIntoMain DeleteReason = "merged_into_main"
)

// MountBranch attaches name under parent, creating the node if absent.
type MountBranch struct {
	Name   string
	Parent string
}

// UpdatePRNumber caches a PR number against a branch.
type UpdatePRNumber struct {
	Branch string
	Number int
}

// UnmountBranch detaches name from the tree, repointing its children.
type UnmountBranch struct {
	Name              string
	RepointChildrenTo string
}

// DeleteLocalBranch removes a local branch ref entirely.
type DeleteLocalBranch struct {
	Name   string
	Reason DeleteReason
}

// RetargetPR changes an open PR's base branch.
type RetargetPR struct {
	Number  int
	Branch  string
	OldBase string
	NewBase string
}

// CreatePR opens a new PR for a pushed, PR-less branch.
type CreatePR struct {
	Branch string
	Base   string
	Title  string
}

// Plan is the output of Stage 4 (Diff): the full set of changes a sync
// invocation proposes.
type Plan struct {
	// MountBranches is topologically sorted: every parent's mount
	// precedes its children's.
	MountBranches       []MountBranch
	UpdatePRNumbers     []UpdatePRNumber
	UnmountBranches     []UnmountBranch
	DeleteLocalBranches []DeleteLocalBranch

	RetargetPRs []RetargetPR
	CreatePRs   []CreatePR

	Warnings []string
}

// IsEmpty reports whether the plan has no changes at all.
func (p *Plan) IsEmpty() bool {
	return len(p.MountBranches) == 0 &&
		len(p.UpdatePRNumbers) == 0 &&
		len(p.UnmountBranches) == 0 &&
		len(p.DeleteLocalBranches) == 0 &&
		len(p.RetargetPRs) == 0 &&
		len(p.CreatePRs) == 0
}

// Options configures a sync invocation (spec §4.5 Options).
type Options struct {
	// PushOnly suppresses local changes.
	PushOnly bool
	// PullOnly suppresses remote changes.
	PullOnly bool
	// DryRun prints the plan and skips Stage 6 (Apply).
	DryRun bool
	// SyncAuthors, if non-empty, restricts Stage 1's PR listing to PRs
	// authored by one of these logins (spec §4.2), in place of the
	// same-repo (non-fork) filter, which applies only when it is empty.
	SyncAuthors []string
	// GCBudget bounds seen-SHA garbage collection (default 100ms).
	GCBudget time.Duration
	// Persist, if non-nil, is called after every successful batch of
	// same-kind mutations during Apply (spec §5), so that an interrupted
	// sync is resumable from the last durable checkpoint. The sync
	// engine has no opinion on where state lives; the caller closes over
	// its own stack.Document/Store pair.
	Persist func() error
}
