// Package gitshim defines the narrow capability surface that the sync
// engine and its collaborators use to talk to the underlying repository.
//
// Every operation is synchronous and fallible, mirroring the real git CLI's
// process-per-invocation model. Implementations may satisfy reads through
// in-process access to the object database, but this package only ships a
// CLI-backed one, matching the rest of this repository's ambient stack.
package gitshim

import "context"

// RemoteTriplet identifies a forge-hosted repository by the (host, owner,
// repo) extracted from a remote URL.
type RemoteTriplet struct {
	Host  string
	Owner string
	Repo  string
}

// LocalStatus reports working-tree status as counts, never as file lists:
// the sync engine only needs to know whether the tree is dirty.
type LocalStatus struct {
	Staged   int
	Unstaged int
	Untracked int
}

// RebaseRequest describes a rebase operation.
type RebaseRequest struct {
	// Onto is the new base commit or ref.
	Onto string
	// Upstream is the old base commit or ref; commits between Upstream
	// and Branch are replayed onto Onto.
	Upstream string
	// Branch is the branch being rebased. If empty, the current branch
	// is rebased.
	Branch string
}

// PushRequest describes a single ref update to push to the remote.
type PushRequest struct {
	// Branch is the local branch name to push.
	Branch string
	// Force requests a force-with-lease style push. Implementations map
	// this to whatever the underlying tool considers safe forcing.
	Force bool
}

// Adapter is the RepoAdapter capability surface described in the sync
// engine design: a thin, synchronous facade over the ref/commit store and
// working tree. Every higher layer (StackTree, RestackExecutor, SyncEngine)
// depends only on this interface, never on a concrete VCS binding.
type Adapter interface {
	// SHA resolves ref to a commit hash. Returns ErrNotExist if ref
	// cannot be resolved.
	SHA(ctx context.Context, ref string) (Hash, error)

	// IsAncestor reports whether a is an ancestor of (or equal to) b.
	IsAncestor(ctx context.Context, a, b Hash) (bool, error)

	// BranchExists reports whether a local branch with the given name
	// exists.
	BranchExists(ctx context.Context, name string) (bool, error)

	// RefExists reports whether a fully-qualified ref exists, e.g.
	// "refs/remotes/origin/feat-a".
	RefExists(ctx context.Context, fullRef string) (bool, error)

	// CurrentBranch reports the name of the currently checked out
	// branch.
	CurrentBranch(ctx context.Context) (string, error)

	// RemoteURL reports the configured URL of the named remote, parsed
	// into a host/owner/repo triplet. Accepts SSH (user@host:owner/repo),
	// HTTPS, and git-protocol remote URL forms.
	RemoteURL(ctx context.Context, remote string) (RemoteTriplet, error)

	// DiffStats reports the number of added and removed lines between
	// base and head.
	DiffStats(ctx context.Context, base, head string) (additions, deletions int, err error)

	// LocalStatus reports working tree status as counts.
	LocalStatus(ctx context.Context) (LocalStatus, error)

	// MergeBase reports the best common ancestor of a and b.
	MergeBase(ctx context.Context, a, b string) (Hash, error)

	// ForkPoint reports the point at which b diverged from a, using
	// reflog-assisted fork-point detection. Used as a restack fallback
	// when a branch's recorded base hash is no longer an ancestor of
	// its head.
	ForkPoint(ctx context.Context, a, b string) (Hash, error)

	// FetchPrune fetches from the named remote and prunes stale
	// remote-tracking refs.
	FetchPrune(ctx context.Context, remote string) error

	// Checkout switches the working tree to the named branch.
	Checkout(ctx context.Context, name string) error

	// CreateOrResetBranch creates name if it does not exist, or resets
	// it, to point at startRef. Does not touch the working tree.
	CreateOrResetBranch(ctx context.Context, name, startRef string) error

	// ForceBranch is an alias for CreateOrResetBranch kept distinct in
	// the interface for call sites that force a branch ref forward
	// without rebasing, as opposed to creating a fresh backup ref. The
	// restack fast path does not use it; it only pushes.
	ForceBranch(ctx context.Context, name, startRef string) error

	// Push pushes the given branch to the remote.
	Push(ctx context.Context, remote string, req PushRequest) error

	// Rebase performs a rebase in the working tree, checking the
	// requested branch out first if necessary.
	Rebase(ctx context.Context, req RebaseRequest) error

	// DeleteBranch deletes a local branch. If force is false, the
	// underlying tool may refuse to delete a branch with unmerged
	// commits.
	DeleteBranch(ctx context.Context, name string, force bool) error

	// BranchesMerged lists local branches that are ancestors of
	// intoRef, i.e. have been fully merged into it via a merge commit
	// or fast-forward.
	BranchesMerged(ctx context.Context, intoRef string) ([]string, error)

	// CommitSummary returns ref's commit subject line, with any
	// signature stripped. Used to derive a default PR title when a
	// branch has none recorded.
	CommitSummary(ctx context.Context, ref string) (string, error)
}
