// Package gitshimtest provides an in-memory fake implementing
// gitshim.Adapter, in the same spirit as the teacher repository's
// forge/shamhub fake forge server: a hand-written stand-in over the real
// interface, not a generated mock, so that sync/restack/stack tests can
// exercise real control flow without a working tree on disk.
package gitshimtest

import (
	"context"
	"fmt"
	"strings"

	"go.abhg.dev/gs-sync/internal/gitshim"
)

type commit struct {
	parent  gitshim.Hash
	summary string
}

// Fake is an in-memory repository: a commit DAG (single-parent, since this
// system never represents history through merge commits inside stacks,
// per spec.md's Non-goals) plus local branches and remote-tracking refs.
type Fake struct {
	commits map[gitshim.Hash]*commit
	order   []gitshim.Hash // insertion order, for deterministic genesis walks

	branches   map[string]gitshim.Hash
	remoteRefs map[string]gitshim.Hash

	current string
	next    int

	// RebaseConflict, if non-empty, names a branch whose next Rebase
	// call will fail, simulating a conflict.
	RebaseConflict string

	DiffAdditions map[string]int
	DiffDeletions map[string]int
}

// New returns a Fake with a single genesis commit checked out as trunk.
func New(trunk string) *Fake {
	f := &Fake{
		commits:       make(map[gitshim.Hash]*commit),
		branches:      make(map[string]gitshim.Hash),
		remoteRefs:    make(map[string]gitshim.Hash),
		current:       trunk,
		DiffAdditions: make(map[string]int),
		DiffDeletions: make(map[string]int),
	}
	genesis := f.Commit("")
	f.branches[trunk] = genesis
	return f
}

var _ gitshim.Adapter = (*Fake)(nil)

// Commit creates a new synthetic commit with the given parent hash (empty
// for a root commit) and returns its hash.
func (f *Fake) Commit(parent gitshim.Hash) gitshim.Hash {
	f.next++
	h := gitshim.Hash(fmt.Sprintf("c%d", f.next))
	f.commits[h] = &commit{parent: parent, summary: fmt.Sprintf("commit %d", f.next)}
	f.order = append(f.order, h)
	return h
}

// SetCommitSummary overrides a commit's subject line, for tests exercising
// PR-title derivation.
func (f *Fake) SetCommitSummary(h gitshim.Hash, summary string) {
	if c, ok := f.commits[h]; ok {
		c.summary = summary
	}
}

// SetBranch points a local branch at a commit, creating the branch if
// necessary.
func (f *Fake) SetBranch(name string, h gitshim.Hash) { f.branches[name] = h }

// SetRemoteBranch points "<remote>/<name>" at a commit, creating the
// remote-tracking ref if necessary.
func (f *Fake) SetRemoteBranch(remote, name string, h gitshim.Hash) {
	f.remoteRefs[remoteRef(remote, name)] = h
}

// DeleteRemoteBranch removes a remote-tracking ref, simulating what
// FetchPrune would do after the branch was deleted upstream.
func (f *Fake) DeleteRemoteBranch(remote, name string) {
	delete(f.remoteRefs, remoteRef(remote, name))
}

func remoteRef(remote, name string) string {
	return "refs/remotes/" + remote + "/" + name
}

func (f *Fake) resolve(ref string) (gitshim.Hash, bool) {
	if h, ok := f.commits[gitshim.Hash(ref)]; ok {
		_ = h
		return gitshim.Hash(ref), true
	}
	if strings.HasPrefix(ref, "refs/") {
		h, ok := f.remoteRefs[ref]
		return h, ok
	}
	if h, ok := f.branches[ref]; ok {
		return h, true
	}
	// Accept "<remote>/<branch>" shorthand as well as the full ref form.
	if idx := strings.Index(ref, "/"); idx >= 0 {
		h, ok := f.remoteRefs["refs/remotes/"+ref]
		return h, ok
	}
	return "", false
}

func (f *Fake) SHA(_ context.Context, ref string) (gitshim.Hash, error) {
	h, ok := f.resolve(ref)
	if !ok {
		return "", gitshim.ErrNotExist
	}
	return h, nil
}

func (f *Fake) IsAncestor(_ context.Context, a, b gitshim.Hash) (bool, error) {
	// Real git accepts branch names anywhere a commit-ish is expected;
	// mirror that by resolving names that aren't already commit hashes.
	if _, ok := f.commits[a]; !ok {
		if resolved, ok := f.resolve(string(a)); ok {
			a = resolved
		}
	}
	if _, ok := f.commits[b]; !ok {
		if resolved, ok := f.resolve(string(b)); ok {
			b = resolved
		}
	}

	if a == b {
		return true, nil
	}
	for cur := b; cur != ""; {
		c, ok := f.commits[cur]
		if !ok {
			return false, nil
		}
		if c.parent == a {
			return true, nil
		}
		cur = c.parent
	}
	return false, nil
}

func (f *Fake) BranchExists(_ context.Context, name string) (bool, error) {
	_, ok := f.branches[name]
	return ok, nil
}

func (f *Fake) RefExists(_ context.Context, fullRef string) (bool, error) {
	_, ok := f.remoteRefs[fullRef]
	return ok, nil
}

func (f *Fake) CurrentBranch(_ context.Context) (string, error) {
	return f.current, nil
}

func (f *Fake) RemoteURL(_ context.Context, _ string) (gitshim.RemoteTriplet, error) {
	return gitshim.RemoteTriplet{Host: "example.com", Owner: "acme", Repo: "widgets"}, nil
}

func (f *Fake) DiffStats(_ context.Context, _, head string) (int, int, error) {
	return f.DiffAdditions[head], f.DiffDeletions[head], nil
}

func (f *Fake) LocalStatus(_ context.Context) (gitshim.LocalStatus, error) {
	return gitshim.LocalStatus{}, nil
}

func (f *Fake) MergeBase(_ context.Context, a, b string) (gitshim.Hash, error) {
	ah, ok := f.resolve(a)
	if !ok {
		return "", gitshim.ErrNotExist
	}
	bh, ok := f.resolve(b)
	if !ok {
		return "", gitshim.ErrNotExist
	}

	ancestors := map[gitshim.Hash]bool{}
	for cur := ah; cur != ""; {
		ancestors[cur] = true
		c, ok := f.commits[cur]
		if !ok {
			break
		}
		cur = c.parent
	}
	for cur := bh; cur != ""; {
		if ancestors[cur] {
			return cur, nil
		}
		c, ok := f.commits[cur]
		if !ok {
			break
		}
		cur = c.parent
	}
	return "", gitshim.ErrNotExist
}

func (f *Fake) ForkPoint(ctx context.Context, a, b string) (gitshim.Hash, error) {
	return f.MergeBase(ctx, a, b)
}

func (f *Fake) FetchPrune(_ context.Context, _ string) error { return nil }

func (f *Fake) Checkout(_ context.Context, name string) error {
	if _, ok := f.branches[name]; !ok {
		return fmt.Errorf("checkout %s: %w", name, gitshim.ErrNotExist)
	}
	f.current = name
	return nil
}

func (f *Fake) CreateOrResetBranch(_ context.Context, name, startRef string) error {
	h, ok := f.resolve(startRef)
	if !ok {
		return fmt.Errorf("create branch %s: start ref %s: %w", name, startRef, gitshim.ErrNotExist)
	}
	f.branches[name] = h
	return nil
}

func (f *Fake) ForceBranch(ctx context.Context, name, startRef string) error {
	return f.CreateOrResetBranch(ctx, name, startRef)
}

func (f *Fake) Push(_ context.Context, remote string, req gitshim.PushRequest) error {
	h, ok := f.branches[req.Branch]
	if !ok {
		return fmt.Errorf("push %s: %w", req.Branch, gitshim.ErrNotExist)
	}
	f.remoteRefs[remoteRef(remote, req.Branch)] = h
	return nil
}

func (f *Fake) Rebase(_ context.Context, req gitshim.RebaseRequest) error {
	if req.Branch != "" {
		f.current = req.Branch
	}
	if f.RebaseConflict != "" && f.RebaseConflict == req.Branch {
		return fmt.Errorf("conflict rebasing %s onto %s", req.Branch, req.Onto)
	}
	onto, ok := f.resolve(req.Onto)
	if !ok {
		return fmt.Errorf("rebase: onto %s: %w", req.Onto, gitshim.ErrNotExist)
	}
	// Simulate a successful rebase by creating one new commit on top of
	// onto representing the replayed branch content.
	h := f.Commit(onto)
	f.branches[req.Branch] = h
	return nil
}

func (f *Fake) DeleteBranch(_ context.Context, name string, _ bool) error {
	if _, ok := f.branches[name]; !ok {
		return fmt.Errorf("delete branch %s: %w", name, gitshim.ErrNotExist)
	}
	delete(f.branches, name)
	return nil
}

func (f *Fake) CommitSummary(_ context.Context, ref string) (string, error) {
	h, ok := f.resolve(ref)
	if !ok {
		return "", fmt.Errorf("commit summary %s: %w", ref, gitshim.ErrNotExist)
	}
	c, ok := f.commits[h]
	if !ok {
		return "", fmt.Errorf("commit summary %s: %w", ref, gitshim.ErrNotExist)
	}
	return c.summary, nil
}

func (f *Fake) BranchesMerged(ctx context.Context, intoRef string) ([]string, error) {
	into, ok := f.resolve(intoRef)
	if !ok {
		return nil, fmt.Errorf("branches merged: %w", gitshim.ErrNotExist)
	}
	var names []string
	for name, h := range f.branches {
		isAnc, err := f.IsAncestor(ctx, h, into)
		if err != nil {
			return nil, err
		}
		if isAnc {
			names = append(names, name)
		}
	}
	return names, nil
}
