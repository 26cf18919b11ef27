package sync

import (
	"context"
	"fmt"

	"go.abhg.dev/gs-sync/internal/gitshim"
	"go.abhg.dev/gs-sync/internal/review"
	"go.abhg.dev/gs-sync/internal/stack"
)

// read implements Stage 1: fetch, build LocalState by walking the tree,
// and build RemoteState plus the set of all PR head SHAs observed.
func (e *Engine) read(ctx context.Context, repoID review.RepoID, state *stack.RepoState, closedCache review.Cache, opts Options) (*LocalState, *RemoteState, map[string]gitshim.Hash, error) {
	if err := e.adapter.FetchPrune(ctx, e.remote); err != nil {
		return nil, nil, nil, fmt.Errorf("fetch --prune %s: %w", e.remote, err)
	}

	tree := state.Tree
	local := &LocalState{Trunk: tree.Trunk(), Branches: make(map[string]LocalBranch)}
	e.walkTree(ctx, tree, tree.Trunk(), local)

	remote := &RemoteState{
		OpenPRs:   make(map[string]RemotePR),
		ClosedPRs: make(map[string]RemotePR),
	}
	seenSHAs := make(map[string]gitshim.Hash)

	openResult, err := e.review.ListPRs(ctx, repoID, review.Open, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list open PRs: %w", err)
	}
	filter := review.AuthorFilter{SyncAuthors: opts.SyncAuthors}
	baseRepo := repoID.Owner + "/" + repoID.Repo
	for _, pr := range openResult.PRs {
		if !filter.Keep(pr, baseRepo) {
			continue
		}
		remote.OpenPRs[pr.Head] = RemotePR{Number: pr.Number, Base: pr.Base, State: pr.State, Title: pr.Title, URL: pr.URL}
		if pr.Head == "" {
			continue
		}
		// The seen-SHA set tracks commit ids, not branch names, so a
		// later squash-merge (which rewrites history) can still be
		// recognized after the branch ref itself is gone. Resolve
		// through the remote-tracking ref so this reflects what the
		// remote actually has, not just the local branch tip; fall
		// back to the PR's last-reported head SHA if the ref can't be
		// resolved (e.g. already pruned).
		if sha, err := e.adapter.SHA(ctx, "refs/remotes/"+e.remote+"/"+pr.Head); err == nil {
			seenSHAs[pr.Head] = sha
		} else if pr.HeadSHA != "" {
			seenSHAs[pr.Head] = gitshim.Hash(pr.HeadSHA)
		}
	}

	closedResult, err := e.review.ListClosedPRsWithCache(ctx, repoID, closedCache, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list closed PRs: %w", err)
	}
	for _, pr := range closedResult.PRs {
		if !filter.Keep(pr, baseRepo) {
			continue
		}
		remote.ClosedPRs[pr.Head] = RemotePR{Number: pr.Number, Base: pr.Base, State: pr.State, Title: pr.Title, URL: pr.URL}
		if pr.Head == "" {
			continue
		}
		// A closed/merged PR's branch ref is typically already gone
		// by the time we observe it here (fetch --prune above just
		// removed it), so the PR's own recorded head SHA is the only
		// way to recognize the commit later — this is the whole
		// reason seenSHAs exists.
		if pr.HeadSHA != "" {
			seenSHAs[pr.Head] = gitshim.Hash(pr.HeadSHA)
		}
	}

	return local, remote, seenSHAs, nil
}

// walkTree populates local from the tree, marking pushedToRemote via a
// remote-ref existence check.
func (e *Engine) walkTree(ctx context.Context, tree *stack.Tree, branch string, local *LocalState) {
	for _, child := range tree.Children(branch) {
		parent, _ := tree.ParentOf(child)
		node, ok := tree.FindByName(child)
		if !ok {
			continue
		}

		pushed, err := e.adapter.RefExists(ctx, "refs/remotes/"+e.remote+"/"+child)
		if err != nil {
			pushed = false
		}

		local.Branches[child] = LocalBranch{
			Parent:         parent,
			PRNumber:       node.PRNumber,
			PushedToRemote: pushed,
		}

		e.walkTree(ctx, tree, child, local)
	}
}
