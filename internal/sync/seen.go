package sync

import (
	"context"
	"math/rand/v2"
	"time"

	"go.abhg.dev/gs-sync/internal/gitshim"
	"go.abhg.dev/gs-sync/internal/stack"
)

// ingestSeenSHAs implements Stage 2's ingestion half: fold newly observed
// PR-head SHAs into state.SeenRemoteSHAs, keeping only those that are
// interesting — ancestors of some currently tracked branch tip, but not
// already merged into trunk.
func (e *Engine) ingestSeenSHAs(ctx context.Context, state *stack.RepoState, seen map[string]gitshim.Hash) {
	trunkRemote := e.remote + "/" + state.Tree.Trunk()

	for _, sha := range seen {
		key := string(sha)
		if _, ok := state.SeenRemoteSHAs[key]; ok {
			continue
		}

		isAncOfTrunk, err := e.adapter.IsAncestor(ctx, sha, gitshim.Hash(trunkRemote))
		if err == nil && isAncOfTrunk {
			continue // already merged, uninteresting
		}

		if e.isAncestorOfAnyTrackedTip(ctx, state.Tree, sha) {
			state.SeenRemoteSHAs[key] = struct{}{}
		}
	}
}

// gcSeenSHAs implements Stage 2's opportunistic garbage-collection half:
// within budget, shuffle the set for stochastic coverage and drop entries
// that are either ancestors of trunk or not an ancestor of any tracked
// branch tip.
func (e *Engine) gcSeenSHAs(ctx context.Context, state *stack.RepoState, budget time.Duration) {
	if len(state.SeenRemoteSHAs) == 0 {
		return
	}

	keys := make([]string, 0, len(state.SeenRemoteSHAs))
	for k := range state.SeenRemoteSHAs {
		keys = append(keys, k)
	}
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	trunkRemote := e.remote + "/" + state.Tree.Trunk()
	deadline := time.Now().Add(budget)

	for _, key := range keys {
		if time.Now().After(deadline) {
			break
		}

		sha := gitshim.Hash(key)
		isAncOfTrunk, err := e.adapter.IsAncestor(ctx, sha, gitshim.Hash(trunkRemote))
		if err == nil && isAncOfTrunk {
			delete(state.SeenRemoteSHAs, key)
			continue
		}

		if !e.isAncestorOfAnyTrackedTip(ctx, state.Tree, sha) {
			delete(state.SeenRemoteSHAs, key)
		}
	}
}

func (e *Engine) isAncestorOfAnyTrackedTip(ctx context.Context, tree *stack.Tree, sha gitshim.Hash) bool {
	var walk func(branch string) bool
	walk = func(branch string) bool {
		headSHA, err := e.adapter.SHA(ctx, branch)
		if err == nil {
			if isAnc, err := e.adapter.IsAncestor(ctx, sha, headSHA); err == nil && isAnc {
				return true
			}
		}
		for _, child := range tree.Children(branch) {
			if walk(child) {
				return true
			}
		}
		return false
	}
	return walk(tree.Trunk())
}
