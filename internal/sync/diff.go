package sync

import (
	"context"
	"sort"

	"go.abhg.dev/gs-sync/internal/review"
	"go.abhg.dev/gs-sync/internal/stack"
)

// diff implements Stage 4: walk TargetState vs LocalState vs RemoteState
// and produce a Plan (spec §4.5).
func (e *Engine) diff(state *pipelineState, opts Options) *Plan {
	plan := &Plan{}

	unmounted := make(map[string]bool)
	deleted := make(map[string]bool)

	if !opts.PushOnly {
		e.diffMounts(state.local, state.target, plan)
		e.diffPRNumbers(state.local, state.target, plan)
		e.diffUnmountsAndDeletes(state, plan, unmounted, deleted)
	}

	if !opts.PullOnly {
		e.diffRetargets(state, plan, unmounted)
		e.diffCreates(state, plan, unmounted, deleted)
	}

	return plan
}

type mountCandidate struct{ name, parent string }

// diffMounts emits MountBranch for target branches absent locally or with
// the wrong parent, in topological (Kahn's, ties broken by name) order.
func (e *Engine) diffMounts(local *LocalState, target *TargetState, plan *Plan) {
	var needed []mountCandidate
	isPending := make(map[string]bool)

	for name, tb := range target.Branches {
		lb, tracked := local.Branches[name]
		if !tracked || lb.Parent != tb.Parent {
			needed = append(needed, mountCandidate{name: name, parent: tb.Parent})
			isPending[name] = true
		}
	}
	if len(needed) == 0 {
		return
	}
	sort.Slice(needed, func(i, j int) bool { return needed[i].name < needed[j].name })

	byName := make(map[string]mountCandidate, len(needed))
	indegree := make(map[string]int, len(needed))
	children := make(map[string][]string)
	for _, c := range needed {
		byName[c.name] = c
	}
	for _, c := range needed {
		if isPending[c.parent] {
			indegree[c.name]++
			children[c.parent] = append(children[c.parent], c.name)
		}
	}
	for name := range children {
		sort.Strings(children[name])
	}

	var ready []string
	for _, c := range needed {
		if indegree[c.name] == 0 {
			ready = append(ready, c.name)
		}
	}

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, child := range children[name] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	for _, name := range order {
		c := byName[name]
		plan.MountBranches = append(plan.MountBranches, MountBranch{Name: c.name, Parent: c.parent})
	}
}

// diffPRNumbers emits UpdatePrNumber when the cached number disagrees with
// the target (remote-derived) number.
func (e *Engine) diffPRNumbers(local *LocalState, target *TargetState, plan *Plan) {
	var names []string
	for name := range target.Branches {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tb := target.Branches[name]
		if tb.PRNumber == 0 {
			continue
		}
		lb, tracked := local.Branches[name]
		if tracked && lb.PRNumber == tb.PRNumber {
			continue
		}
		plan.UpdatePRNumbers = append(plan.UpdatePRNumbers, UpdatePRNumber{Branch: name, Number: tb.PRNumber})
	}
}

// diffUnmountsAndDeletes emits UnmountBranch for branches whose PR was
// merged without a remaining open PR, RetargetPR for their children, and
// DeleteLocalBranch per the two cooperating deletion strategies.
func (e *Engine) diffUnmountsAndDeletes(state *pipelineState, plan *Plan, unmounted, deleted map[string]bool) {
	tree, local, remote := state.tree, state.local, state.remote

	var names []string
	for name := range local.Branches {
		names = append(names, name)
	}
	sort.Strings(names)

	current, _ := e.adapter.CurrentBranch(context.Background())

	for _, name := range names {
		lb := local.Branches[name]
		closedPR, hasClosed := remote.ClosedPRs[name]
		_, hasOpen := remote.OpenPRs[name]

		if !hasOpen && hasClosed && closedPR.State == review.Merged {
			repointTo := lb.Parent
			if repointTo == "" {
				repointTo = tree.Trunk()
			}
			plan.UnmountBranches = append(plan.UnmountBranches, UnmountBranch{Name: name, RepointChildrenTo: repointTo})
			unmounted[name] = true

			for _, child := range tree.Children(name) {
				if childOpen, ok := remote.OpenPRs[child]; ok && childOpen.Base == name {
					plan.RetargetPRs = append(plan.RetargetPRs, RetargetPR{
						Number: childOpen.Number, Branch: child, OldBase: name, NewBase: repointTo,
					})
				}
			}
		}

		if name == tree.Trunk() || name == current || deleted[name] {
			continue
		}

		if reason, shouldDelete := e.deletionReason(state, name); shouldDelete {
			plan.DeleteLocalBranches = append(plan.DeleteLocalBranches, DeleteLocalBranch{Name: name, Reason: reason})
			deleted[name] = true
		}
	}
}

// deletionReason evaluates the two cooperating branch-deletion strategies
// from spec §4.5. SeenOnRemote is checked first and wins ties.
func (e *Engine) deletionReason(state *pipelineState, name string) (DeleteReason, bool) {
	ctx := context.Background()

	closedPR, hasClosed := state.remote.ClosedPRs[name]
	remoteRefGone := false
	if ok, err := e.adapter.RefExists(ctx, "refs/remotes/"+e.remote+"/"+name); err == nil {
		remoteRefGone = !ok
	}

	if hasClosed && closedPR.State == review.Merged && remoteRefGone {
		if headSHA, err := e.adapter.SHA(ctx, name); err == nil {
			if _, seen := state.repo.SeenRemoteSHAs[string(headSHA)]; seen {
				return SeenOnRemote, true
			}
		}
	}

	merged, err := e.adapter.BranchesMerged(ctx, e.remote+"/"+state.tree.Trunk())
	if err == nil {
		for _, b := range merged {
			if b == name {
				return MergedIntoMain, true
			}
		}
	}

	return "", false
}

// diffRetargets emits RetargetPR for open PRs whose base no longer matches
// TargetState's expected base, skipping PRs whose head branch is unmounted
// in this same plan.
func (e *Engine) diffRetargets(state *pipelineState, plan *Plan, unmounted map[string]bool) {
	var names []string
	for name := range state.remote.OpenPRs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if unmounted[name] {
			continue
		}
		tb, ok := state.target.Branches[name]
		if !ok || tb.ExpectedPRBase == "" {
			continue
		}

		openPR := state.remote.OpenPRs[name]
		if openPR.Base == tb.ExpectedPRBase {
			continue
		}

		plan.RetargetPRs = append(plan.RetargetPRs, RetargetPR{
			Number: openPR.Number, Branch: name, OldBase: openPR.Base, NewBase: tb.ExpectedPRBase,
		})
	}
}

// diffCreates emits CreatePR for pushed, PR-less, non-merged branches that
// TargetState assigns an expected base, skipping any branch slated for
// deletion or unmount in this same plan.
func (e *Engine) diffCreates(state *pipelineState, plan *Plan, unmounted, deleted map[string]bool) {
	var names []string
	for name := range state.target.Branches {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if unmounted[name] || deleted[name] {
			continue
		}
		if _, hasClosed := state.remote.ClosedPRs[name]; hasClosed {
			continue
		}

		tb := state.target.Branches[name]
		if !tb.PushedToRemote || tb.PRNumber != 0 || tb.ExpectedPRBase == "" {
			continue
		}
		plan.CreatePRs = append(plan.CreatePRs, CreatePR{Branch: name, Base: tb.ExpectedPRBase})
	}
}

// pipelineState threads the data every diff stage needs without
// reconstructing it from scratch in each method.
type pipelineState struct {
	tree   *stack.Tree
	repo   *stack.RepoState
	local  *LocalState
	remote *RemoteState
	target *TargetState
}
