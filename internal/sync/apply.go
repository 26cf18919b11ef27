package sync

import (
	"context"
	"errors"
	"fmt"

	"go.abhg.dev/gs-sync/internal/review"
	"go.abhg.dev/gs-sync/internal/stack"
)

// CreatedPR records one PR opened during Apply.
type CreatedPR struct {
	Branch string
	Number int
	URL    string
}

// ApplyReport tallies the changes Stage 6 actually carried out, as
// opposed to Plan's proposal of what it intended to do. A short apply
// (one that stopped on an error) still returns a report describing
// everything that succeeded before the failure.
type ApplyReport struct {
	MountedBranches   []string
	UpdatedPRNumbers  []string
	UnmountedBranches []string
	DeletedBranches   []string
	RetargetedPRs     []int
	CreatedPRs        []CreatedPR
}

// apply implements Stage 6 (spec §4.5, §5): local changes first — mounts
// in topological order, then PR-number updates, then unmounts, then
// deletions — persisting after each batch, followed by remote changes
// (retargets, then creates), persisting again. Each batch is applied
// fully or stops at the first error, leaving state internally consistent
// either way: every mutation here is individually idempotent, so a sync
// interrupted mid-batch is safe to simply run again.
func (e *Engine) apply(ctx context.Context, repoID review.RepoID, state *stack.RepoState, plan *Plan, opts Options) (*ApplyReport, error) {
	report := &ApplyReport{}

	if err := e.applyMounts(ctx, state.Tree, plan, report); err != nil {
		e.persist(opts)
		return report, err
	}
	if err := e.persist(opts); err != nil {
		return report, fmt.Errorf("persist after mounts: %w", err)
	}
	if err := e.applyPRNumbers(state.Tree, plan, report); err != nil {
		e.persist(opts)
		return report, err
	}
	if err := e.persist(opts); err != nil {
		return report, fmt.Errorf("persist after PR-number updates: %w", err)
	}
	if err := e.applyUnmounts(state.Tree, plan, report); err != nil {
		e.persist(opts)
		return report, err
	}
	if err := e.persist(opts); err != nil {
		return report, fmt.Errorf("persist after unmounts: %w", err)
	}
	if err := e.applyDeletions(ctx, state.Tree, plan, report); err != nil {
		e.persist(opts)
		return report, err
	}
	if err := e.persist(opts); err != nil {
		return report, fmt.Errorf("persist after local changes: %w", err)
	}

	if err := e.applyRetargets(ctx, repoID, plan, report); err != nil {
		e.persist(opts)
		return report, err
	}
	if err := e.persist(opts); err != nil {
		return report, fmt.Errorf("persist after retargets: %w", err)
	}
	if err := e.applyCreates(ctx, repoID, state.Tree, plan, report); err != nil {
		e.persist(opts)
		return report, err
	}
	if err := e.persist(opts); err != nil {
		return report, fmt.Errorf("persist after remote changes: %w", err)
	}

	return report, nil
}

func (e *Engine) persist(opts Options) error {
	if opts.Persist == nil {
		return nil
	}
	return opts.Persist()
}

func (e *Engine) applyMounts(ctx context.Context, tree *stack.Tree, plan *Plan, report *ApplyReport) error {
	for _, m := range plan.MountBranches {
		if err := tree.Mount(ctx, e.adapter, m.Name, m.Parent); err != nil {
			return fmt.Errorf("mount %s onto %s: %w", m.Name, m.Parent, err)
		}
		report.MountedBranches = append(report.MountedBranches, m.Name)
	}
	return nil
}

func (e *Engine) applyPRNumbers(tree *stack.Tree, plan *Plan, report *ApplyReport) error {
	for _, u := range plan.UpdatePRNumbers {
		node, ok := tree.FindByName(u.Branch)
		if !ok {
			return fmt.Errorf("update PR number for %s: %w", u.Branch, stack.ErrNotFound)
		}
		node.PRNumber = u.Number
		report.UpdatedPRNumbers = append(report.UpdatedPRNumbers, u.Branch)
	}
	return nil
}

// applyUnmounts detaches each unmounted branch from the tree, repointing
// its current children to RepointChildrenTo first. It does not touch the
// underlying git ref; DeleteLocalBranch (applyDeletions) handles that.
func (e *Engine) applyUnmounts(tree *stack.Tree, plan *Plan, report *ApplyReport) error {
	for _, um := range plan.UnmountBranches {
		if !tree.BranchExistsInTree(um.Name) {
			continue // already detached by a prior, interrupted run
		}
		for _, child := range tree.Children(um.Name) {
			if err := tree.Mount(context.Background(), nil, child, um.RepointChildrenTo); err != nil {
				return fmt.Errorf("repoint %s onto %s: %w", child, um.RepointChildrenTo, err)
			}
		}
		if err := tree.DeleteBranch(um.Name); err != nil {
			return fmt.Errorf("unmount %s: %w", um.Name, err)
		}
		report.UnmountedBranches = append(report.UnmountedBranches, um.Name)
	}
	return nil
}

// applyDeletions removes the local git branch ref for each
// DeleteLocalBranch entry, repointing and detaching it from the tree
// first if it is still tracked (an unmount-driven delete will already
// have detached it).
func (e *Engine) applyDeletions(ctx context.Context, tree *stack.Tree, plan *Plan, report *ApplyReport) error {
	for _, d := range plan.DeleteLocalBranches {
		if tree.BranchExistsInTree(d.Name) {
			repointTo := tree.Trunk()
			if parent, ok := tree.ParentOf(d.Name); ok {
				repointTo = parent
			}
			for _, child := range tree.Children(d.Name) {
				if err := tree.Mount(ctx, nil, child, repointTo); err != nil {
					return fmt.Errorf("repoint %s onto %s: %w", child, repointTo, err)
				}
			}
			if err := tree.DeleteBranch(d.Name); err != nil {
				return fmt.Errorf("detach %s before delete: %w", d.Name, err)
			}
		}

		if err := e.adapter.DeleteBranch(ctx, d.Name, true); err != nil {
			return fmt.Errorf("delete branch %s (%s): %w", d.Name, d.Reason, err)
		}
		report.DeletedBranches = append(report.DeletedBranches, d.Name)
	}
	return nil
}

func (e *Engine) applyRetargets(ctx context.Context, repoID review.RepoID, plan *Plan, report *ApplyReport) error {
	for _, r := range plan.RetargetPRs {
		if _, err := e.review.UpdatePR(ctx, repoID, r.Number, review.UpdatePRRequest{Base: r.NewBase}); err != nil {
			return fmt.Errorf("retarget PR #%d onto %s: %w", r.Number, r.NewBase, err)
		}
		report.RetargetedPRs = append(report.RetargetedPRs, r.Number)
	}
	return nil
}

// applyCreates opens a PR for each CreatePR entry, deriving a title from
// the branch-tip commit summary (signature-suppressed) when the plan
// didn't already supply one, falling back to the branch name if the
// commit can't be read. Successful creates are recorded against the tree
// so the new PR number is persisted alongside the mounts and retargets.
func (e *Engine) applyCreates(ctx context.Context, repoID review.RepoID, tree *stack.Tree, plan *Plan, report *ApplyReport) error {
	for _, c := range plan.CreatePRs {
		title := c.Title
		if title == "" {
			if summary, err := e.adapter.CommitSummary(ctx, c.Branch); err == nil && summary != "" {
				title = summary
			} else {
				title = c.Branch
			}
		}

		pr, err := e.review.CreatePR(ctx, repoID, review.CreatePRRequest{
			Title: title,
			Head:  c.Branch,
			Base:  c.Base,
		})
		if err != nil {
			var exists *review.PRAlreadyExistsError
			if errors.As(err, &exists) {
				pr = &review.PR{Number: exists.Number}
			} else {
				return fmt.Errorf("create PR for %s onto %s: %w", c.Branch, c.Base, err)
			}
		}

		if node, ok := tree.FindByName(c.Branch); ok {
			node.PRNumber = pr.Number
		}
		report.CreatedPRs = append(report.CreatedPRs, CreatedPR{Branch: c.Branch, Number: pr.Number, URL: pr.URL})
	}
	return nil
}
