package sync

// validate implements Stage 5: a structural sanity pass kept as its own
// seam. It never changes the plan's proposed changes; its one check
// appends a warning when a branch is both slated for deletion and for a
// new PR in the same plan (diffCreates already skips deleted branches, so
// plans built by diff do not trigger it).
func (e *Engine) validate(plan *Plan) {
	if len(plan.DeleteLocalBranches) > 0 {
		deleting := make(map[string]bool, len(plan.DeleteLocalBranches))
		for _, d := range plan.DeleteLocalBranches {
			deleting[d.Name] = true
		}
		for _, c := range plan.CreatePRs {
			if deleting[c.Branch] {
				plan.Warnings = append(plan.Warnings,
					"branch "+c.Branch+" is both deleted and slated for a new PR in the same plan")
			}
		}
	}
}
