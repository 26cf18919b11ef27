package sync

// model implements Stage 3: construct TargetState from LocalState and
// RemoteState (spec §4.5).
func (e *Engine) model(local *LocalState, remote *RemoteState) *TargetState {
	target := &TargetState{Branches: make(map[string]TargetBranch)}

	for name, lb := range local.Branches {
		parent := lb.Parent

		// The PR base wins over the local parent only when this
		// branch has no PR number cached yet — i.e. sync has never
		// linked it to a PR before, so there is no local re-parent to
		// defer to and adopting the remote-shaped base is a pure
		// reconstruction. Once a branch is linked to a known PR,
		// further local re-parents are authoritative and propagate
		// outward as a RetargetPR instead (spec §9 Design Notes
		// Open Question (a) territory: this is the narrower reading
		// that keeps Scenario D's re-parent-then-retarget workflow
		// from being undone by a stale remote base on every sync).
		if lb.PRNumber == 0 {
			if openPR, ok := remote.OpenPRs[name]; ok && openPR.Base != "" && openPR.Base != parent {
				if e.baseIsResolvable(openPR.Base, local, remote) {
					parent = openPR.Base
				}
			}
		}

		prNumber := lb.PRNumber
		if openPR, ok := remote.OpenPRs[name]; ok {
			prNumber = openPR.Number
		} else if closedPR, ok := remote.ClosedPRs[name]; ok {
			prNumber = closedPR.Number
		}

		expectedBase := ""
		if lb.PushedToRemote {
			expectedBase = parent
		}

		target.Branches[name] = TargetBranch{
			Parent:         parent,
			PRNumber:       prNumber,
			ExpectedPRBase: expectedBase,
			PushedToRemote: lb.PushedToRemote,
		}
	}

	// Open PRs with heads not yet in the local tree seed a future mount.
	for head, pr := range remote.OpenPRs {
		if _, tracked := local.Branches[head]; tracked {
			continue
		}
		target.Branches[head] = TargetBranch{
			Parent:         pr.Base,
			PRNumber:       pr.Number,
			ExpectedPRBase: pr.Base,
			PushedToRemote: true,
		}
	}

	return target
}

func (e *Engine) baseIsResolvable(base string, local *LocalState, remote *RemoteState) bool {
	if base == local.Trunk {
		return true
	}
	if _, ok := local.Branches[base]; ok {
		return true
	}
	if _, ok := remote.OpenPRs[base]; ok {
		return true
	}
	return false
}
