package stack

import (
	"context"
	"errors"
	"fmt"

	"go.abhg.dev/container/ring"
	"go.abhg.dev/gs-sync/internal/editor"
	"go.abhg.dev/gs-sync/internal/gitshim"
)

// ErrNotFound indicates that a named branch is not tracked by the tree.
var ErrNotFound = errors.New("branch not tracked")

// ErrInvalidMount indicates a mount request that would violate a tree
// invariant (mounting trunk, mounting a branch on itself, or an unknown
// parent).
type ErrInvalidMount struct {
	Reason string
}

func (e *ErrInvalidMount) Error() string { return e.Reason }

// Tree is the in-memory stack tree for one repository: an arena of nodes
// plus a name index, rooted at the trunk branch.
type Tree struct {
	trunk  string
	nodes  []Node
	byName map[string]int // name -> index into nodes
}

// NewTree returns a tree containing only the trunk branch.
func NewTree(trunk string) *Tree {
	t := &Tree{trunk: trunk, byName: make(map[string]int)}
	t.nodes = append(t.nodes, Node{
		Name:        trunk,
		StackMethod: ApplyMerge,
		parent:      -1,
	})
	t.byName[trunk] = 0
	return t
}

// Trunk reports the trunk branch name.
func (t *Tree) Trunk() string { return t.trunk }

// Len reports the number of tracked branches, including trunk.
func (t *Tree) Len() int { return len(t.nodes) }

// FindByName returns the node for name, or false if it is not tracked.
func (t *Tree) FindByName(name string) (*Node, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return &t.nodes[idx], true
}

// BranchExistsInTree reports whether name is tracked.
func (t *Tree) BranchExistsInTree(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// ParentOf returns the name of branch's parent, or false if branch is
// untracked or is the trunk (which has no parent).
func (t *Tree) ParentOf(branch string) (string, bool) {
	idx, ok := t.byName[branch]
	if !ok {
		return "", false
	}
	p := t.nodes[idx].parent
	if p < 0 {
		return "", false
	}
	return t.nodes[p].Name, true
}

// Children returns the names of branch's direct children.
func (t *Tree) Children(branch string) []string {
	idx, ok := t.byName[branch]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(t.nodes[idx].children))
	for _, c := range t.nodes[idx].children {
		out = append(out, t.nodes[c].Name)
	}
	return out
}

// ensureNode returns the index of an existing node named name, or creates
// a fresh, unparented one (caller must attach it to a parent).
func (t *Tree) ensureNode(name string) int {
	if idx, ok := t.byName[name]; ok {
		return idx
	}
	idx := len(t.nodes)
	t.nodes = append(t.nodes, Node{Name: name, StackMethod: ApplyMerge, parent: -1})
	t.byName[name] = idx
	return idx
}

// removeChild detaches child from parent's children list.
func (t *Tree) removeChild(parentIdx, childIdx int) {
	children := t.nodes[parentIdx].children
	for i, c := range children {
		if c == childIdx {
			t.nodes[parentIdx].children = append(children[:i], children[i+1:]...)
			return
		}
	}
}

// Mount attaches branch under parent (defaulting to trunk), creating the
// branch node if it does not already exist. It fails if branch is the
// trunk, if branch == parent, or if parent is not tracked. If branch is
// already mounted on parent, Mount is a no-op.
//
// When Mount creates a fresh node, lkgParent is seeded from the parent
// branch's current commit, if the adapter can resolve it.
func (t *Tree) Mount(ctx context.Context, adapter gitshim.Adapter, branch, parent string) error {
	if parent == "" {
		parent = t.trunk
	}
	if branch == t.trunk {
		return &ErrInvalidMount{Reason: fmt.Sprintf("%q is the trunk branch and cannot be mounted on anything else", branch)}
	}
	if branch == parent {
		return &ErrInvalidMount{Reason: fmt.Sprintf("%q cannot be mounted on itself", branch)}
	}
	parentIdx, ok := t.byName[parent]
	if !ok {
		return &ErrInvalidMount{Reason: fmt.Sprintf("parent branch %q is not tracked", parent)}
	}

	if existing, ok := t.byName[branch]; ok {
		if t.nodes[existing].parent == parentIdx {
			// Already mounted here; no-op.
			return nil
		}
		if oldParent := t.nodes[existing].parent; oldParent >= 0 {
			t.removeChild(oldParent, existing)
		}
		t.nodes[existing].parent = parentIdx
		t.nodes[parentIdx].children = append(t.nodes[parentIdx].children, existing)
		return nil
	}

	idx := t.ensureNode(branch)
	t.nodes[idx].parent = parentIdx
	if adapter != nil {
		if sha, err := adapter.SHA(ctx, parent); err == nil {
			t.nodes[idx].LKGParent = sha
		}
	}
	t.nodes[parentIdx].children = append(t.nodes[parentIdx].children, idx)
	return nil
}

// DeleteBranch removes branch from its parent's children list. Children of
// the removed node are NOT repointed — the caller (the sync engine) is
// responsible for repointing them before calling DeleteBranch, per spec
// §4.5's unmount-then-delete sequencing.
func (t *Tree) DeleteBranch(branch string) error {
	idx, ok := t.byName[branch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, branch)
	}
	if branch == t.trunk {
		return &ErrInvalidMount{Reason: "cannot delete the trunk branch"}
	}

	parentIdx := t.nodes[idx].parent
	if parentIdx >= 0 {
		t.removeChild(parentIdx, idx)
	}

	// Re-parent the removed node's children to nothing; they are
	// expected to already have been repointed by the caller. Detach
	// them defensively so the arena never holds a dangling parent
	// index into a removed slot.
	for _, c := range t.nodes[idx].children {
		t.nodes[c].parent = -1
	}

	delete(t.byName, branch)
	// Leave a tombstone in the arena (simplest way to keep existing
	// indices valid) but it is unreachable from byName or any
	// children list, so it is inert.
	t.nodes[idx] = Node{parent: -2}
	return nil
}

// SetNote overwrites branch's free-form note directly.
func (t *Tree) SetNote(branch, note string) error {
	idx, ok := t.byName[branch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, branch)
	}
	t.nodes[idx].Note = note
	return nil
}

// EditNote opens editorCmd (or $EDITOR) on branch's current note and saves
// whatever text the user leaves behind, mirroring the original
// implementation's edit_note operation.
func (t *Tree) EditNote(branch, editorCmd string) error {
	idx, ok := t.byName[branch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, branch)
	}
	edited, err := editor.Edit(editorCmd, t.nodes[idx].Note)
	if err != nil {
		return fmt.Errorf("edit note for %s: %w", branch, err)
	}
	t.nodes[idx].Note = edited
	return nil
}

// RestackPair is one (parent, child) edge to restack, in top-down order.
type RestackPair struct {
	Parent string
	Child  string

	// LKGParent is Child's last-known-good parent commit, if one has
	// ever been recorded — the upstream boundary a rebase should
	// replay from, narrower than "everything reachable from Parent".
	LKGParent gitshim.Hash
}

// PlanRestack returns the chain from trunk down to startingBranch as
// adjacent (parent, child) pairs, in top-down order.
func (t *Tree) PlanRestack(startingBranch string) ([]RestackPair, error) {
	idx, ok := t.byName[startingBranch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, startingBranch)
	}

	var chain []int
	for i := idx; i >= 0; {
		chain = append(chain, i)
		i = t.nodes[i].parent
	}
	// chain is currently [startingBranch, ..., trunk]; reverse it.
	for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
		chain[l], chain[r] = chain[r], chain[l]
	}

	pairs := make([]RestackPair, 0, len(chain)-1)
	for i := 0; i+1 < len(chain); i++ {
		pairs = append(pairs, RestackPair{
			Parent:    t.nodes[chain[i]].Name,
			Child:     t.nodes[chain[i+1]].Name,
			LKGParent: t.nodes[chain[i+1]].LKGParent,
		})
	}
	return pairs, nil
}

// RefreshLKGs walks the tree breadth-first from trunk, updating each
// node's lkgParent: if the parent is an ancestor of the child, the child's
// lkgParent becomes the parent's current SHA; if the node's existing
// lkgParent is no longer an ancestor of the child, it is cleared.
func (t *Tree) RefreshLKGs(ctx context.Context, adapter gitshim.Adapter) error {
	var q ring.Q[int]
	q.Push(0) // trunk is always node 0

	for !q.Empty() {
		idx := q.Pop()
		node := &t.nodes[idx]

		if idx != 0 { // trunk has no parent to check against
			parentName := t.nodes[node.parent].Name

			if !node.LKGParent.IsZero() {
				isAnc, err := adapter.IsAncestor(ctx, node.LKGParent, gitshim.Hash(node.Name))
				if err != nil {
					return fmt.Errorf("check ancestry of %s's lkgParent: %w", node.Name, err)
				}
				if !isAnc {
					node.LKGParent = gitshim.ZeroHash
				}
			}

			parentHash, err := adapter.SHA(ctx, parentName)
			if err == nil {
				isAnc, err := adapter.IsAncestor(ctx, parentHash, gitshim.Hash(node.Name))
				if err == nil && isAnc {
					node.LKGParent = parentHash
				}
			}
		}

		for _, c := range node.children {
			q.Push(c)
		}
	}
	return nil
}
