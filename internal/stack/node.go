// Package stack implements the stack-tree data model: a per-repository
// tree of dependent branches, the mutation algebra that keeps it
// consistent (mount, unmount, planRestack, refreshLKGs), and its on-disk
// persistence.
//
// The source material for this model (original_source/src/state.rs) used
// nested owned nodes with recursive search and back-references. Per the
// design notes this package instead uses an arena-plus-index
// representation — a flat slice of nodes with a parent index on each — so
// that mount/unmount are O(1) splices and there is no recursive
// traversal-based borrowing to get wrong. Serialization converts to and
// from the nested wire form in wire.go.
package stack

import "go.abhg.dev/gs-sync/internal/gitshim"

// StackMethod is the restack strategy recorded for a branch. It is
// persisted with the tree; the RestackExecutor does not read it and
// rebases every branch regardless of its method.
type StackMethod string

const (
	// ApplyMerge names rebasing the branch's commits onto its new base
	// (the default).
	ApplyMerge StackMethod = "apply_merge"
	// Merge names merging the base branch into the branch. There is no
	// merge-based restack path; such branches are rebased as well.
	Merge StackMethod = "merge"
)

// Node is a single branch tracked in the stack tree.
type Node struct {
	// Name is the branch's identifier. Distinct within the tree; only
	// the trunk may use the configured trunk name.
	Name string

	// StackMethod is the recorded restack strategy (see StackMethod).
	StackMethod StackMethod

	// Note is optional free-form text.
	Note string

	// LKGParent is the last-known-good parent commit this branch was
	// last successfully restacked from, if known.
	LKGParent gitshim.Hash

	// PRNumber is the most recently known PR/MR number for this
	// branch's head, if any. Zero means unknown.
	PRNumber int

	parent   int // index into Tree.nodes; -1 for the root (trunk)
	children []int
}

// HasPR reports whether a PR number is cached for this node.
func (n *Node) HasPR() bool { return n.PRNumber != 0 }
