package stack

import (
	"fmt"

	"go.abhg.dev/gs-sync/internal/gitshim"
)

// WireNode is the nested, on-disk form of a branch node (spec §6.1):
// a name, stack method, optional note/lkgParent/prNumber, and an ordered
// list of children. The in-memory Tree converts to and from this shape at
// the persistence boundary only.
type WireNode struct {
	Name        string      `yaml:"name"`
	StackMethod StackMethod `yaml:"stack_method,omitempty"`
	Note        string      `yaml:"note,omitempty"`
	LKGParent   string      `yaml:"lkg_parent,omitempty"`
	PRNumber    int         `yaml:"pr_number,omitempty"`
	Branches    []*WireNode `yaml:"branches,omitempty"`
}

// ToWire converts the tree into its nested on-disk representation, rooted
// at the trunk.
func (t *Tree) ToWire() *WireNode {
	return t.toWireNode(0)
}

func (t *Tree) toWireNode(idx int) *WireNode {
	n := &t.nodes[idx]
	w := &WireNode{
		Name:        n.Name,
		StackMethod: n.StackMethod,
		Note:        n.Note,
		PRNumber:    n.PRNumber,
	}
	if w.StackMethod == "" {
		w.StackMethod = ApplyMerge
	}
	if !n.LKGParent.IsZero() {
		w.LKGParent = n.LKGParent.String()
	}
	for _, c := range n.children {
		w.Branches = append(w.Branches, t.toWireNode(c))
	}
	return w
}

// FromWire reconstructs a Tree from its nested on-disk representation.
func FromWire(root *WireNode) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("nil root node")
	}
	t := &Tree{trunk: root.Name, byName: make(map[string]int)}
	if err := t.appendWireNode(root, -1); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) appendWireNode(w *WireNode, parentIdx int) error {
	if _, dup := t.byName[w.Name]; dup {
		return fmt.Errorf("duplicate branch name in tree: %q", w.Name)
	}

	method := w.StackMethod
	if method == "" {
		method = ApplyMerge
	}

	idx := len(t.nodes)
	t.nodes = append(t.nodes, Node{
		Name:        w.Name,
		StackMethod: method,
		Note:        w.Note,
		LKGParent:   gitshim.Hash(w.LKGParent),
		PRNumber:    w.PRNumber,
		parent:      parentIdx,
	})
	t.byName[w.Name] = idx

	if parentIdx >= 0 {
		t.nodes[parentIdx].children = append(t.nodes[parentIdx].children, idx)
	}

	for _, c := range w.Branches {
		if err := t.appendWireNode(c, idx); err != nil {
			return err
		}
	}
	return nil
}
