package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"go.abhg.dev/gs-sync/internal/stack"
	"go.abhg.dev/gs-sync/internal/ui/branchtree"
)

// listCmd prints the tracked branch tree and each branch's cached PR
// number, read entirely from local state (spec §6.5) — it does not talk
// to the review service.
type listCmd struct {
	globalFlags
}

func (c *listCmd) Run(ctx context.Context, logger *log.Logger) error {
	app, err := newApp(ctx, c.globalFlags, logger)
	if err != nil {
		return err
	}

	_, repoState, err := app.loadState(c.Trunk)
	if err != nil {
		return err
	}

	current, err := app.adapter.CurrentBranch(ctx)
	if err != nil {
		logger.Warnf("determine current branch: %v", err)
	}

	graph := buildGraph(repoState.Tree, current)
	return branchtree.Write(os.Stdout, graph, nil)
}

// buildGraph walks the tree depth-first from trunk, producing the flat
// Items/Roots representation branchtree.Write expects.
func buildGraph(tree *stack.Tree, current string) branchtree.Graph {
	var g branchtree.Graph

	var walk func(name string) int
	walk = func(name string) int {
		node, ok := tree.FindByName(name)
		if !ok {
			return -1
		}

		idx := len(g.Items)
		item := &branchtree.Item{
			Branch:      name,
			Highlighted: name == current,
		}
		if node.HasPR() {
			item.ChangeID = fmt.Sprintf("#%d", node.PRNumber)
		}
		g.Items = append(g.Items, item)

		for _, child := range tree.Children(name) {
			childIdx := walk(child)
			if childIdx >= 0 {
				item.Aboves = append(item.Aboves, childIdx)
			}
		}
		return idx
	}

	rootIdx := walk(tree.Trunk())
	if rootIdx >= 0 {
		g.Roots = []int{rootIdx}
	}
	return g
}
