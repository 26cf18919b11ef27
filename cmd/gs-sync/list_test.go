package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.abhg.dev/gs-sync/internal/gitshim/gitshimtest"
	"go.abhg.dev/gs-sync/internal/stack"
)

func TestBuildGraph(t *testing.T) {
	tree := stack.NewTree("main")
	adapter := gitshimtest.New("main")

	require.NoError(t, tree.Mount(context.Background(), adapter, "feat1", "main"))
	require.NoError(t, tree.Mount(context.Background(), adapter, "feat2", "feat1"))

	node, ok := tree.FindByName("feat1")
	require.True(t, ok)
	node.PRNumber = 42

	graph := buildGraph(tree, "feat2")
	require.Len(t, graph.Items, 3)
	require.Len(t, graph.Roots, 1)

	root := graph.Items[graph.Roots[0]]
	assert.Equal(t, "main", root.Branch)
	require.Len(t, root.Aboves, 1)

	feat1 := graph.Items[root.Aboves[0]]
	assert.Equal(t, "feat1", feat1.Branch)
	assert.Equal(t, "#42", feat1.ChangeID)
	assert.False(t, feat1.Highlighted)
	require.Len(t, feat1.Aboves, 1)

	feat2 := graph.Items[feat1.Aboves[0]]
	assert.Equal(t, "feat2", feat2.Branch)
	assert.True(t, feat2.Highlighted)
	assert.Empty(t, feat2.ChangeID)
}
