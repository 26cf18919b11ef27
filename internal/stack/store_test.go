package stack_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.abhg.dev/gs-sync/internal/stack"
)

func TestWireRoundTrip(t *testing.T) {
	ctx := context.Background()
	tr := stack.NewTree("main")
	require.NoError(t, tr.Mount(ctx, nil, "feature-a", "main"))
	require.NoError(t, tr.Mount(ctx, nil, "feature-b", "feature-a"))

	node, ok := tr.FindByName("feature-a")
	require.True(t, ok)
	node.Note = "first in the stack"
	node.PRNumber = 42

	w := tr.ToWire()
	back, err := stack.FromWire(w)
	require.NoError(t, err)

	assert.Equal(t, "main", back.Trunk())
	assert.Equal(t, tr.Len(), back.Len())

	got, ok := back.FindByName("feature-a")
	require.True(t, ok)
	assert.Equal(t, "first in the stack", got.Note)
	assert.Equal(t, 42, got.PRNumber)

	parent, ok := back.ParentOf("feature-b")
	require.True(t, ok)
	assert.Equal(t, "feature-a", parent)
}

func TestFromWire_rejectsDuplicateNames(t *testing.T) {
	w := &stack.WireNode{
		Name: "main",
		Branches: []*stack.WireNode{
			{Name: "feature-a"},
			{Name: "feature-a"},
		},
	}
	_, err := stack.FromWire(w)
	require.Error(t, err)
}

func TestStore_missingFileIsEmptyDocument(t *testing.T) {
	store := stack.NewStore(filepath.Join(t.TempDir(), "state.yml"))
	doc, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Repos)
}

func TestStore_saveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.yml")
	store := stack.NewStore(path)

	doc, err := store.Load()
	require.NoError(t, err)

	state, err := doc.EnsureTrunk("/repo/one", "main")
	require.NoError(t, err)
	require.NoError(t, state.Tree.Mount(ctx, nil, "feature-a", "main"))
	state.SeenRemoteSHAs["deadbeef"] = struct{}{}
	state.SeenRemoteSHAs["c0ffee"] = struct{}{}
	doc.Put("/repo/one", state)

	require.NoError(t, store.Save(doc))

	reloaded, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, reloaded.Repos, "/repo/one")

	reState, err := reloaded.EnsureTrunk("/repo/one", "main")
	require.NoError(t, err)
	assert.True(t, reState.Tree.BranchExistsInTree("feature-a"))
	assert.Len(t, reState.SeenRemoteSHAs, 2)
}

// TestStore_saveIsFixedPoint exercises the invariant that persisted state is
// a fixed point of load-then-save: saving what was just loaded, unmodified,
// and loading it again yields an equal repository document.
func TestStore_saveIsFixedPoint(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.yml")
	store := stack.NewStore(path)

	doc, err := store.Load()
	require.NoError(t, err)
	state, err := doc.EnsureTrunk("/repo/one", "main")
	require.NoError(t, err)
	require.NoError(t, state.Tree.Mount(ctx, nil, "feature-a", "main"))
	doc.Put("/repo/one", state)
	require.NoError(t, store.Save(doc))

	first, err := store.Load()
	require.NoError(t, err)
	state1, err := first.EnsureTrunk("/repo/one", "main")
	require.NoError(t, err)
	first.Put("/repo/one", state1)
	require.NoError(t, store.Save(first))

	second, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, first.Repos["/repo/one"], second.Repos["/repo/one"])
}
