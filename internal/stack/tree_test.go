package stack_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.abhg.dev/gs-sync/internal/gitshim/gitshimtest"
	"go.abhg.dev/gs-sync/internal/stack"
)

func TestNewTree(t *testing.T) {
	tr := stack.NewTree("main")
	assert.Equal(t, "main", tr.Trunk())
	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.BranchExistsInTree("main"))

	_, ok := tr.ParentOf("main")
	assert.False(t, ok, "trunk has no parent")
}

func TestMount_defaultsToTrunk(t *testing.T) {
	ctx := context.Background()
	tr := stack.NewTree("main")

	require.NoError(t, tr.Mount(ctx, nil, "feature-a", ""))

	parent, ok := tr.ParentOf("feature-a")
	require.True(t, ok)
	assert.Equal(t, "main", parent)
	assert.Equal(t, []string{"feature-a"}, tr.Children("main"))
}

func TestMount_rejectsTrunk(t *testing.T) {
	ctx := context.Background()
	tr := stack.NewTree("main")

	err := tr.Mount(ctx, nil, "main", "main")
	require.Error(t, err)
	var invalid *stack.ErrInvalidMount
	assert.ErrorAs(t, err, &invalid)
}

func TestMount_rejectsSelfMount(t *testing.T) {
	ctx := context.Background()
	tr := stack.NewTree("main")
	require.NoError(t, tr.Mount(ctx, nil, "feature-a", "main"))

	err := tr.Mount(ctx, nil, "feature-a", "feature-a")
	require.Error(t, err)
	var invalid *stack.ErrInvalidMount
	assert.ErrorAs(t, err, &invalid)
}

func TestMount_rejectsUnknownParent(t *testing.T) {
	ctx := context.Background()
	tr := stack.NewTree("main")

	err := tr.Mount(ctx, nil, "feature-a", "does-not-exist")
	require.Error(t, err)
	var invalid *stack.ErrInvalidMount
	assert.ErrorAs(t, err, &invalid)
}

func TestMount_noopOnSameParent(t *testing.T) {
	ctx := context.Background()
	tr := stack.NewTree("main")
	require.NoError(t, tr.Mount(ctx, nil, "feature-a", "main"))
	require.NoError(t, tr.Mount(ctx, nil, "feature-a", "main"))

	assert.Equal(t, []string{"feature-a"}, tr.Children("main"))
}

func TestMount_reparents(t *testing.T) {
	ctx := context.Background()
	tr := stack.NewTree("main")
	require.NoError(t, tr.Mount(ctx, nil, "feature-a", "main"))
	require.NoError(t, tr.Mount(ctx, nil, "feature-b", "main"))

	require.NoError(t, tr.Mount(ctx, nil, "feature-b", "feature-a"))

	parent, ok := tr.ParentOf("feature-b")
	require.True(t, ok)
	assert.Equal(t, "feature-a", parent)
	assert.Equal(t, []string{"feature-a"}, tr.Children("main"))
	assert.Equal(t, []string{"feature-b"}, tr.Children("feature-a"))
}

func TestMount_seedsLKGParent(t *testing.T) {
	ctx := context.Background()
	fake := gitshimtest.New("main")
	mainHead, err := fake.SHA(ctx, "main")
	require.NoError(t, err)

	tr := stack.NewTree("main")
	require.NoError(t, tr.Mount(ctx, fake, "feature-a", "main"))

	node, ok := tr.FindByName("feature-a")
	require.True(t, ok)
	assert.Equal(t, mainHead, node.LKGParent)
}

func TestDeleteBranch(t *testing.T) {
	ctx := context.Background()
	tr := stack.NewTree("main")
	require.NoError(t, tr.Mount(ctx, nil, "feature-a", "main"))
	require.NoError(t, tr.Mount(ctx, nil, "feature-b", "feature-a"))

	require.NoError(t, tr.DeleteBranch("feature-a"))

	assert.False(t, tr.BranchExistsInTree("feature-a"))
	_, ok := tr.ParentOf("feature-b")
	assert.False(t, ok, "orphaned child is detached, not repointed")
}

func TestDeleteBranch_rejectsTrunk(t *testing.T) {
	tr := stack.NewTree("main")
	err := tr.DeleteBranch("main")
	require.Error(t, err)
}

func TestDeleteBranch_unknown(t *testing.T) {
	tr := stack.NewTree("main")
	err := tr.DeleteBranch("nope")
	require.ErrorIs(t, err, stack.ErrNotFound)
}

func TestPlanRestack(t *testing.T) {
	ctx := context.Background()
	tr := stack.NewTree("main")
	require.NoError(t, tr.Mount(ctx, nil, "feature-a", "main"))
	require.NoError(t, tr.Mount(ctx, nil, "feature-b", "feature-a"))
	require.NoError(t, tr.Mount(ctx, nil, "feature-c", "feature-b"))

	pairs, err := tr.PlanRestack("feature-c")
	require.NoError(t, err)
	assert.Equal(t, []stack.RestackPair{
		{Parent: "main", Child: "feature-a"},
		{Parent: "feature-a", Child: "feature-b"},
		{Parent: "feature-b", Child: "feature-c"},
	}, pairs)
}

func TestPlanRestack_unknownBranch(t *testing.T) {
	tr := stack.NewTree("main")
	_, err := tr.PlanRestack("nope")
	require.ErrorIs(t, err, stack.ErrNotFound)
}

func TestRefreshLKGs(t *testing.T) {
	ctx := context.Background()
	fake := gitshimtest.New("main")

	tr := stack.NewTree("main")
	require.NoError(t, tr.Mount(ctx, fake, "feature-a", "main"))

	// Advance main past the commit feature-a was mounted on.
	mainHead, err := fake.SHA(ctx, "main")
	require.NoError(t, err)
	newMain := fake.Commit(mainHead)
	fake.SetBranch("main", newMain)

	// feature-a has no branch ref in the fake, so neither its recorded
	// lkgParent nor main's new head is an ancestor of it: refreshing
	// should clear the recorded lkgParent and not set a new one.
	require.NoError(t, tr.RefreshLKGs(ctx, fake))

	node, ok := tr.FindByName("feature-a")
	require.True(t, ok)
	assert.True(t, node.LKGParent.IsZero())
}

func TestRefreshLKGs_setsWhenAncestor(t *testing.T) {
	ctx := context.Background()
	fake := gitshimtest.New("main")

	tr := stack.NewTree("main")
	require.NoError(t, tr.Mount(ctx, fake, "feature-a", "main"))

	// feature-a's head is built directly on top of main's current head,
	// so main's SHA should qualify as feature-a's lkgParent.
	mainHead, err := fake.SHA(ctx, "main")
	require.NoError(t, err)
	featureHead := fake.Commit(mainHead)
	fake.SetBranch("feature-a", featureHead)

	require.NoError(t, tr.RefreshLKGs(ctx, fake))

	node, ok := tr.FindByName("feature-a")
	require.True(t, ok)
	assert.Equal(t, mainHead, node.LKGParent)
}
