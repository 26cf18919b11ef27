package review_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.abhg.dev/gs-sync/internal/review"
)

func TestAuthorFilter_Keep_noSyncAuthors_excludesForks(t *testing.T) {
	f := review.AuthorFilter{}

	same := &review.PR{HeadRepo: "acme/widgets"}
	assert.True(t, f.Keep(same, "acme/widgets"))

	fork := &review.PR{HeadRepo: "someone-else/widgets"}
	assert.False(t, f.Keep(fork, "acme/widgets"))

	missing := &review.PR{}
	assert.False(t, f.Keep(missing, "acme/widgets"), "a missing head repo is treated as a fork")
}

func TestAuthorFilter_Keep_syncAuthorsOverridesForkCheck(t *testing.T) {
	f := review.AuthorFilter{SyncAuthors: []string{"alice", "bob"}}

	fromFork := &review.PR{Author: "alice", HeadRepo: "alice-fork/widgets"}
	assert.True(t, f.Keep(fromFork, "acme/widgets"))

	other := &review.PR{Author: "mallory", HeadRepo: "acme/widgets"}
	assert.False(t, f.Keep(other, "acme/widgets"), "non-listed author excluded even from the base repo")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "draft", review.Draft.String())
	assert.Equal(t, "open", review.Open.String())
	assert.Equal(t, "merged", review.Merged.String())
	assert.Equal(t, "closed", review.Closed.String())
	assert.Equal(t, "unknown", review.State(99).String())
}

func TestRepoID_String(t *testing.T) {
	id := review.RepoID{Host: "github.com", Owner: "acme", Repo: "widgets"}
	assert.Equal(t, "github.com/acme/widgets", id.String())
}
