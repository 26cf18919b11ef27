// Package reviewtest provides an in-memory fake implementing
// review.Client and review.Cache, in the same spirit as
// gitshimtest.Fake: a hand-written stand-in, not a generated mock, so
// that sync engine tests can exercise real control flow without a
// network.
package reviewtest

import (
	"context"
	"fmt"

	"go.abhg.dev/gs-sync/internal/review"
)

// Fake is an in-memory review service holding PRs for a single
// repository.
type Fake struct {
	prs  map[int]*review.PR
	next int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{prs: make(map[int]*review.PR)}
}

var _ review.Client = (*Fake)(nil)

// Seed inserts a PR with an explicit number, for constructing fixed
// starting states in tests. Returns pr for chaining.
func (f *Fake) Seed(pr *review.PR) *review.PR {
	f.prs[pr.Number] = pr
	if pr.Number >= f.next {
		f.next = pr.Number + 1
	}
	return pr
}

func (f *Fake) GetPR(_ context.Context, _ review.RepoID, number int) (*review.PR, error) {
	pr, ok := f.prs[number]
	if !ok {
		return nil, &review.APIError{Status: 404, Msg: fmt.Sprintf("PR #%d not found", number)}
	}
	return pr, nil
}

func (f *Fake) FindOpenPRForBranch(_ context.Context, _ review.RepoID, branch string) (*review.PR, error) {
	for _, pr := range f.prs {
		if pr.Head == branch && pr.State == review.Open {
			return pr, nil
		}
	}
	return nil, nil
}

func (f *Fake) CreatePR(_ context.Context, _ review.RepoID, req review.CreatePRRequest) (*review.PR, error) {
	for _, pr := range f.prs {
		if pr.Head == req.Head && pr.State == review.Open {
			return nil, &review.PRAlreadyExistsError{Number: pr.Number}
		}
	}
	f.next++
	pr := &review.PR{
		Number: f.next,
		Head:   req.Head,
		Base:   req.Base,
		Title:  req.Title,
		State:  review.Open,
		URL:    fmt.Sprintf("https://example.com/pulls/%d", f.next),
	}
	if req.Draft {
		pr.State = review.Draft
	}
	f.prs[pr.Number] = pr
	return pr, nil
}

func (f *Fake) UpdatePR(_ context.Context, _ review.RepoID, number int, req review.UpdatePRRequest) (*review.PR, error) {
	pr, ok := f.prs[number]
	if !ok {
		return nil, &review.APIError{Status: 404, Msg: fmt.Sprintf("PR #%d not found", number)}
	}
	if req.Base != "" {
		pr.Base = req.Base
	}
	if req.Title != "" {
		pr.Title = req.Title
	}
	return pr, nil
}

func (f *Fake) ListPRs(_ context.Context, _ review.RepoID, state review.State, onProgress review.ProgressFunc) (*review.ListResult, error) {
	result := &review.ListResult{AllAuthors: make(map[string]struct{})}
	for _, pr := range f.prs {
		if pr.Author != "" {
			result.AllAuthors[pr.Author] = struct{}{}
		}
		if pr.State == state {
			result.PRs = append(result.PRs, pr)
		}
	}
	if onProgress != nil {
		onProgress(len(result.PRs))
	}
	return result, nil
}

// ListClosedPRsWithCache ignores the cache's watermark bookkeeping (this
// fake has no pagination to bound) but still folds results through it, so
// callers exercising the cache-merge contract observe it update.
func (f *Fake) ListClosedPRsWithCache(ctx context.Context, id review.RepoID, cache review.Cache, onProgress review.ProgressFunc) (*review.ListResult, error) {
	result, err := f.ListPRs(ctx, id, review.Closed, onProgress)
	if err != nil {
		return nil, err
	}
	merged, err := f.ListPRs(ctx, id, review.Merged, nil)
	if err != nil {
		return nil, err
	}
	result.PRs = append(result.PRs, merged.PRs...)
	for author := range merged.AllAuthors {
		result.AllAuthors[author] = struct{}{}
	}

	if cache != nil {
		cache.Merge(result.PRs)
		result.PRs = nil
		for _, pr := range cache.Closed() {
			result.PRs = append(result.PRs, pr)
		}
	}
	return result, nil
}

// FakeCache is a minimal in-memory review.Cache.
type FakeCache struct {
	watermark string
	closed    map[string]*review.PR
}

// NewFakeCache returns an empty FakeCache.
func NewFakeCache() *FakeCache {
	return &FakeCache{closed: make(map[string]*review.PR)}
}

var _ review.Cache = (*FakeCache)(nil)

func (c *FakeCache) Watermark() string { return c.watermark }

func (c *FakeCache) Closed() map[string]*review.PR { return c.closed }

func (c *FakeCache) Merge(fresh []*review.PR) {
	for _, pr := range fresh {
		c.closed[pr.Head] = pr
		ts := pr.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
		if ts > c.watermark {
			c.watermark = ts
		}
	}
}
