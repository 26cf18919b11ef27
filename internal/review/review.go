// Package review defines the narrow capability interface (Client) through
// which the sync engine enumerates, creates, and updates pull/merge
// requests on a hosted review service, independent of which forge
// (GitHub, GitLab, ...) is in play.
package review

import (
	"context"
	"fmt"
	"time"
)

// RepoID identifies a repository on a specific host.
type RepoID struct {
	Host  string
	Owner string
	Repo  string
}

func (r RepoID) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Host, r.Owner, r.Repo)
}

// State is the current state of a PR/MR.
type State int

const (
	// Draft indicates the change is not yet ready for review.
	Draft State = iota + 1
	// Open indicates the change is open and ready for review.
	Open
	// Merged indicates the change has been merged.
	Merged
	// Closed indicates the change was closed without merging.
	Closed
)

func (s State) String() string {
	switch s {
	case Draft:
		return "draft"
	case Open:
		return "open"
	case Merged:
		return "merged"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// PR is a single pull/merge request as seen by the sync engine.
type PR struct {
	Number    int
	Head      string
	HeadSHA   string // the head branch's commit SHA at last observation
	Base      string
	State     State
	Title     string
	URL       string
	Author    string
	HeadRepo  string // empty or differs from base repo ⇒ a fork
	UpdatedAt time.Time
	MergedAt  time.Time // zero if not merged
}

// CreatePRRequest creates a new PR. The head branch must already be pushed
// to the remote.
type CreatePRRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
	Draft bool
}

// UpdatePRRequest patches an existing PR. Zero-value fields are left
// unchanged; non-empty fields are applied.
type UpdatePRRequest struct {
	Base  string
	Title string
	Body  string
}

// ProgressFunc is called after each page of results during enumeration, to
// drive a best-effort progress indicator. It may be nil.
type ProgressFunc func(fetched int)

// ListResult is the result of listing PRs: the matching PRs plus the full
// set of authors seen, built before any author/fork filtering is applied
// so that callers can make pruning decisions with full knowledge.
type ListResult struct {
	PRs        []*PR
	AllAuthors map[string]struct{}
}

// Cache is the closed-PR watermark cache contract described in spec §4.3,
// implemented by internal/review/prcache.Cache.
type Cache interface {
	// Watermark returns the ISO-8601 timestamp below which the cache is
	// known to be complete, or "" if never populated.
	Watermark() string

	// Closed returns the cached closed PRs, keyed by head branch.
	Closed() map[string]*PR

	// Merge folds freshly fetched closed PRs into the cache.
	Merge(fresh []*PR)
}

// Client is the narrow interface to a hosted review service, scoped to
// exactly the operations the sync engine needs (spec §4.2).
type Client interface {
	// GetPR fetches a single PR by number.
	GetPR(ctx context.Context, id RepoID, number int) (*PR, error)

	// FindOpenPRForBranch returns the open PR whose head is branch, or
	// nil if none exists.
	FindOpenPRForBranch(ctx context.Context, id RepoID, branch string) (*PR, error)

	// CreatePR opens a new PR.
	CreatePR(ctx context.Context, id RepoID, req CreatePRRequest) (*PR, error)

	// UpdatePR patches an existing PR.
	UpdatePR(ctx context.Context, id RepoID, number int, req UpdatePRRequest) (*PR, error)

	// ListPRs enumerates PRs in the given state (Open or Closed),
	// paginating by 100.
	ListPRs(ctx context.Context, id RepoID, state State, onProgress ProgressFunc) (*ListResult, error)

	// ListClosedPRsWithCache enumerates closed PRs using a Cache to
	// bound remote work to what has changed since the cache's
	// watermark (spec §4.3).
	ListClosedPRsWithCache(ctx context.Context, id RepoID, cache Cache, onProgress ProgressFunc) (*ListResult, error)
}

// AuthorFilter decides which PRs survive the fork/author filtering
// contract described in spec §4.2: if syncAuthors is non-empty, only PRs
// by those logins are kept; otherwise PRs whose head repo differs from the
// base repo (forks; a missing head repo is treated as a fork) are
// excluded.
type AuthorFilter struct {
	SyncAuthors []string
}

// Keep reports whether pr should be retained under this filter.
func (f AuthorFilter) Keep(pr *PR, baseRepo string) bool {
	if len(f.SyncAuthors) > 0 {
		for _, login := range f.SyncAuthors {
			if login == pr.Author {
				return true
			}
		}
		return false
	}
	return pr.HeadRepo != "" && pr.HeadRepo == baseRepo
}
