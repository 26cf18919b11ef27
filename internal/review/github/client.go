// Package github implements review.Client against the GitHub REST API
// (spec §6.4), using the go-github client rather than a hand-rolled HTTP
// layer.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"go.abhg.dev/gs-sync/internal/review"
)

// DefaultHost is the canonical GitHub.com host string.
const DefaultHost = "github.com"

// Client implements review.Client against the GitHub REST API.
type Client struct {
	gh *github.Client
}

var _ review.Client = (*Client)(nil)

// New returns a Client authenticated with token, talking to host (the
// canonical "github.com" or a GitHub Enterprise hostname).
//
// Per spec §6.4, the API base is https://api.github.com for the canonical
// host, or https://<host>/api/v3 otherwise.
func New(ctx context.Context, host, token string) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)

	gh := github.NewClient(httpClient)
	if host != "" && host != DefaultHost {
		var err error
		gh, err = gh.WithEnterpriseURLs(
			fmt.Sprintf("https://%s/api/v3", host),
			fmt.Sprintf("https://%s/api/uploads", host),
		)
		if err != nil {
			return nil, fmt.Errorf("configure enterprise client for %s: %w", host, err)
		}
	}

	return &Client{gh: gh}, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	var rle *github.RateLimitError
	if asRateLimitError(err, &rle) {
		return &review.RateLimitedError{ResetAt: rle.Rate.Reset.Time}
	}

	var ge *github.ErrorResponse
	if asErrorResponse(err, &ge) {
		status := ge.Response.StatusCode
		switch status {
		case http.StatusUnauthorized:
			return review.ErrUnauthorized
		case http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
			return &review.APIError{Status: status, Msg: ge.Message}
		default:
			return &review.NetworkError{Msg: ge.Message, Err: err}
		}
	}

	return &review.NetworkError{Msg: err.Error(), Err: err}
}

func asRateLimitError(err error, target **github.RateLimitError) bool {
	for err != nil {
		if rle, ok := err.(*github.RateLimitError); ok {
			*target = rle
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func asErrorResponse(err error, target **github.ErrorResponse) bool {
	for err != nil {
		if ge, ok := err.(*github.ErrorResponse); ok {
			*target = ge
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func toPR(pull *github.PullRequest) *review.PR {
	pr := &review.PR{
		Number:    pull.GetNumber(),
		Head:      pull.GetHead().GetRef(),
		HeadSHA:   pull.GetHead().GetSHA(),
		Base:      pull.GetBase().GetRef(),
		Title:     pull.GetTitle(),
		URL:       pull.GetHTMLURL(),
		Author:    pull.GetUser().GetLogin(),
		UpdatedAt: pull.GetUpdatedAt().Time,
	}
	if repo := pull.GetHead().GetRepo(); repo != nil {
		pr.HeadRepo = repo.GetFullName()
	}
	if pull.GetMergedAt().Time != (time.Time{}) {
		pr.MergedAt = pull.GetMergedAt().Time
	}

	switch {
	case pull.GetMerged():
		pr.State = review.Merged
	case pull.GetState() == "closed":
		pr.State = review.Closed
	case pull.GetDraft():
		pr.State = review.Draft
	default:
		pr.State = review.Open
	}
	return pr
}

// GetPR fetches a single PR by number.
func (c *Client) GetPR(ctx context.Context, id review.RepoID, number int) (*review.PR, error) {
	pull, _, err := c.gh.PullRequests.Get(ctx, id.Owner, id.Repo, number)
	if err != nil {
		return nil, mapError(err)
	}
	return toPR(pull), nil
}

// FindOpenPRForBranch returns the open PR whose head is branch, or nil.
func (c *Client) FindOpenPRForBranch(ctx context.Context, id review.RepoID, branch string) (*review.PR, error) {
	pulls, _, err := c.gh.PullRequests.List(ctx, id.Owner, id.Repo, &github.PullRequestListOptions{
		State: "open",
		Head:  id.Owner + ":" + branch,
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(pulls) == 0 {
		return nil, nil
	}
	return toPR(pulls[0]), nil
}

// CreatePR opens a new PR.
func (c *Client) CreatePR(ctx context.Context, id review.RepoID, req review.CreatePRRequest) (*review.PR, error) {
	pull, resp, err := c.gh.PullRequests.Create(ctx, id.Owner, id.Repo, &github.NewPullRequest{
		Title: github.String(req.Title),
		Body:  github.String(req.Body),
		Head:  github.String(req.Head),
		Base:  github.String(req.Base),
		Draft: github.Bool(req.Draft),
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(err.Error(), "already exists") {
			if existing, ferr := c.FindOpenPRForBranch(ctx, id, req.Head); ferr == nil && existing != nil {
				return nil, &review.PRAlreadyExistsError{Number: existing.Number}
			}
		}
		return nil, mapError(err)
	}
	return toPR(pull), nil
}

// UpdatePR patches an existing PR.
func (c *Client) UpdatePR(ctx context.Context, id review.RepoID, number int, req review.UpdatePRRequest) (*review.PR, error) {
	update := &github.PullRequest{}
	if req.Base != "" {
		update.Base = &github.PullRequestBranch{Ref: github.String(req.Base)}
	}
	if req.Title != "" {
		update.Title = github.String(req.Title)
	}
	if req.Body != "" {
		update.Body = github.String(req.Body)
	}

	pull, _, err := c.gh.PullRequests.Edit(ctx, id.Owner, id.Repo, number, update)
	if err != nil {
		return nil, mapError(err)
	}
	return toPR(pull), nil
}

// ListPRs enumerates PRs in the given state, paginating by 100.
func (c *Client) ListPRs(ctx context.Context, id review.RepoID, state review.State, onProgress review.ProgressFunc) (*review.ListResult, error) {
	ghState := "open"
	if state != review.Open && state != review.Draft {
		ghState = "closed"
	}

	result := &review.ListResult{AllAuthors: make(map[string]struct{})}
	opts := &github.PullRequestListOptions{
		State:       ghState,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		pulls, resp, err := c.gh.PullRequests.List(ctx, id.Owner, id.Repo, opts)
		if err != nil {
			return nil, mapError(err)
		}

		for _, pull := range pulls {
			pr := toPR(pull)
			result.AllAuthors[pr.Author] = struct{}{}
			result.PRs = append(result.PRs, pr)
		}

		if onProgress != nil {
			onProgress(len(result.PRs))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// ListClosedPRsWithCache enumerates closed PRs bounded by cache's
// watermark, per the algorithm in spec §4.3.
func (c *Client) ListClosedPRsWithCache(ctx context.Context, id review.RepoID, cache review.Cache, onProgress review.ProgressFunc) (*review.ListResult, error) {
	watermark := cache.Watermark()

	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var fresh []*review.PR
	allAuthors := make(map[string]struct{})
	hitWatermark := false

	for {
		pulls, resp, err := c.gh.PullRequests.List(ctx, id.Owner, id.Repo, opts)
		if err != nil {
			return nil, mapError(err)
		}

		for _, pull := range pulls {
			pr := toPR(pull)
			allAuthors[pr.Author] = struct{}{}
			fresh = append(fresh, pr)

			if watermark != "" && pr.UpdatedAt.UTC().Format(time.RFC3339) <= watermark {
				hitWatermark = true
			}
		}

		if onProgress != nil {
			onProgress(len(fresh))
		}

		shortPage := len(pulls) < opts.PerPage
		if hitWatermark || shortPage || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	cache.Merge(fresh)

	closed := cache.Closed()
	result := &review.ListResult{AllAuthors: allAuthors, PRs: make([]*review.PR, 0, len(closed))}
	for _, pr := range closed {
		result.PRs = append(result.PRs, pr)
	}
	return result, nil
}
