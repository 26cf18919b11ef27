// Package gitlab implements review.Client against the GitLab REST API
// using the gitlab.com/gitlab-org/api/client-go module, following the same
// auth-source wiring the teacher repository uses for its own GitLab forge.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/oauth2"

	"go.abhg.dev/gs-sync/internal/review"
)

// DefaultHost is the canonical gitlab.com host string.
const DefaultHost = "gitlab.com"

// Client implements review.Client against the GitLab REST API.
type Client struct {
	gl *gitlab.Client
}

var _ review.Client = (*Client)(nil)

// New returns a Client authenticated with a personal access token, talking
// to host (the canonical "gitlab.com" or a self-managed instance
// hostname).
func New(host, token string) (*Client, error) {
	opts := []gitlab.ClientOptionFunc{}
	if host != "" && host != DefaultHost {
		opts = append(opts, gitlab.WithBaseURL(fmt.Sprintf("https://%s/api/v4", host)))
	}

	authSource := oauth2TokenSource{ts: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})}
	gl, err := gitlab.NewAuthSourceClient(authSource, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}
	return &Client{gl: gl}, nil
}

// oauth2TokenSource adapts an oauth2.TokenSource into a gitlab.AuthSource
// using a PRIVATE-TOKEN header, matching how the teacher's own PAT auth
// source is wired.
type oauth2TokenSource struct {
	ts oauth2.TokenSource
}

func (o oauth2TokenSource) Init(context.Context, *gitlab.Client) error { return nil }

func (o oauth2TokenSource) Header(context.Context) (string, string, error) {
	tok, err := o.ts.Token()
	if err != nil {
		return "", "", err
	}
	return "PRIVATE-TOKEN", tok.AccessToken, nil
}

func projectPath(id review.RepoID) string {
	return id.Owner + "/" + id.Repo
}

func mapError(err error, resp *gitlab.Response) error {
	if err == nil {
		return nil
	}
	if resp == nil || resp.Response == nil {
		return &review.NetworkError{Msg: err.Error(), Err: err}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return review.ErrUnauthorized
	case http.StatusTooManyRequests:
		return &review.RateLimitedError{ResetAt: time.Now().Add(time.Minute)}
	case http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
		return &review.APIError{Status: resp.StatusCode, Msg: err.Error()}
	default:
		return &review.NetworkError{Msg: err.Error(), Err: err}
	}
}

func toPR(mr *gitlab.BasicMergeRequest) *review.PR {
	pr := &review.PR{
		Number:    mr.IID,
		Head:      mr.SourceBranch,
		HeadSHA:   mr.SHA,
		Base:      mr.TargetBranch,
		Title:     mr.Title,
		URL:       mr.WebURL,
		Author:    "",
		UpdatedAt: safeTime(mr.UpdatedAt),
	}
	if mr.Author != nil {
		pr.Author = mr.Author.Username
	}
	if mr.MergedAt != nil {
		pr.MergedAt = *mr.MergedAt
	}

	switch {
	case mr.State == "merged":
		pr.State = review.Merged
	case mr.State == "closed":
		pr.State = review.Closed
	case mr.Draft:
		pr.State = review.Draft
	default:
		pr.State = review.Open
	}
	return pr
}

func safeTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// toPRFull converts the fuller *gitlab.MergeRequest shape returned by the
// single-MR get/create/update endpoints (as opposed to the
// BasicMergeRequest shape the list endpoint returns).
func toPRFull(mr *gitlab.MergeRequest) *review.PR {
	return toPR(&mr.BasicMergeRequest)
}

// GetPR fetches a single MR by IID.
func (c *Client) GetPR(ctx context.Context, id review.RepoID, number int) (*review.PR, error) {
	mr, resp, err := c.gl.MergeRequests.GetMergeRequest(projectPath(id), number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, mapError(err, resp)
	}
	return toPRFull(mr), nil
}

// FindOpenPRForBranch returns the open MR whose source branch is branch,
// or nil.
func (c *Client) FindOpenPRForBranch(ctx context.Context, id review.RepoID, branch string) (*review.PR, error) {
	opened := "opened"
	mrs, resp, err := c.gl.MergeRequests.ListProjectMergeRequests(projectPath(id), &gitlab.ListProjectMergeRequestsOptions{
		SourceBranch: &branch,
		State:        &opened,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, mapError(err, resp)
	}
	if len(mrs) == 0 {
		return nil, nil
	}
	return toPR(mrs[0]), nil
}

// CreatePR opens a new MR.
func (c *Client) CreatePR(ctx context.Context, id review.RepoID, req review.CreatePRRequest) (*review.PR, error) {
	mr, resp, err := c.gl.MergeRequests.CreateMergeRequest(projectPath(id), &gitlab.CreateMergeRequestOptions{
		Title:        &req.Title,
		Description:  &req.Body,
		SourceBranch: &req.Head,
		TargetBranch: &req.Base,
	}, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			if existing, ferr := c.FindOpenPRForBranch(ctx, id, req.Head); ferr == nil && existing != nil {
				return nil, &review.PRAlreadyExistsError{Number: existing.Number}
			}
		}
		return nil, mapError(err, resp)
	}
	if req.Draft {
		title := "Draft: " + mr.Title
		mr, resp, err = c.gl.MergeRequests.UpdateMergeRequest(projectPath(id), mr.IID, &gitlab.UpdateMergeRequestOptions{
			Title: &title,
		}, gitlab.WithContext(ctx))
		if err != nil {
			return nil, mapError(err, resp)
		}
	}
	return toPRFull(mr), nil
}

// UpdatePR patches an existing MR.
func (c *Client) UpdatePR(ctx context.Context, id review.RepoID, number int, req review.UpdatePRRequest) (*review.PR, error) {
	opts := &gitlab.UpdateMergeRequestOptions{}
	if req.Base != "" {
		opts.TargetBranch = &req.Base
	}
	if req.Title != "" {
		opts.Title = &req.Title
	}
	if req.Body != "" {
		opts.Description = &req.Body
	}

	mr, resp, err := c.gl.MergeRequests.UpdateMergeRequest(projectPath(id), number, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, mapError(err, resp)
	}
	return toPRFull(mr), nil
}

// ListPRs enumerates MRs in the given state, paginating by 100.
func (c *Client) ListPRs(ctx context.Context, id review.RepoID, state review.State, onProgress review.ProgressFunc) (*review.ListResult, error) {
	glState := "opened"
	if state != review.Open && state != review.Draft {
		glState = "closed"
	}

	result := &review.ListResult{AllAuthors: make(map[string]struct{})}
	opts := &gitlab.ListProjectMergeRequestsOptions{
		State:       &glState,
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	for {
		mrs, resp, err := c.gl.MergeRequests.ListProjectMergeRequests(projectPath(id), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, mapError(err, resp)
		}

		for _, mr := range mrs {
			pr := toPR(mr)
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

// ListClosedPRsWithCache enumerates closed MRs bounded by cache's
// watermark, per the algorithm in spec §4.3.
func (c *Client) ListClosedPRsWithCache(ctx context.Context, id review.RepoID, cache review.Cache, onProgress review.ProgressFunc) (*review.ListResult, error) {
	watermark := cache.Watermark()

	closedState := "closed"
	updatedAt := "updated_at"
	desc := "desc"
	opts := &gitlab.ListProjectMergeRequestsOptions{
		State:       &closedState,
		OrderBy:     &updatedAt,
		Sort:        &desc,
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	var fresh []*review.PR
	allAuthors := make(map[string]struct{})
	hitWatermark := false

	for {
		mrs, resp, err := c.gl.MergeRequests.ListProjectMergeRequests(projectPath(id), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, mapError(err, resp)
		}

		for _, mr := range mrs {
			pr := toPR(mr)
			allAuthors[pr.Author] = struct{}{}
			fresh = append(fresh, pr)

			if watermark != "" && pr.UpdatedAt.UTC().Format(time.RFC3339) <= watermark {
				hitWatermark = true
			}
		}

		if onProgress != nil {
			onProgress(len(fresh))
		}

		shortPage := len(mrs) < opts.PerPage
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
