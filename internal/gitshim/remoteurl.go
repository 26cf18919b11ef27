package gitshim

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// scpLike matches SCP-style SSH remote URLs: user@host:owner/repo(.git)?
var scpLike = regexp.MustCompile(`^(?:[^@/]+@)?([^:/]+):(.+)$`)

var gitProtocols = []string{"ssh://", "git://", "git+ssh://", "git+https://", "https://", "http://"}

func hasGitProtocol(raw string) bool {
	for _, p := range gitProtocols {
		if strings.HasPrefix(raw, p) {
			return true
		}
	}
	return false
}

// ParseRemoteURL parses a git remote URL into a host/owner/repo triplet.
// It accepts SSH shorthand (user@host:owner/repo.git), explicit ssh://,
// https://, and git:// forms, mirroring RepoAdapter.remoteURL in spec §4.1.
func ParseRemoteURL(raw string) (RemoteTriplet, error) {
	raw = strings.TrimSpace(raw)

	var host, path string
	switch {
	case hasGitProtocol(raw):
		u, err := url.Parse(raw)
		if err != nil {
			return RemoteTriplet{}, fmt.Errorf("parse remote URL %q: %w", raw, err)
		}
		host, path = u.Host, strings.TrimPrefix(u.Path, "/")
	default:
		m := scpLike.FindStringSubmatch(raw)
		if m == nil {
			return RemoteTriplet{}, fmt.Errorf("unrecognized remote URL: %q", raw)
		}
		host, path = m[1], m[2]
	}

	path = strings.TrimSuffix(path, ".git")
	owner, repo, ok := strings.Cut(path, "/")
	if !ok || owner == "" || repo == "" {
		return RemoteTriplet{}, fmt.Errorf("remote URL %q does not contain an owner/repo path", raw)
	}
	// Allow nested GitLab-style group paths ("group/subgroup/repo") by
	// keeping everything up to the last slash as the owner.
	if idx := strings.LastIndex(repo, "/"); idx >= 0 {
		owner = owner + "/" + repo[:idx]
		repo = repo[idx+1:]
	}

	return RemoteTriplet{Host: host, Owner: owner, Repo: repo}, nil
}

// parseShortstat parses the output of `git diff --shortstat`, e.g.
// " 2 files changed, 10 insertions(+), 3 deletions(-)".
func parseShortstat(s string) (additions, deletions int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		var n int
		switch {
		case strings.Contains(part, "insertion"):
			if _, err := fmt.Sscanf(part, "%d", &n); err == nil {
				additions = n
			}
		case strings.Contains(part, "deletion"):
			if _, err := fmt.Sscanf(part, "%d", &n); err == nil {
				deletions = n
			}
		}
	}
	return additions, deletions, nil
}
