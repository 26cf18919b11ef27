// Package prcache implements the closed-PR watermark cache described in
// spec §4.3/§6.2: a per-repository, on-disk cache that bounds remote
// fetches for closed PRs to "changed since last sync", while remaining the
// authoritative view of historical closed PRs.
package prcache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"go.abhg.dev/gs-sync/internal/review"
)

const documentVersion = 1

// CachedPR mirrors review.PR with the added timestamps the cache needs to
// maintain its watermark.
type CachedPR struct {
	Number    int         `yaml:"number"`
	Head      string      `yaml:"head"`
	HeadSHA   string      `yaml:"head_sha,omitempty"`
	Base      string      `yaml:"base"`
	State     review.State `yaml:"-"`
	StateName string      `yaml:"state"`
	Title     string      `yaml:"title"`
	URL       string      `yaml:"url"`
	Author    string      `yaml:"author"`
	HeadRepo  string      `yaml:"head_repo,omitempty"`
	UpdatedAt time.Time   `yaml:"updated_at"`
	MergedAt  time.Time   `yaml:"merged_at,omitempty"`
}

func fromPR(pr *review.PR) CachedPR {
	return CachedPR{
		Number:    pr.Number,
		Head:      pr.Head,
		HeadSHA:   pr.HeadSHA,
		Base:      pr.Base,
		State:     pr.State,
		StateName: pr.State.String(),
		Title:     pr.Title,
		URL:       pr.URL,
		Author:    pr.Author,
		HeadRepo:  pr.HeadRepo,
		UpdatedAt: pr.UpdatedAt,
		MergedAt:  pr.MergedAt,
	}
}

func (c CachedPR) toPR() *review.PR {
	state := stateFromName(c.StateName)
	return &review.PR{
		Number:    c.Number,
		Head:      c.Head,
		HeadSHA:   c.HeadSHA,
		Base:      c.Base,
		State:     state,
		Title:     c.Title,
		URL:       c.URL,
		Author:    c.Author,
		HeadRepo:  c.HeadRepo,
		UpdatedAt: c.UpdatedAt,
		MergedAt:  c.MergedAt,
	}
}

func stateFromName(name string) review.State {
	switch name {
	case "draft":
		return review.Draft
	case "open":
		return review.Open
	case "merged":
		return review.Merged
	case "closed":
		return review.Closed
	default:
		return review.Closed
	}
}

// repoEntry is the persisted cache state for one "owner/repo" full name.
type repoEntry struct {
	Watermark string               `yaml:"watermark"` // ISO-8601, possibly empty
	ClosedPRs map[string]CachedPR `yaml:"closed_prs,omitempty"`
}

// document is the on-disk shape described in spec §6.2.
type document struct {
	Version int                  `yaml:"version"`
	Repos   map[string]repoEntry `yaml:"repos,omitempty"`
}

// Cache is the per-repository view the ListClosedPRsWithCache algorithm
// operates against. It satisfies review.Cache.
type Cache struct {
	store    *Store
	fullName string
	entry    repoEntry
}

// Watermark returns the ISO-8601 watermark string, or "" if the cache has
// never been populated for this repository.
func (c *Cache) Watermark() string { return c.entry.Watermark }

// Closed returns the cached closed PRs, keyed by head branch.
func (c *Cache) Closed() map[string]*review.PR {
	out := make(map[string]*review.PR, len(c.entry.ClosedPRs))
	for head, cpr := range c.entry.ClosedPRs {
		out[head] = cpr.toPR()
	}
	return out
}

// Merge folds a freshly fetched page of closed PRs into the cache: fresh
// entries win per head branch, and the watermark advances to
// max(existing, maxUpdatedAtSeen). It does not save to disk; call
// (*Store).Save to persist.
func (c *Cache) Merge(fresh []*review.PR) {
	if c.entry.ClosedPRs == nil {
		c.entry.ClosedPRs = make(map[string]CachedPR, len(fresh))
	}

	maxSeen := c.entry.Watermark
	for _, pr := range fresh {
		c.entry.ClosedPRs[pr.Head] = fromPR(pr)
		ts := pr.UpdatedAt.UTC().Format(time.RFC3339)
		if ts > maxSeen {
			maxSeen = ts
		}
	}
	c.entry.Watermark = maxSeen
}

// Store loads and saves the prcache document, keyed by repository full
// name ("owner/repo").
//
// Persistence follows the same write-temp-then-rename discipline as
// internal/stack.Store (spec §5: "cache-save failures are logged and
// non-fatal" — callers should treat Save errors as advisory, not fatal).
type Store struct {
	path string
	doc  *document
}

// NewStore returns a Store backed by the document at path. The document is
// not read until Load is called.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the document from disk, tolerating a missing file.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.doc = &document{Version: documentVersion, Repos: make(map[string]repoEntry)}
			return nil
		}
		return fmt.Errorf("read PR cache: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse PR cache: %w", err)
	}
	if doc.Repos == nil {
		doc.Repos = make(map[string]repoEntry)
	}
	if doc.Version == 0 {
		doc.Version = documentVersion
	}
	s.doc = &doc
	return nil
}

// For returns the Cache view for the given repository full name
// ("owner/repo"), creating an empty entry if absent. Load must have been
// called first.
func (s *Store) For(fullName string) *Cache {
	if s.doc == nil {
		s.doc = &document{Version: documentVersion, Repos: make(map[string]repoEntry)}
	}
	return &Cache{store: s, fullName: fullName, entry: s.doc.Repos[fullName]}
}

// Put writes a Cache's state back into the in-memory document. Call Save
// afterward to persist.
func (s *Store) Put(c *Cache) {
	if s.doc.Repos == nil {
		s.doc.Repos = make(map[string]repoEntry)
	}
	s.doc.Repos[c.fullName] = c.entry
}

// Save writes the document atomically.
func (s *Store) Save() error {
	data, err := yaml.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("marshal PR cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create PR cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prcache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp PR cache file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp PR cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp PR cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp PR cache file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp PR cache file: %w", err)
	}
	return os.Rename(tmpPath, s.path)
}
