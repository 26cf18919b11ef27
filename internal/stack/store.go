package stack

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// RepoDocument is the persisted per-repository entry described in spec
// §6.1: the stack tree plus the bounded cache of PR-head commit ids that
// have been observed on the remote.
type RepoDocument struct {
	Tree           *WireNode `yaml:"tree"`
	SeenRemoteSHAs []string  `yaml:"seen_remote_shas,omitempty"`
}

// Document is the full persisted state: a map from a per-repository key
// string, chosen by the caller, to that repository's RepoDocument.
// cmd/gs-sync keys it by the remote's "<host>/<owner>/<repo>", not by the
// repository root path. The document is marshaled as a bare mapping of
// key to RepoDocument — Repos is its only field, handled directly by Store.
type Document struct {
	Repos map[string]*RepoDocument
}

// Store loads and saves the persisted state document atomically.
//
// Persistence is atomic at the whole-document level (spec §3): a save
// either publishes the entire document or leaves the prior version intact.
// This is implemented with the standard write-temp-then-rename sequence;
// none of the pack's persistence layers (the teacher's git-notes-backed
// store, or av's read-only viper config) perform a transactional
// filesystem write themselves, so this one small primitive is built on
// os.CreateTemp + os.Rename rather than a dependency (see DESIGN.md).
type Store struct {
	path string
}

// NewStore returns a Store backed by the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the document from disk. A missing file is treated as an empty
// document, not an error.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{Repos: make(map[string]*RepoDocument)}, nil
		}
		return nil, fmt.Errorf("read state document: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc.Repos); err != nil {
		return nil, fmt.Errorf("parse state document: %w", err)
	}
	if doc.Repos == nil {
		doc.Repos = make(map[string]*RepoDocument)
	}
	return &doc, nil
}

// Save writes the document atomically: a temp file in the same directory
// is written and fsynced, then renamed over the destination, so a reader
// never observes a partially written document.
func (s *Store) Save(doc *Document) error {
	data, err := yaml.Marshal(doc.Repos)
	if err != nil {
		return fmt.Errorf("marshal state document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp state file into place: %w", err)
	}
	return nil
}

// RepoState is the ephemeral, in-memory per-repository container: the
// mutable Tree plus its seen-remote-SHA set.
type RepoState struct {
	Tree           *Tree
	SeenRemoteSHAs map[string]struct{}
}

// EnsureTrunk returns the RepoState for repoKey, creating a fresh one
// rooted at trunk if absent.
func (d *Document) EnsureTrunk(repoKey, trunk string) (*RepoState, error) {
	rd, ok := d.Repos[repoKey]
	if !ok {
		rd = &RepoDocument{}
		d.Repos[repoKey] = rd
	}

	if rd.Tree == nil {
		rd.Tree = NewTree(trunk).ToWire()
	}

	tree, err := FromWire(rd.Tree)
	if err != nil {
		return nil, fmt.Errorf("load tree for %s: %w", repoKey, err)
	}

	seen := make(map[string]struct{}, len(rd.SeenRemoteSHAs))
	for _, sha := range rd.SeenRemoteSHAs {
		seen[sha] = struct{}{}
	}

	return &RepoState{Tree: tree, SeenRemoteSHAs: seen}, nil
}

// Put writes state back into the document for repoKey, converting the
// in-memory Tree back to wire form and the seen-SHA set back to a sorted
// slice (sorted so saved documents are deterministic byte-for-byte given
// the same logical state, which keeps round-trip tests and diffs sane).
func (d *Document) Put(repoKey string, state *RepoState) {
	shas := make([]string, 0, len(state.SeenRemoteSHAs))
	for sha := range state.SeenRemoteSHAs {
		shas = append(shas, sha)
	}
	sort.Strings(shas)

	d.Repos[repoKey] = &RepoDocument{
		Tree:           state.Tree.ToWire(),
		SeenRemoteSHAs: shas,
	}
}
