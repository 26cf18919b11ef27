package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"go.abhg.dev/gs-sync/internal/config"
	"go.abhg.dev/gs-sync/internal/gitshim"
	"go.abhg.dev/gs-sync/internal/review"
	"go.abhg.dev/gs-sync/internal/review/github"
	"go.abhg.dev/gs-sync/internal/review/gitlab"
	"go.abhg.dev/gs-sync/internal/review/prcache"
	"go.abhg.dev/gs-sync/internal/secret"
	"go.abhg.dev/gs-sync/internal/stack"
	"go.abhg.dev/gs-sync/internal/sync"
)

// globalFlags are accepted by every subcommand that touches a repository.
type globalFlags struct {
	Remote string `name:"remote" default:"origin" help:"Git remote that hosts the review service."`
	Trunk  string `name:"trunk" default:"main" help:"Trunk branch new repos are rooted at."`
}

// app bundles everything a subcommand needs to run one sync-engine
// operation against the repository in the current working directory. It
// exists so each command's Run method stays a short sequence of calls
// instead of re-deriving this wiring every time.
type app struct {
	adapter  *gitshim.CLIAdapter
	review   review.Client
	repoID   review.RepoID
	remote   string
	stateKey string

	syncAuthors []string

	stackStore *stack.Store
	prcStore   *prcache.Store

	log *log.Logger
}

func newApp(ctx context.Context, flags globalFlags, logger *log.Logger) (*app, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	metrics := gitshim.NewMetrics()
	adapter := gitshim.NewCLIAdapter(dir, logger, metrics)

	triplet, err := adapter.RemoteURL(ctx, flags.Remote)
	if err != nil {
		return nil, fmt.Errorf("resolve remote %q: %w", flags.Remote, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	token, err := cfg.ResolveToken(triplet.Host)
	if err != nil {
		return nil, fmt.Errorf("resolve token for %s: %w", triplet.Host, err)
	}

	reviewClient, err := newReviewClient(ctx, triplet.Host, token)
	if err != nil {
		return nil, fmt.Errorf("create review client for %s: %w", triplet.Host, err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".local", "state", "gs-sync")

	stateKey := fmt.Sprintf("%s/%s/%s", triplet.Host, triplet.Owner, triplet.Repo)

	return &app{
		adapter:     adapter,
		review:      reviewClient,
		repoID:      review.RepoID{Host: triplet.Host, Owner: triplet.Owner, Repo: triplet.Repo},
		remote:      flags.Remote,
		stateKey:    stateKey,
		syncAuthors: cfg.SyncAuthors,
		stackStore:  stack.NewStore(filepath.Join(dataDir, "state.yaml")),
		prcStore:    prcache.NewStore(filepath.Join(dataDir, "prs.yaml")),
		log:         logger,
	}, nil
}

// newReviewClient picks the forge implementation by host.
func newReviewClient(ctx context.Context, host, token string) (review.Client, error) {
	if host == gitlab.DefaultHost || strings.Contains(host, "gitlab") {
		return gitlab.New(host, token)
	}
	return github.New(ctx, host, token)
}

// loadState loads the persisted document and the RepoState for this
// repository, creating a fresh tree rooted at trunk if none exists yet.
func (a *app) loadState(trunk string) (*stack.Document, *stack.RepoState, error) {
	doc, err := a.stackStore.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load state: %w", err)
	}
	repoState, err := doc.EnsureTrunk(a.stateKey, trunk)
	if err != nil {
		return nil, nil, fmt.Errorf("load tree: %w", err)
	}
	return doc, repoState, nil
}

// saveState persists doc after repoState has been folded back into it, in
// the sequence the sync engine's Persist callback expects to be able to
// call repeatedly: Put then Save.
func (a *app) saveState(doc *stack.Document, repoState *stack.RepoState) error {
	doc.Put(a.stateKey, repoState)
	if err := a.stackStore.Save(doc); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// prCache loads the closed-PR watermark cache for this repository and
// returns a save function that writes it back, mirroring the
// load-then-defer-save shape of loadState/saveState.
func (a *app) prCache() (*prcache.Cache, func() error, error) {
	if err := a.prcStore.Load(); err != nil {
		return nil, nil, fmt.Errorf("load PR cache: %w", err)
	}
	cache := a.prcStore.For(fmt.Sprintf("%s/%s", a.repoID.Owner, a.repoID.Repo))
	save := func() error {
		a.prcStore.Put(cache)
		return a.prcStore.Save()
	}
	return cache, save, nil
}

// secretStash builds the layered token cache described in SPEC_FULL's
// secret-storage section: the system keyring first, falling back to a
// plaintext file when the keyring is unavailable (e.g. headless CI).
func secretStash(logger *log.Logger) secret.Stash {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &secret.FallbackStash{
		Primary: new(secret.Keyring),
		Secondary: &secret.InsecureStash{
			Path: filepath.Join(home, ".local", "state", "gs-sync", "secrets.json"),
			Log:  logger,
		},
	}
}
