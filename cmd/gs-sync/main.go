// Command gs-sync reconciles a local stack of git branches against their
// open pull/merge requests on a hosted review service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		cancel()
	}()

	var cli rootCmd
	kctx := kong.Parse(&cli,
		kong.Name("gs-sync"),
		kong.Description("Bidirectional synchronization of a stacked-branch tree against its pull requests."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	logger := newLogger(cli.Verbose, os.Stderr)
	kctx.Bind(logger)

	if err := kctx.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// newLogger builds the logger shared by every subcommand. charmbracelet/log
// detects on its own whether w is a terminal and colors accordingly, giving
// us "ANSI coloring on TTY only" (spec §7) without any extra plumbing here.
func newLogger(verbose bool, w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: false,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// rootCmd is the top-level command tree, matching the subcommands of
// spec §6.5 plus an auth group for the secret-storage flow.
type rootCmd struct {
	Verbose bool `short:"v" help:"Enable debug logging."`

	List    listCmd    `cmd:"" help:"List tracked branches and their PR status."`
	Status  statusCmd  `cmd:"" help:"Show the sync plan without applying it."`
	Sync    syncCmd    `cmd:"" help:"Reconcile the local stack against its pull requests."`
	New     newCmd     `cmd:"" help:"Create and track a new branch on top of the current one."`
	Add     addCmd     `cmd:"" help:"Start tracking an existing branch."`
	Mount   mountCmd   `cmd:"" help:"Attach a tracked branch under a new parent."`
	Note    noteCmd    `cmd:"" help:"Set or edit a tracked branch's free-form note."`
	Unmount unmountCmd `cmd:"" help:"Stop tracking a branch, repointing its children."`
	Restack restackCmd `cmd:"" help:"Rebase tracked branches onto their recorded parents."`
	Auth    authCmd    `cmd:"" help:"Manage cached review-service credentials."`
}
