package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"go.abhg.dev/gs-sync/internal/secret"
)

const secretKey = "token"

// authCmd groups the secret-storage subcommands: storing, reporting and
// removing a cached token per host. The token resolution used by the
// other commands (env vars, VCS config, config file) does not read this
// cache.
type authCmd struct {
	Login  authLoginCmd  `cmd:"" help:"Cache a token for a review-service host."`
	Status authStatusCmd `cmd:"" help:"Report whether a token is cached for a host."`
	Logout authLogoutCmd `cmd:"" help:"Remove the cached token for a host."`
}

type authLoginCmd struct {
	Host  string `arg:"" default:"github.com" help:"Review-service host to cache a token for."`
	Token string `help:"Token to cache. Read from stdin if omitted."`
}

func (c *authLoginCmd) Run(ctx context.Context, logger *log.Logger) error {
	token := c.Token
	if token == "" {
		fmt.Fprint(os.Stderr, "Token: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return fmt.Errorf("read token: %w", scanner.Err())
		}
		token = strings.TrimSpace(scanner.Text())
	}
	if token == "" {
		return fmt.Errorf("no token provided")
	}

	stash := secretStash(logger)
	if err := stash.SaveSecret(c.Host, secretKey, token); err != nil {
		return fmt.Errorf("cache token for %s: %w", c.Host, err)
	}

	logger.Infof("cached token for %s", c.Host)
	return nil
}

type authStatusCmd struct {
	Host string `arg:"" default:"github.com" help:"Review-service host to check."`
}

func (c *authStatusCmd) Run(ctx context.Context, logger *log.Logger) error {
	stash := secretStash(logger)
	_, err := stash.LoadSecret(c.Host, secretKey)
	switch {
	case err == nil:
		fmt.Printf("%s: token cached\n", c.Host)
		return nil
	case errors.Is(err, secret.ErrNotFound):
		fmt.Printf("%s: no cached token\n", c.Host)
		return nil
	default:
		return fmt.Errorf("check token for %s: %w", c.Host, err)
	}
}

type authLogoutCmd struct {
	Host string `arg:"" default:"github.com" help:"Review-service host to forget."`
}

func (c *authLogoutCmd) Run(ctx context.Context, logger *log.Logger) error {
	stash := secretStash(logger)
	if err := stash.DeleteSecret(c.Host, secretKey); err != nil {
		return fmt.Errorf("forget token for %s: %w", c.Host, err)
	}
	logger.Infof("forgot cached token for %s", c.Host)
	return nil
}
