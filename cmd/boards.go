package main

import (
	"context"
	"strings"

	"github.com/desertthunder/pinx/internal/formatter"
	"github.com/desertthunder/pinx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// BoardsList prints the stored boards of an account.
func (r *Runner) BoardsList(ctx context.Context, cmd *cli.Command) error {
	s, cleanup, err := r.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	account, err := resolveAccount(s, cmd.String("account"))
	if err != nil {
		return err
	}
	boards, ok := s.Snapshot().BoardsFor(account.ID)

	if cmd.Bool("json") {
		return r.writeJSON(boards, cmd.Bool("pretty"))
	}

	if !ok {
		return r.writePlain("Boards of @%s have not been fetched. Run `pinx boards refresh -a %s`.\n", account.ID, account.ID)
	}

	r.writePlain("Found %d boards for @%s:\n\n", len(boards), account.ID)
	for i, b := range boards {
		r.writePlain("%d. %s\n", i+1, b.Name)
		if b.Description != "" {
			r.writePlain("   Description: %s\n", b.Description)
		}
		r.writePlain("   ID: %s\n", b.ID)
		r.writePlain("   Pins: %d\n", b.PinCount)
		if b.Privacy != "" {
			r.writePlain("   Visibility: %s\n", strings.ToLower(b.Privacy))
		}
		r.writePlain("\n")
	}
	return nil
}

// BoardsRefresh re-fetches boards for the given accounts, or all of them, and stores the results.
func (r *Runner) BoardsRefresh(ctx context.Context, cmd *cli.Command) error {
	s, cleanup, err := r.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	flow, err := r.connectFlow(s)
	if err != nil {
		return err
	}

	opts := tasks.RefreshOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = r.config.Pinterest.RateLimit
	}

	ids := cmd.StringSlice("account")
	r.logger.Info("refreshing boards", "accounts", len(ids), "workers", opts.NumWorkers, "rate", opts.RateLimit)
	r.writePlain("Refreshing boards...\n")

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := r.printProgress(progressCh)
	result, err := flow.RefreshBoards(ctx, progressCh, ids, opts)
	close(progressCh)
	<-printed

	if result != nil {
		r.writePlain("\n")
		r.writePlainHeader("Refresh Complete")
		r.writePlain("Accounts: %d\n", result.Total)
		r.writePlain("Succeeded: %d\n", result.Succeeded)
		r.writePlain("Failed: %d\n", result.Failed)
		for _, res := range result.Results {
			if res.Error != nil {
				r.writePlain("  - %s: %v\n", res.AccountID, res.Error)
			}
		}
	}
	return err
}

// BoardsExport writes an account and its boards in the requested format.
func (r *Runner) BoardsExport(ctx context.Context, cmd *cli.Command) error {
	s, cleanup, err := r.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	account, err := resolveAccount(s, cmd.String("account"))
	if err != nil {
		return err
	}
	boards, _ := s.Snapshot().BoardsFor(account.ID)

	export := formatter.NewAccountExport(account, boards)
	files, err := formatter.Write(export, strings.ToLower(cmd.String("format")), cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("boards exported", "account", account.ID, "boards", len(boards), "files", len(files))
	r.writePlain("✓ Exported %d boards of @%s\n", len(boards), account.ID)
	for _, f := range files {
		r.writePlain("  %s\n", f)
	}
	return nil
}
