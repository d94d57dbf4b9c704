package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pinx/internal/formatter"
	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/store"
	"github.com/urfave/cli/v3"
)

// AccountsList prints connected accounts, marking the selected one.
func (r *Runner) AccountsList(ctx context.Context, cmd *cli.Command) error {
	s, cleanup, err := r.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	state := s.Snapshot()
	if cmd.Bool("json") {
		exports := make([]*formatter.AccountExport, len(state.Accounts))
		for i, acc := range state.Accounts {
			boards, _ := state.BoardsFor(acc.ID)
			exports[i] = formatter.NewAccountExport(acc, boards)
		}
		return r.writeJSON(exports, cmd.Bool("pretty"))
	}

	if len(state.Accounts) == 0 {
		return r.writePlain("No accounts connected. Run `pinx auth login` to connect one.\n")
	}

	r.writePlain("Found %d accounts:\n\n", len(state.Accounts))
	for i, acc := range state.Accounts {
		marker := " "
		if acc.ID == state.SelectedAccountID {
			marker = "●"
		}
		boards, ok := state.BoardsFor(acc.ID)
		r.writePlain("%s %d. %s (@%s)\n", marker, i+1, acc.DisplayName(), acc.ID)
		if ok {
			r.writePlain("     Boards: %d\n", len(boards))
		} else {
			r.writePlain("     Boards: not fetched\n")
		}
		r.writePlain("     Last refreshed: %s\n", acc.RefreshedAt().Format("2006-01-02 15:04"))
	}
	return nil
}

// AccountsShow prints one account, the selected one when no ID is given.
func (r *Runner) AccountsShow(ctx context.Context, cmd *cli.Command) error {
	s, cleanup, err := r.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	account, err := resolveAccount(s, cmd.StringArg("id"))
	if err != nil {
		return err
	}
	boards, _ := s.Snapshot().BoardsFor(account.ID)

	if cmd.Bool("json") {
		return r.writeJSON(formatter.NewAccountExport(account, boards), true)
	}

	r.writePlainHeader(account.DisplayName())
	r.writePlain("Username: %s\n", account.ID)
	if account.User.AccountType != "" {
		r.writePlain("Account type: %s\n", account.User.AccountType)
	}
	if account.User.WebsiteURL != "" {
		r.writePlain("Website: %s\n", account.User.WebsiteURL)
	}
	r.writePlain("Boards: %d\n", len(boards))
	r.writePlain("Followers: %d\n", account.User.FollowerCount)
	r.writePlain("Last refreshed: %s\n", account.RefreshedAt().Format("2006-01-02 15:04:05"))
	if expires := account.Token.ExpiresAt(account.RefreshedAt()); !expires.IsZero() {
		r.writePlain("Token expires: %s\n", expires.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// AccountsRemove disconnects an account and deletes its boards.
func (r *Runner) AccountsRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: account id", shared.ErrMissingArgument)
	}

	s, cleanup, err := r.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := s.Account(id); err != nil {
		return err
	}
	if err := s.RemoveAccount(ctx, id); err != nil {
		return err
	}

	r.logger.Info("account removed", "account", id)
	return r.writePlain("✓ Disconnected @%s\n", id)
}

// resolveAccount returns the account with id, or the selected account when id is empty.
func resolveAccount(s *store.Store, id string) (models.Account, error) {
	if id != "" {
		return s.Account(id)
	}
	account, ok := s.Snapshot().SelectedAccount()
	if !ok {
		return models.Account{}, fmt.Errorf("%w: no account selected, pass an account id", shared.ErrMissingArgument)
	}
	return account, nil
}
