// package storagetest holds behaviour checks shared by every [storage.Storage] implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/storage"
)

// Factory returns a fresh, empty storage for one subtest.
type Factory func(t *testing.T) *storage.Storage

// Account returns a valid account keyed by id.
func Account(id string) models.Account {
	return models.Account{
		ID:            id,
		User:          models.User{Username: id, AccountType: "BUSINESS"},
		Token:         models.Token{AccessToken: "token-" + id, TokenType: "bearer", ExpiresIn: 2592000},
		LastRefreshed: 1_700_000_000_000,
	}
}

// Boards returns n boards owned by accountID.
func Boards(accountID string, ids ...string) []models.Board {
	boards := make([]models.Board, 0, len(ids))
	for _, id := range ids {
		boards = append(boards, models.Board{
			ID:       id,
			Name:     "Board " + id,
			Privacy:  "PUBLIC",
			Owner:    models.BoardOwner{Username: accountID},
			PinCount: 3,
		})
	}
	return boards
}

// Run exercises the account and board contracts against storages built by newStorage.
func Run(t *testing.T, newStorage Factory) {
	t.Helper()
	ctx := context.Background()
	const owner = "owner-1"

	t.Run("Accounts", func(t *testing.T) {
		t.Run("List empty", func(t *testing.T) {
			st := newStorage(t)
			accounts, err := st.Accounts.List(ctx, owner)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if accounts == nil || len(accounts) != 0 {
				t.Errorf("expected empty non-nil list, got %v", accounts)
			}
		})

		t.Run("Save then Get", func(t *testing.T) {
			st := newStorage(t)
			if err := st.Accounts.Save(ctx, owner, Account("alice")); err != nil {
				t.Fatalf("save failed: %v", err)
			}

			got, err := st.Accounts.Get(ctx, owner, "alice")
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if got.ID != "alice" || got.Token.AccessToken != "token-alice" {
				t.Errorf("unexpected account %+v", got)
			}
		})

		t.Run("Save replaces", func(t *testing.T) {
			st := newStorage(t)
			acc := Account("alice")
			if err := st.Accounts.Save(ctx, owner, acc); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			acc.Token.AccessToken = "rotated"
			if err := st.Accounts.Save(ctx, owner, acc); err != nil {
				t.Fatalf("second save failed: %v", err)
			}

			accounts, err := st.Accounts.List(ctx, owner)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(accounts) != 1 || accounts[0].Token.AccessToken != "rotated" {
				t.Errorf("expected one replaced account, got %+v", accounts)
			}
		})

		t.Run("Get missing is NotFound", func(t *testing.T) {
			st := newStorage(t)
			_, err := st.Accounts.Get(ctx, owner, "nobody")
			if !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})

		t.Run("List returns all sorted", func(t *testing.T) {
			st := newStorage(t)
			for _, id := range []string{"carol", "alice", "bob"} {
				if err := st.Accounts.Save(ctx, owner, Account(id)); err != nil {
					t.Fatalf("save %s failed: %v", id, err)
				}
			}

			accounts, err := st.Accounts.List(ctx, owner)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(accounts) != 3 || accounts[0].ID != "alice" || accounts[2].ID != "carol" {
				t.Errorf("unexpected accounts %+v", accounts)
			}
		})

		t.Run("Remove is idempotent", func(t *testing.T) {
			st := newStorage(t)
			if err := st.Accounts.Save(ctx, owner, Account("alice")); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			for i := 0; i < 2; i++ {
				if err := st.Accounts.Remove(ctx, owner, "alice"); err != nil {
					t.Fatalf("remove %d failed: %v", i, err)
				}
			}
			if err := st.Accounts.Remove(ctx, owner, "never-existed"); err != nil {
				t.Fatalf("remove of unknown id failed: %v", err)
			}
			if _, err := st.Accounts.Get(ctx, owner, "alice"); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected removed account to be gone, got %v", err)
			}
		})

		t.Run("Owners are isolated", func(t *testing.T) {
			st := newStorage(t)
			if err := st.Accounts.Save(ctx, owner, Account("alice")); err != nil {
				t.Fatalf("save failed: %v", err)
			}

			// scoped backends refuse other owners outright
			accounts, err := st.Accounts.List(ctx, "owner-2")
			if errors.Is(err, shared.ErrUnauthorized) {
				return
			}
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(accounts) != 0 {
				t.Errorf("expected no accounts for another owner, got %+v", accounts)
			}
		})

		t.Run("Empty owner is Unauthenticated", func(t *testing.T) {
			st := newStorage(t)
			err := st.Accounts.Save(ctx, "", Account("alice"))
			if !errors.Is(err, shared.ErrUnauthenticated) {
				t.Fatalf("expected unauthenticated, got %v", err)
			}
		})
	})

	t.Run("Boards", func(t *testing.T) {
		t.Run("ListByAccount empty", func(t *testing.T) {
			st := newStorage(t)
			boards, err := st.Boards.ListByAccount(ctx, owner)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if boards == nil || len(boards) != 0 {
				t.Errorf("expected empty non-nil map, got %v", boards)
			}
		})

		t.Run("Save replaces the whole list", func(t *testing.T) {
			st := newStorage(t)
			if err := st.Boards.Save(ctx, owner, "alice", Boards("alice", "b1", "b2")); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			if err := st.Boards.Save(ctx, owner, "alice", Boards("alice", "b3")); err != nil {
				t.Fatalf("second save failed: %v", err)
			}

			boards, err := st.Boards.Get(ctx, owner, "alice")
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if len(boards) != 1 || boards[0].ID != "b3" {
				t.Errorf("expected [b3], got %+v", boards)
			}
		})

		t.Run("Get missing is empty", func(t *testing.T) {
			st := newStorage(t)
			boards, err := st.Boards.Get(ctx, owner, "nobody")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(boards) != 0 {
				t.Errorf("expected no boards, got %+v", boards)
			}
		})

		t.Run("ListByAccount keys by account", func(t *testing.T) {
			st := newStorage(t)
			if err := st.Boards.Save(ctx, owner, "alice", Boards("alice", "b1")); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			if err := st.Boards.Save(ctx, owner, "bob", Boards("bob", "b2", "b3")); err != nil {
				t.Fatalf("save failed: %v", err)
			}

			byAccount, err := st.Boards.ListByAccount(ctx, owner)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(byAccount["alice"]) != 1 || len(byAccount["bob"]) != 2 {
				t.Errorf("unexpected boards %+v", byAccount)
			}
		})

		t.Run("Remove is idempotent", func(t *testing.T) {
			st := newStorage(t)
			if err := st.Boards.Save(ctx, owner, "alice", Boards("alice", "b1")); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			for i := 0; i < 2; i++ {
				if err := st.Boards.Remove(ctx, owner, "alice"); err != nil {
					t.Fatalf("remove %d failed: %v", i, err)
				}
			}

			byAccount, err := st.Boards.ListByAccount(ctx, owner)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if _, ok := byAccount["alice"]; ok {
				t.Error("expected alice's boards to be gone")
			}
		})
	})
}
