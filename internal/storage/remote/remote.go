// package remote implements [storage.Storage] on a hosted document store.
//
// Each account is one document at owners/<owner>/accounts/<id> and each board list one document at
// owners/<owner>/boards/<id>. Writes go straight to the server; the local process keeps nothing.
// The storage also implements [storage.Watcher] so a store can follow changes made elsewhere.
package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/storage"
)

// Storage is a [storage.Storage] whose collections are backed by a [Client].
type Storage struct {
	*storage.Storage
	client *Client
}

var _ storage.Watcher = (*Storage)(nil)

// New returns remote storage using client.
func New(client *Client) *Storage {
	return &Storage{
		Storage: &storage.Storage{
			Accounts: &AccountStorage{client},
			Boards:   &BoardStorage{client},
		},
		client: client,
	}
}

// Subscribe implements [storage.Watcher].
func (s *Storage) Subscribe(path string, onChange func(json.RawMessage), onError func(error)) func() {
	return s.client.Subscribe(path, onChange, onError)
}

// AccountStorage implements [storage.AccountStorage].
type AccountStorage struct {
	c *Client
}

// Save writes the account document.
func (s *AccountStorage) Save(ctx context.Context, owner string, account models.Account) error {
	const op = "remote.accounts.save"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return err
	}
	if err := storage.ValidateAccountID(op, account.ID); err != nil {
		return err
	}
	return s.c.Put(ctx, op, storage.AccountPath(owner, account.ID), account)
}

// Get reads one account document.
func (s *AccountStorage) Get(ctx context.Context, owner, accountID string) (*models.Account, error) {
	const op = "remote.accounts.get"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return nil, err
	}
	if err := storage.ValidateAccountID(op, accountID); err != nil {
		return nil, err
	}

	data, ok, err := s.c.Get(ctx, op, storage.AccountPath(owner, accountID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.NewError(shared.KindNotFound, op, "Account not found", fmt.Errorf("account %s", accountID))
	}

	var acc models.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, shared.NewError(shared.KindPersistenceRead, op, "Stored data is corrupted", err)
	}
	if acc.ID == "" {
		acc.ID = accountID
	}
	return &acc, nil
}

// List reads the accounts collection.
func (s *AccountStorage) List(ctx context.Context, owner string) ([]models.Account, error) {
	const op = "remote.accounts.list"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return nil, err
	}

	data, _, err := s.c.Get(ctx, op, storage.AccountsPath(owner))
	if err != nil {
		return nil, err
	}
	accounts, err := storage.DecodeAccounts(data)
	if err != nil {
		return nil, shared.NewError(shared.KindPersistenceRead, op, "Stored data is corrupted", err)
	}
	return accounts, nil
}

// Remove deletes the account document.
func (s *AccountStorage) Remove(ctx context.Context, owner, accountID string) error {
	const op = "remote.accounts.remove"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return err
	}
	if err := storage.ValidateAccountID(op, accountID); err != nil {
		return err
	}
	return s.c.Delete(ctx, op, storage.AccountPath(owner, accountID))
}

// BoardStorage implements [storage.BoardStorage].
type BoardStorage struct {
	c *Client
}

// Save replaces the board list document of accountID.
func (s *BoardStorage) Save(ctx context.Context, owner, accountID string, boards []models.Board) error {
	const op = "remote.boards.save"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return err
	}
	if err := storage.ValidateAccountID(op, accountID); err != nil {
		return err
	}
	if boards == nil {
		boards = []models.Board{}
	}
	return s.c.Put(ctx, op, storage.AccountBoardsPath(owner, accountID), boards)
}

// Get reads the board list of accountID.
func (s *BoardStorage) Get(ctx context.Context, owner, accountID string) ([]models.Board, error) {
	const op = "remote.boards.get"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return nil, err
	}
	if err := storage.ValidateAccountID(op, accountID); err != nil {
		return nil, err
	}

	data, ok, err := s.c.Get(ctx, op, storage.AccountBoardsPath(owner, accountID))
	if err != nil {
		return nil, err
	}
	boards := []models.Board{}
	if !ok {
		return boards, nil
	}
	if err := json.Unmarshal(data, &boards); err != nil {
		return nil, shared.NewError(shared.KindPersistenceRead, op, "Stored data is corrupted", err)
	}
	if boards == nil {
		boards = []models.Board{}
	}
	return boards, nil
}

// ListByAccount reads the boards collection.
func (s *BoardStorage) ListByAccount(ctx context.Context, owner string) (map[string][]models.Board, error) {
	const op = "remote.boards.list"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return nil, err
	}

	data, _, err := s.c.Get(ctx, op, storage.BoardsPath(owner))
	if err != nil {
		return nil, err
	}
	boards, err := storage.DecodeBoards(data)
	if err != nil {
		return nil, shared.NewError(shared.KindPersistenceRead, op, "Stored data is corrupted", err)
	}
	return boards, nil
}

// Remove deletes the board list document of accountID.
func (s *BoardStorage) Remove(ctx context.Context, owner, accountID string) error {
	const op = "remote.boards.remove"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return err
	}
	if err := storage.ValidateAccountID(op, accountID); err != nil {
		return err
	}
	return s.c.Delete(ctx, op, storage.AccountBoardsPath(owner, accountID))
}
