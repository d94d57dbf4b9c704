// package local implements [storage.Storage] on a key/blob store, one serialized record per owner and collection.
//
// Accounts live under "pinterest_accounts_<owner>" as an object keyed by account ID and boards under
// "pinterest_boards_<owner>" as an object of board lists keyed by account ID. Every save rewrites the whole record.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/repositories"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/storage"
)

const keyPrefix = "pinterest"

// BlobStore is the key/value surface the adapter needs. [repositories.BlobRepository] implements it.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var _ BlobStore = (*repositories.BlobRepository)(nil)

// New returns a [storage.Storage] backed by blobs.
//
// Both collections share one lock so read-modify-write cycles on a record never interleave.
func New(blobs BlobStore, logger *log.Logger) *storage.Storage {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	b := &backend{blobs: blobs, logger: shared.WithLogger(logger, "storage", "local")}
	return &storage.Storage{
		Accounts: &AccountStorage{b},
		Boards:   &BoardStorage{b},
	}
}

type backend struct {
	mu     sync.Mutex
	blobs  BlobStore
	logger *log.Logger
}

// load decodes the record at key into out. A missing record leaves out untouched.
func (b *backend) load(ctx context.Context, op, key string, out any) error {
	data, err := b.blobs.Get(ctx, key)
	if errors.Is(err, repositories.ErrBlobNotFound) {
		return nil
	}
	if err != nil {
		return shared.NewError(shared.KindPersistenceRead, op, "", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return shared.NewError(shared.KindPersistenceRead, op, "Stored data is corrupted", fmt.Errorf("decode %s: %w", key, err))
	}
	return nil
}

func (b *backend) store(ctx context.Context, op, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return shared.NewError(shared.KindPersistenceWrite, op, "", fmt.Errorf("encode %s: %w", key, err))
	}
	if err := b.blobs.Put(ctx, key, data); err != nil {
		return shared.NewError(shared.KindPersistenceWrite, op, "", err)
	}
	return nil
}

// AccountStorage implements [storage.AccountStorage].
type AccountStorage struct {
	b *backend
}

func accountsKey(owner string) string {
	return repositories.BlobKey(keyPrefix+"_"+storage.AccountsCollection, owner)
}

func (s *AccountStorage) all(ctx context.Context, op, owner string) (map[string]models.Account, error) {
	byID := map[string]models.Account{}
	if err := s.b.load(ctx, op, accountsKey(owner), &byID); err != nil {
		return nil, err
	}
	if byID == nil {
		byID = map[string]models.Account{}
	}
	return byID, nil
}

// Save creates or replaces the account.
func (s *AccountStorage) Save(ctx context.Context, owner string, account models.Account) error {
	const op = "local.accounts.save"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return err
	}
	if err := storage.ValidateAccountID(op, account.ID); err != nil {
		return err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	byID, err := s.all(ctx, op, owner)
	if err != nil {
		return shared.NewError(shared.KindPersistenceWrite, op, "", err)
	}
	byID[account.ID] = account

	if err := s.b.store(ctx, op, accountsKey(owner), byID); err != nil {
		return err
	}
	s.b.logger.Debug("account saved", "owner", owner, "account", account.ID)
	return nil
}

// Get returns the account or a not found error.
func (s *AccountStorage) Get(ctx context.Context, owner, accountID string) (*models.Account, error) {
	const op = "local.accounts.get"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return nil, err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	byID, err := s.all(ctx, op, owner)
	if err != nil {
		return nil, err
	}
	acc, ok := byID[accountID]
	if !ok {
		return nil, shared.NewError(shared.KindNotFound, op, "Account not found", fmt.Errorf("account %s", accountID))
	}
	return &acc, nil
}

// List returns all accounts sorted by ID.
func (s *AccountStorage) List(ctx context.Context, owner string) ([]models.Account, error) {
	const op = "local.accounts.list"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return nil, err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	byID, err := s.all(ctx, op, owner)
	if err != nil {
		return nil, err
	}

	accounts := make([]models.Account, 0, len(byID))
	for _, acc := range byID {
		accounts = append(accounts, acc)
	}
	models.SortAccounts(accounts)
	return accounts, nil
}

// Remove deletes the account; a missing account is not an error.
func (s *AccountStorage) Remove(ctx context.Context, owner, accountID string) error {
	const op = "local.accounts.remove"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	byID, err := s.all(ctx, op, owner)
	if err != nil {
		return shared.NewError(shared.KindPersistenceWrite, op, "", err)
	}
	if _, ok := byID[accountID]; !ok {
		return nil
	}
	delete(byID, accountID)

	if err := s.b.store(ctx, op, accountsKey(owner), byID); err != nil {
		return err
	}
	s.b.logger.Debug("account removed", "owner", owner, "account", accountID)
	return nil
}

// BoardStorage implements [storage.BoardStorage].
type BoardStorage struct {
	b *backend
}

func boardsKey(owner string) string {
	return repositories.BlobKey(keyPrefix+"_"+storage.BoardsCollection, owner)
}

func (s *BoardStorage) all(ctx context.Context, op, owner string) (map[string][]models.Board, error) {
	byAccount := map[string][]models.Board{}
	if err := s.b.load(ctx, op, boardsKey(owner), &byAccount); err != nil {
		return nil, err
	}
	if byAccount == nil {
		byAccount = map[string][]models.Board{}
	}
	return byAccount, nil
}

// Save replaces the board list of accountID.
func (s *BoardStorage) Save(ctx context.Context, owner, accountID string, boards []models.Board) error {
	const op = "local.boards.save"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return err
	}
	if err := storage.ValidateAccountID(op, accountID); err != nil {
		return err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	byAccount, err := s.all(ctx, op, owner)
	if err != nil {
		return shared.NewError(shared.KindPersistenceWrite, op, "", err)
	}
	if boards == nil {
		boards = []models.Board{}
	}
	byAccount[accountID] = boards

	if err := s.b.store(ctx, op, boardsKey(owner), byAccount); err != nil {
		return err
	}
	s.b.logger.Debug("boards saved", "owner", owner, "account", accountID, "count", len(boards))
	return nil
}

// Get returns the boards of accountID, empty when none are stored.
func (s *BoardStorage) Get(ctx context.Context, owner, accountID string) ([]models.Board, error) {
	const op = "local.boards.get"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return nil, err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	byAccount, err := s.all(ctx, op, owner)
	if err != nil {
		return nil, err
	}
	if boards, ok := byAccount[accountID]; ok {
		return boards, nil
	}
	return []models.Board{}, nil
}

// ListByAccount returns all stored board lists keyed by account ID.
func (s *BoardStorage) ListByAccount(ctx context.Context, owner string) (map[string][]models.Board, error) {
	const op = "local.boards.list"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return nil, err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	return s.all(ctx, op, owner)
}

// Remove deletes the board list of accountID; a missing list is not an error.
func (s *BoardStorage) Remove(ctx context.Context, owner, accountID string) error {
	const op = "local.boards.remove"
	if err := storage.ValidateOwner(op, owner); err != nil {
		return err
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	byAccount, err := s.all(ctx, op, owner)
	if err != nil {
		return shared.NewError(shared.KindPersistenceWrite, op, "", err)
	}
	if _, ok := byAccount[accountID]; !ok {
		return nil
	}
	delete(byAccount, accountID)

	if err := s.b.store(ctx, op, boardsKey(owner), byAccount); err != nil {
		return err
	}
	s.b.logger.Debug("boards removed", "owner", owner, "account", accountID)
	return nil
}
