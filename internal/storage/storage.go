// package storage defines the persistence contract for accounts and boards.
//
// Every method returns a normalized [*shared.Error] on failure; adapters never panic across this boundary.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/shared"
)

// AccountStorage persists accounts for one owner key at a time.
type AccountStorage interface {
	// Save creates or replaces the account with the same ID.
	Save(ctx context.Context, owner string, account models.Account) error

	// Get returns the account or a [shared.KindNotFound] error.
	Get(ctx context.Context, owner, accountID string) (*models.Account, error)

	// List returns every account of owner. No accounts is an empty slice, not an error.
	List(ctx context.Context, owner string) ([]models.Account, error)

	// Remove deletes the account. Removing a missing account succeeds.
	Remove(ctx context.Context, owner, accountID string) error
}

// BoardStorage persists the board list of each account.
type BoardStorage interface {
	// Save replaces the whole board list of accountID.
	Save(ctx context.Context, owner, accountID string, boards []models.Board) error

	// Get returns the boards of accountID, empty when none were stored.
	Get(ctx context.Context, owner, accountID string) ([]models.Board, error)

	// ListByAccount returns every stored board list keyed by account ID.
	ListByAccount(ctx context.Context, owner string) (map[string][]models.Board, error)

	// Remove deletes the board list of accountID. Removing a missing list succeeds.
	Remove(ctx context.Context, owner, accountID string) error
}

// Storage bundles the two collections of one backend.
type Storage struct {
	Accounts AccountStorage
	Boards   BoardStorage
}

// Watcher is implemented by backends that push changes.
//
// onChange receives the full current JSON value at path (null when absent) after every mutation,
// including mutations made by this process. The returned func cancels the subscription.
type Watcher interface {
	Subscribe(path string, onChange func(json.RawMessage), onError func(error)) (unsubscribe func())
}

// Collection names used for both storage keys and document paths.
const (
	AccountsCollection = "accounts"
	BoardsCollection   = "boards"
)

// OwnerPath returns the document path of an owner's root.
func OwnerPath(owner string) string {
	return "owners/" + owner
}

// AccountsPath returns the document path holding all accounts of owner.
func AccountsPath(owner string) string {
	return OwnerPath(owner) + "/" + AccountsCollection
}

// BoardsPath returns the document path holding all board lists of owner.
func BoardsPath(owner string) string {
	return OwnerPath(owner) + "/" + BoardsCollection
}

// AccountPath returns the document path of a single account.
func AccountPath(owner, accountID string) string {
	return AccountsPath(owner) + "/" + accountID
}

// AccountBoardsPath returns the document path of one account's board list.
func AccountBoardsPath(owner, accountID string) string {
	return BoardsPath(owner) + "/" + accountID
}

// ValidateOwner requires an owner key. A missing owner means no authenticated user context.
func ValidateOwner(op, owner string) error {
	if strings.TrimSpace(owner) == "" {
		return shared.NewError(shared.KindUnauthenticated, op, "", fmt.Errorf("%w: owner key", shared.ErrMissingArgument))
	}
	return validateSegment(op, "owner key", owner)
}

// ValidateAccountID rejects empty account IDs and IDs that would escape their path segment.
func ValidateAccountID(op, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return shared.NewError(shared.KindUnknown, op, "Account id is required", fmt.Errorf("%w: account id", shared.ErrMissingArgument))
	}
	return validateSegment(op, "account id", accountID)
}

func validateSegment(op, name, key string) error {
	if strings.ContainsAny(key, "/\x00") {
		return shared.NewError(shared.KindUnknown, op, fmt.Sprintf("Invalid %s", name), fmt.Errorf("%w: %s %q", shared.ErrInvalidArgument, name, key))
	}
	return nil
}

// DecodeAccounts turns a JSON object of accounts keyed by ID into a sorted list.
// A JSON null decodes to an empty list.
func DecodeAccounts(data []byte) ([]models.Account, error) {
	byID := map[string]models.Account{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &byID); err != nil {
			return nil, err
		}
	}

	accounts := make([]models.Account, 0, len(byID))
	for id, acc := range byID {
		if acc.ID == "" {
			acc.ID = id
		}
		accounts = append(accounts, acc)
	}
	models.SortAccounts(accounts)
	return accounts, nil
}

// DecodeBoards turns a JSON object of board lists keyed by account ID into a map.
// A JSON null decodes to an empty map.
func DecodeBoards(data []byte) (map[string][]models.Board, error) {
	boards := map[string][]models.Board{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &boards); err != nil {
			return nil, err
		}
	}
	if boards == nil {
		boards = map[string][]models.Board{}
	}
	return boards, nil
}
