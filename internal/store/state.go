package store

import "github.com/desertthunder/pinx/internal/models"

// State is a point-in-time copy of the store.
//
// Boards holds one entry per account whose boards have been fetched; a missing key means not fetched yet,
// which is different from an empty list.
type State struct {
	Accounts          []models.Account
	Boards            map[string][]models.Board
	SelectedAccountID string // empty when nothing is selected
	Initialized       bool
	Loading           bool
	Error             string // message of the last failure, empty after a success
}

// Clone deep copies the state so callers can hold it without sharing slices with the store.
func (s State) Clone() State {
	out := s
	out.Accounts = append([]models.Account(nil), s.Accounts...)
	if out.Accounts == nil {
		out.Accounts = []models.Account{}
	}
	out.Boards = models.CloneBoards(s.Boards)
	return out
}

// Account looks up an account by ID.
func (s State) Account(id string) (models.Account, bool) {
	for _, acc := range s.Accounts {
		if acc.ID == id {
			return acc, true
		}
	}
	return models.Account{}, false
}

// SelectedAccount returns the selected account, if any.
func (s State) SelectedAccount() (models.Account, bool) {
	if s.SelectedAccountID == "" {
		return models.Account{}, false
	}
	return s.Account(s.SelectedAccountID)
}

// BoardsFor returns the boards of accountID and whether they have been fetched.
func (s State) BoardsFor(accountID string) ([]models.Board, bool) {
	boards, ok := s.Boards[accountID]
	return boards, ok
}

// firstAccountID returns the ID selection falls back to.
func (s State) firstAccountID() string {
	if len(s.Accounts) == 0 {
		return ""
	}
	return s.Accounts[0].ID
}

// revalidateSelection moves a selection that points at a missing account to the first account.
// An empty selection stays empty.
func (s *State) revalidateSelection() {
	if s.SelectedAccountID == "" {
		return
	}
	if _, ok := s.Account(s.SelectedAccountID); !ok {
		s.SelectedAccountID = s.firstAccountID()
	}
}
