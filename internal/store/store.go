package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/storage"
)

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithOwner sets the owner key used before [Store.Initialize] is called.
func WithOwner(owner string) Option {
	return func(s *Store) { s.owner = owner }
}

// WithWatcher enables live updates. The store subscribes to the owner's accounts and boards after the first
// successful load.
func WithWatcher(w storage.Watcher) Option {
	return func(s *Store) { s.watcher = w }
}

type collection int

const (
	accountsCollection collection = iota
	boardsCollection
)

// snapshot is one pushed value from the watcher.
type snapshot struct {
	collection collection
	data       json.RawMessage
	err        error
}

// Store holds the accounts and boards of one owner and keeps them in step with storage.
//
// Mutations are write-through: storage is called first and memory changes only after it succeeds.
// Operations are not serialized against each other; see the package documentation.
type Store struct {
	storage *storage.Storage
	watcher storage.Watcher
	logger  *log.Logger

	mu    sync.RWMutex
	owner string
	state State

	// initMu makes a second Initialize wait for the first and then return without loading again.
	initMu sync.Mutex

	subsMu sync.Mutex
	subs   map[string]chan State

	updates      chan snapshot
	done         chan struct{}
	stopped      chan struct{}
	unsubscribes []func()
	closeOnce    sync.Once
}

// New creates a store over st. Call [Store.Initialize] before use and [Store.Close] when done.
func New(st *storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage: st,
		state:   State{Accounts: []models.Account{}, Boards: map[string][]models.Board{}},
		subs:    make(map[string]chan State),
		updates: make(chan snapshot),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = shared.NewLogger(nil)
	}
	s.logger = shared.WithLogger(s.logger, "component", "store")

	go s.run()
	return s
}

// Owner returns the owner key the store is scoped to.
func (s *Store) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Initialize loads accounts and boards for owner. An empty owner keeps the one given with [WithOwner].
//
// Once the store is initialized, successfully or not, later calls return nil without loading.
// A failed load still marks the store initialized and returns the normalized error.
func (s *Store) Initialize(ctx context.Context, owner string) error {
	const op = "store.initialize"

	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	if s.state.Initialized {
		s.mu.Unlock()
		return nil
	}
	if owner != "" {
		s.owner = owner
	}
	owner = s.owner
	s.state.Loading = true
	s.publishLocked()
	s.mu.Unlock()

	var (
		wg                    sync.WaitGroup
		accounts              []models.Account
		boards                map[string][]models.Board
		accountsErr, boardErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		accounts, accountsErr = s.storage.Accounts.List(ctx, owner)
	}()
	go func() {
		defer wg.Done()
		boards, boardErr = s.storage.Boards.ListByAccount(ctx, owner)
	}()
	wg.Wait()

	err := accountsErr
	if err == nil {
		err = boardErr
	}
	if err != nil {
		normalized := shared.Normalize(op, err)
		s.mutate(func(st *State) {
			st.Error = normalized.Message
			st.Initialized = true
			st.Loading = false
		})
		s.logger.Error("initialization failed", "owner", owner, "error", normalized.Detail())
		return normalized
	}

	s.mutate(func(st *State) {
		st.Accounts = accounts
		st.Boards = boards
		st.SelectedAccountID = st.firstAccountID()
		st.Error = ""
		st.Initialized = true
		st.Loading = false
	})
	s.logger.Info("store initialized", "owner", owner, "accounts", len(accounts))

	s.watch(owner)
	return nil
}

// AddAccount persists account and then adds it to memory. The first account of an empty store is selected.
func (s *Store) AddAccount(ctx context.Context, account models.Account) error {
	const op = "store.addAccount"

	owner, err := s.begin(op)
	if err != nil {
		return err
	}
	if err := s.storage.Accounts.Save(ctx, owner, account); err != nil {
		return s.fail(op, err)
	}

	s.mutate(func(st *State) {
		wasEmpty := len(st.Accounts) == 0
		st.Accounts = upsertAccount(st.Accounts, account)
		if wasEmpty {
			st.SelectedAccountID = account.ID
		}
		st.Error = ""
		st.Loading = false
	})
	s.logger.Debug("account added", "account", account.ID)
	return nil
}

// SetBoards persists the full board list of accountID and then replaces it in memory.
// The account does not have to be known to the store.
func (s *Store) SetBoards(ctx context.Context, accountID string, boards []models.Board) error {
	const op = "store.setBoards"

	owner, err := s.begin(op)
	if err != nil {
		return err
	}
	if boards == nil {
		boards = []models.Board{}
	}
	if err := s.storage.Boards.Save(ctx, owner, accountID, boards); err != nil {
		return s.fail(op, err)
	}

	s.mutate(func(st *State) {
		st.Boards[accountID] = append([]models.Board(nil), boards...)
		st.Error = ""
		st.Loading = false
	})
	s.logger.Debug("boards set", "account", accountID, "count", len(boards))
	return nil
}

// RemoveAccount deletes the account and its boards from storage concurrently. Memory changes only when both
// deletions succeed; a partial deletion in storage is left as is. Removing an unknown account succeeds.
func (s *Store) RemoveAccount(ctx context.Context, accountID string) error {
	const op = "store.removeAccount"

	owner, err := s.begin(op)
	if err != nil {
		return err
	}

	var (
		wg                   sync.WaitGroup
		accountErr, boardErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		accountErr = s.storage.Accounts.Remove(ctx, owner, accountID)
	}()
	go func() {
		defer wg.Done()
		boardErr = s.storage.Boards.Remove(ctx, owner, accountID)
	}()
	wg.Wait()

	if accountErr != nil {
		return s.fail(op, accountErr)
	}
	if boardErr != nil {
		return s.fail(op, boardErr)
	}

	s.mutate(func(st *State) {
		st.Accounts = removeAccount(st.Accounts, accountID)
		delete(st.Boards, accountID)
		if st.SelectedAccountID == accountID {
			st.SelectedAccountID = st.firstAccountID()
		}
		st.Error = ""
		st.Loading = false
	})
	s.logger.Debug("account removed", "account", accountID)
	return nil
}

// Account returns the account with id or a [shared.KindNotFound] error. It never changes state.
func (s *Store) Account(id string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.state.Account(id)
	if !ok {
		return models.Account{}, shared.NewError(shared.KindNotFound, "store.getAccount", "Account not found", fmt.Errorf("account %s", id))
	}
	return acc, nil
}

// SetSelectedAccount selects id in memory. An empty id clears the selection.
func (s *Store) SetSelectedAccount(id string) error {
	const op = "store.setSelectedAccount"

	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, ok := s.state.Account(id); !ok {
			err := shared.NewError(shared.KindNotFound, op, "Account not found", fmt.Errorf("account %s", id))
			s.state.Error = err.Message
			s.publishLocked()
			return err
		}
	}
	s.state.SelectedAccountID = id
	s.state.Error = ""
	s.publishLocked()
	return nil
}

// SetAccounts replaces the accounts in memory only. Duplicate IDs keep the last entry, boards of accounts that
// are no longer present are dropped and a selection pointing at a missing account moves to the first one.
func (s *Store) SetAccounts(accounts []models.Account) {
	s.mutate(func(st *State) {
		next := make([]models.Account, 0, len(accounts))
		for _, acc := range accounts {
			next = upsertAccount(next, acc)
		}
		st.Accounts = next

		for id := range st.Boards {
			if _, ok := st.Account(id); !ok {
				delete(st.Boards, id)
			}
		}
		st.revalidateSelection()
		st.Error = ""
	})
}

// Subscribe returns a channel that receives a snapshot after every state change, starting with the current one.
//
// The channel holds only the latest snapshot; a slow reader skips intermediate states. Call cancel to stop.
func (s *Store) Subscribe() (<-chan State, func()) {
	id := shared.GenerateID()
	ch := make(chan State, 1)

	s.mu.RLock()
	s.subsMu.Lock()
	select {
	case <-s.done:
		close(ch)
	default:
		ch <- s.state.Clone()
		s.subs[id] = ch
	}
	s.subsMu.Unlock()
	s.mu.RUnlock()

	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// Close stops live updates and closes every subscriber channel. Storage is not closed.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		unsubscribes := s.unsubscribes
		s.unsubscribes = nil
		s.mu.Unlock()
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
		<-s.stopped

		s.subsMu.Lock()
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.subsMu.Unlock()
		s.logger.Debug("store closed")
	})
}

// begin resolves the owner and marks the store busy.
func (s *Store) begin(op string) (string, error) {
	s.mu.Lock()
	owner := s.owner
	if owner == "" {
		err := shared.NewError(shared.KindUnauthenticated, op, "", fmt.Errorf("%w: owner key", shared.ErrMissingArgument))
		s.state.Error = err.Message
		s.state.Loading = false
		s.publishLocked()
		s.mu.Unlock()
		return "", err
	}
	s.state.Loading = true
	s.publishLocked()
	s.mu.Unlock()
	return owner, nil
}

// fail records err as the last failure and settles loading.
func (s *Store) fail(op string, err error) error {
	normalized := shared.Normalize(op, err)
	s.mutate(func(st *State) {
		st.Error = normalized.Message
		st.Loading = false
	})
	s.logger.Warn("operation failed", "op", op, "error", normalized.Detail())
	return normalized
}

func (s *Store) mutate(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.publishLocked()
}

// publishLocked hands the current state to every subscriber, replacing any snapshot not yet read.
// Callers hold s.mu so snapshots are published in mutation order.
func (s *Store) publishLocked() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if len(s.subs) == 0 {
		return
	}

	snap := s.state.Clone()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// watch subscribes to the owner's collections. Pushed values are sent to the update loop.
func (s *Store) watch(owner string) {
	if s.watcher == nil {
		return
	}

	deliver := func(c collection) (func(json.RawMessage), func(error)) {
		send := func(u snapshot) {
			select {
			case s.updates <- u:
			case <-s.done:
			}
		}
		return func(data json.RawMessage) { send(snapshot{collection: c, data: data}) },
			func(err error) { send(snapshot{collection: c, err: err}) }
	}

	onAccounts, onAccountsErr := deliver(accountsCollection)
	onBoards, onBoardsErr := deliver(boardsCollection)
	unsubAccounts := s.watcher.Subscribe(storage.AccountsPath(owner), onAccounts, onAccountsErr)
	unsubBoards := s.watcher.Subscribe(storage.BoardsPath(owner), onBoards, onBoardsErr)

	s.mu.Lock()
	s.unsubscribes = append(s.unsubscribes, unsubAccounts, unsubBoards)
	s.mu.Unlock()
	s.logger.Debug("watching for live updates", "owner", owner)
}

// run applies pushed snapshots one at a time until Close.
func (s *Store) run() {
	defer close(s.stopped)
	for {
		select {
		case u := <-s.updates:
			s.apply(u)
		case <-s.done:
			return
		}
	}
}

// apply replaces the pushed collection wholesale.
func (s *Store) apply(u snapshot) {
	const op = "store.liveUpdate"

	if u.err != nil {
		normalized := shared.Normalize(op, u.err)
		s.mutate(func(st *State) { st.Error = normalized.Message })
		s.logger.Warn("live update failed", "error", normalized.Detail())
		return
	}

	switch u.collection {
	case accountsCollection:
		accounts, err := storage.DecodeAccounts(u.data)
		if err != nil {
			s.fail(op, shared.NewError(shared.KindPersistenceRead, op, "", err))
			return
		}
		s.mutate(func(st *State) {
			wasEmpty := len(st.Accounts) == 0
			st.Accounts = accounts
			st.revalidateSelection()
			if wasEmpty && st.SelectedAccountID == "" {
				st.SelectedAccountID = st.firstAccountID()
			}
		})
		s.logger.Debug("accounts replaced from live update", "count", len(accounts))
	case boardsCollection:
		boards, err := storage.DecodeBoards(u.data)
		if err != nil {
			s.fail(op, shared.NewError(shared.KindPersistenceRead, op, "", err))
			return
		}
		s.mutate(func(st *State) { st.Boards = boards })
		s.logger.Debug("boards replaced from live update", "accounts", len(boards))
	}
}

func upsertAccount(accounts []models.Account, account models.Account) []models.Account {
	for i, acc := range accounts {
		if acc.ID == account.ID {
			out := append([]models.Account(nil), accounts...)
			out[i] = account
			return out
		}
	}
	return append(append([]models.Account(nil), accounts...), account)
}

func removeAccount(accounts []models.Account, id string) []models.Account {
	out := make([]models.Account, 0, len(accounts))
	for _, acc := range accounts {
		if acc.ID != id {
			out = append(out, acc)
		}
	}
	return out
}
