// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/storage"
)

// MemoryStorage is an in-memory [storage.Storage] whose operations can be made to fail.
//
// Operation names are "accounts.save", "accounts.get", "accounts.list", "accounts.remove"
// and the same four under "boards.".
type MemoryStorage struct {
	mu       sync.Mutex
	accounts map[string]map[string]models.Account
	boards   map[string]map[string][]models.Board
	failures map[string]error
	calls    []string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		accounts: map[string]map[string]models.Account{},
		boards:   map[string]map[string][]models.Board{},
		failures: map[string]error{},
	}
}

// Storage returns the adapter view of m.
func (m *MemoryStorage) Storage() *storage.Storage {
	return &storage.Storage{Accounts: &memoryAccounts{m}, Boards: &memoryBoards{m}}
}

// FailOn makes op return err until cleared with a nil err.
func (m *MemoryStorage) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Seed stores accounts and boards for owner without recording calls.
func (m *MemoryStorage) Seed(owner string, accounts []models.Account, boards map[string][]models.Board) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range accounts {
		m.ownerAccounts(owner)[acc.ID] = acc
	}
	for id, list := range boards {
		m.ownerBoards(owner)[id] = append([]models.Board{}, list...)
	}
}

// Calls returns the operations attempted so far, failed ones included.
func (m *MemoryStorage) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Accounts returns what is stored for owner, sorted by ID.
func (m *MemoryStorage) Accounts(owner string) []models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listAccounts(owner)
}

// Boards returns the stored board list of accountID and whether one exists.
func (m *MemoryStorage) Boards(owner, accountID string) ([]models.Board, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	boards, ok := m.boards[owner][accountID]
	return boards, ok
}

func (m *MemoryStorage) begin(op string) error {
	m.calls = append(m.calls, op)
	return m.failures[op]
}

func (m *MemoryStorage) ownerAccounts(owner string) map[string]models.Account {
	if m.accounts[owner] == nil {
		m.accounts[owner] = map[string]models.Account{}
	}
	return m.accounts[owner]
}

func (m *MemoryStorage) ownerBoards(owner string) map[string][]models.Board {
	if m.boards[owner] == nil {
		m.boards[owner] = map[string][]models.Board{}
	}
	return m.boards[owner]
}

func (m *MemoryStorage) listAccounts(owner string) []models.Account {
	out := make([]models.Account, 0, len(m.accounts[owner]))
	for _, acc := range m.accounts[owner] {
		out = append(out, acc)
	}
	models.SortAccounts(out)
	return out
}

type memoryAccounts struct{ m *MemoryStorage }

func (s *memoryAccounts) Save(_ context.Context, owner string, account models.Account) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.begin("accounts.save"); err != nil {
		return err
	}
	if err := storage.ValidateOwner("memory.accounts.save", owner); err != nil {
		return err
	}
	s.m.ownerAccounts(owner)[account.ID] = account
	return nil
}

func (s *memoryAccounts) Get(_ context.Context, owner, accountID string) (*models.Account, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.begin("accounts.get"); err != nil {
		return nil, err
	}
	acc, ok := s.m.accounts[owner][accountID]
	if !ok {
		return nil, shared.NewError(shared.KindNotFound, "memory.accounts.get", "Account not found", fmt.Errorf("account %s", accountID))
	}
	return &acc, nil
}

func (s *memoryAccounts) List(_ context.Context, owner string) ([]models.Account, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.begin("accounts.list"); err != nil {
		return nil, err
	}
	if err := storage.ValidateOwner("memory.accounts.list", owner); err != nil {
		return nil, err
	}
	return s.m.listAccounts(owner), nil
}

func (s *memoryAccounts) Remove(_ context.Context, owner, accountID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.begin("accounts.remove"); err != nil {
		return err
	}
	delete(s.m.accounts[owner], accountID)
	return nil
}

type memoryBoards struct{ m *MemoryStorage }

func (s *memoryBoards) Save(_ context.Context, owner, accountID string, boards []models.Board) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.begin("boards.save"); err != nil {
		return err
	}
	if err := storage.ValidateOwner("memory.boards.save", owner); err != nil {
		return err
	}
	s.m.ownerBoards(owner)[accountID] = append([]models.Board{}, boards...)
	return nil
}

func (s *memoryBoards) Get(_ context.Context, owner, accountID string) ([]models.Board, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.begin("boards.get"); err != nil {
		return nil, err
	}
	return append([]models.Board{}, s.m.boards[owner][accountID]...), nil
}

func (s *memoryBoards) ListByAccount(_ context.Context, owner string) (map[string][]models.Board, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.begin("boards.list"); err != nil {
		return nil, err
	}
	if err := storage.ValidateOwner("memory.boards.list", owner); err != nil {
		return nil, err
	}
	out := models.CloneBoards(s.m.boards[owner])
	if out == nil {
		out = map[string][]models.Board{}
	}
	return out, nil
}

func (s *memoryBoards) Remove(_ context.Context, owner, accountID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.begin("boards.remove"); err != nil {
		return err
	}
	delete(s.m.boards[owner], accountID)
	return nil
}

// FakeWatcher is a [storage.Watcher] driven by the test. Emit calls subscribers synchronously.
type FakeWatcher struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]watchSub
}

type watchSub struct {
	onChange func(json.RawMessage)
	onError  func(error)
}

func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{subs: map[string]map[int]watchSub{}}
}

func (w *FakeWatcher) Subscribe(path string, onChange func(json.RawMessage), onError func(error)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.next
	w.next++
	if w.subs[path] == nil {
		w.subs[path] = map[int]watchSub{}
	}
	w.subs[path][id] = watchSub{onChange: onChange, onError: onError}

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs[path], id)
	}
}

// Emit pushes data to every subscriber of path.
func (w *FakeWatcher) Emit(path string, data json.RawMessage) {
	for _, sub := range w.subscribers(path) {
		sub.onChange(data)
	}
}

// EmitError pushes err to every subscriber of path.
func (w *FakeWatcher) EmitError(path string, err error) {
	for _, sub := range w.subscribers(path) {
		sub.onError(err)
	}
}

// Active returns the number of live subscriptions to path.
func (w *FakeWatcher) Active(path string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs[path])
}

func (w *FakeWatcher) subscribers(path string) []watchSub {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]watchSub, 0, len(w.subs[path]))
	for _, sub := range w.subs[path] {
		out = append(out, sub)
	}
	return out
}

// Eventually polls cond until it holds or timeout passes.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
