package tasks

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/services"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/storage/storagetest"
	"github.com/desertthunder/pinx/internal/store"
	tu "github.com/desertthunder/pinx/internal/testing"
)

const owner = "owner-1"

type mockExchanger struct {
	results map[string]*services.ExchangeResult
	err     error
	calls   int
}

func (m *mockExchanger) Exchange(ctx context.Context, code string) (*services.ExchangeResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if res, ok := m.results[code]; ok {
		return res, nil
	}
	return nil, shared.NewError(shared.KindUnauthorized, "mock.exchange", "Invalid authorization code", nil)
}

type mockFetcher struct {
	mu     sync.Mutex
	boards map[string][]models.Board // keyed by access token
	errs   map[string]error
	calls  int
}

func (m *mockFetcher) FetchBoards(ctx context.Context, accessToken string) ([]models.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err, ok := m.errs[accessToken]; ok {
		return nil, err
	}
	return m.boards[accessToken], nil
}

func exchangeFor(username string) *services.ExchangeResult {
	return &services.ExchangeResult{
		Token: models.Token{AccessToken: "token-" + username, TokenType: "bearer", ExpiresIn: 3600},
		User:  models.User{Username: username, AccountType: "BUSINESS"},
	}
}

func newStore(t *testing.T, mem *tu.MemoryStorage) *store.Store {
	t.Helper()
	st := store.New(mem.Storage(), store.WithLogger(shared.NewLogger(io.Discard)))
	t.Cleanup(st.Close)
	if err := st.Initialize(context.Background(), owner); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	return st
}

// blockingFetcher holds every fetch until the context ends.
type blockingFetcher struct{}

func (blockingFetcher) FetchBoards(ctx context.Context, accessToken string) ([]models.Board, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// slowLookupStore runs onLookup before resolving the given id.
type slowLookupStore struct {
	*store.Store
	id       string
	onLookup func()
}

func (s *slowLookupStore) Account(id string) (models.Account, error) {
	if id == s.id {
		s.onLookup()
	}
	return s.Store.Account(id)
}

func newFlow(ex services.TokenExchanger, f services.BoardFetcher, st AccountStore) *ConnectFlow {
	flow := NewConnectFlow(ex, f, st, shared.NewLogger(io.Discard))
	flow.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return flow
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("connects the first account", func(t *testing.T) {
		mem := tu.NewMemoryStorage()
		st := newStore(t, mem)
		ex := &mockExchanger{results: map[string]*services.ExchangeResult{"code-a": exchangeFor("alice")}}
		f := &mockFetcher{boards: map[string][]models.Board{"token-alice": storagetest.Boards("alice", "b1", "b2")}}

		progress := make(chan ProgressUpdate, 10)
		res, err := newFlow(ex, f, st).Connect(ctx, progress, "code-a")
		if err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		if res.Account.ID != "alice" || res.Account.LastRefreshed != 1_700_000_000_000 {
			t.Errorf("unexpected account %+v", res.Account)
		}
		if !res.Selected || len(res.Boards) != 2 {
			t.Errorf("unexpected result %+v", res)
		}

		s := st.Snapshot()
		if s.SelectedAccountID != "alice" {
			t.Errorf("expected alice selected, got %q", s.SelectedAccountID)
		}
		if boards, ok := s.BoardsFor("alice"); !ok || len(boards) != 2 {
			t.Errorf("expected two boards, got %v", boards)
		}
		if stored, ok := mem.Boards(owner, "alice"); !ok || len(stored) != 2 {
			t.Errorf("expected boards persisted, got %v", stored)
		}

		close(progress)
		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		want := []Phase{ExchangeCode, SaveAccount, FetchBoards, SaveBoards, Connected}
		if len(phases) != len(want) {
			t.Fatalf("expected phases %v, got %v", want, phases)
		}
		for i := range want {
			if phases[i] != want[i] {
				t.Errorf("phase %d: expected %s, got %s", i, want[i], phases[i])
			}
		}
	})

	t.Run("second account keeps the selection", func(t *testing.T) {
		st := newStore(t, tu.NewMemoryStorage())
		ex := &mockExchanger{results: map[string]*services.ExchangeResult{
			"code-a": exchangeFor("alice"),
			"code-b": exchangeFor("bob"),
		}}
		flow := newFlow(ex, &mockFetcher{}, st)

		if _, err := flow.Connect(ctx, nil, "code-a"); err != nil {
			t.Fatalf("connect alice failed: %v", err)
		}
		res, err := flow.Connect(ctx, nil, "code-b")
		if err != nil {
			t.Fatalf("connect bob failed: %v", err)
		}

		if res.Selected {
			t.Error("bob should not be selected")
		}
		if id := st.Snapshot().SelectedAccountID; id != "alice" {
			t.Errorf("expected alice to stay selected, got %q", id)
		}
		if boards, ok := st.Snapshot().BoardsFor("bob"); !ok || boards == nil {
			t.Errorf("expected an empty boards entry for bob, got %v (ok=%v)", boards, ok)
		}
	})

	t.Run("rejected code stops before storing", func(t *testing.T) {
		mem := tu.NewMemoryStorage()
		st := newStore(t, mem)
		f := &mockFetcher{}

		_, err := newFlow(&mockExchanger{}, f, st).Connect(ctx, nil, "bad-code")
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Fatalf("expected unauthorized, got %v", err)
		}
		if shared.Message(err) != "Invalid authorization code" {
			t.Errorf("unexpected message %q", shared.Message(err))
		}
		if len(st.Snapshot().Accounts) != 0 || f.calls != 0 {
			t.Error("nothing should run after a failed exchange")
		}
	})

	t.Run("raw exchange errors are normalized", func(t *testing.T) {
		st := newStore(t, tu.NewMemoryStorage())
		ex := &mockExchanger{err: context.DeadlineExceeded}

		_, err := newFlow(ex, &mockFetcher{}, st).Connect(ctx, nil, "code")
		if !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected network error, got %v", err)
		}
	})

	tc := []struct {
		name     string
		fetchErr error
		wantErr  error
	}{
		{
			name:     "boards fetch network failure",
			fetchErr: shared.NewError(shared.KindNetwork, "pinterest.boards", "Failed to fetch Pinterest boards", errors.New("reset")),
			wantErr:  shared.ErrNetwork,
		},
		{
			name:     "boards fetch rejected",
			fetchErr: shared.NewError(shared.KindUnauthorized, "pinterest.boards", "Authentication failed.", nil),
			wantErr:  shared.ErrUnauthorized,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name+" keeps the account", func(t *testing.T) {
			mem := tu.NewMemoryStorage()
			st := newStore(t, mem)
			ex := &mockExchanger{results: map[string]*services.ExchangeResult{"code-a": exchangeFor("alice")}}
			f := &mockFetcher{errs: map[string]error{"token-alice": tt.fetchErr}}

			res, err := newFlow(ex, f, st).Connect(ctx, nil, "code-a")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if res == nil || res.Account.ID != "alice" {
				t.Errorf("expected the partial result, got %+v", res)
			}

			s := st.Snapshot()
			if _, ok := s.Account("alice"); !ok {
				t.Error("expected alice to stay connected")
			}
			if _, ok := s.BoardsFor("alice"); ok {
				t.Error("expected no boards entry for alice")
			}
			if len(mem.Accounts(owner)) != 1 {
				t.Error("expected the account to stay persisted")
			}
		})
	}

	t.Run("account save failure", func(t *testing.T) {
		mem := tu.NewMemoryStorage()
		st := newStore(t, mem)
		mem.FailOn("accounts.save", shared.NewError(shared.KindPersistenceWrite, "memory.accounts.save", "", errors.New("disk full")))
		f := &mockFetcher{}
		ex := &mockExchanger{results: map[string]*services.ExchangeResult{"code-a": exchangeFor("alice")}}

		_, err := newFlow(ex, f, st).Connect(ctx, nil, "code-a")
		if !errors.Is(err, shared.ErrPersistenceWriteFailed) {
			t.Fatalf("expected write failure, got %v", err)
		}
		if f.calls != 0 {
			t.Error("boards should not be fetched")
		}
		if st.Snapshot().Loading {
			t.Error("loading left true")
		}
	})

	t.Run("boards save failure", func(t *testing.T) {
		mem := tu.NewMemoryStorage()
		st := newStore(t, mem)
		mem.FailOn("boards.save", shared.NewError(shared.KindPersistenceWrite, "memory.boards.save", "", errors.New("disk full")))
		ex := &mockExchanger{results: map[string]*services.ExchangeResult{"code-a": exchangeFor("alice")}}

		_, err := newFlow(ex, &mockFetcher{}, st).Connect(ctx, nil, "code-a")
		if !errors.Is(err, shared.ErrPersistenceWriteFailed) {
			t.Fatalf("expected write failure, got %v", err)
		}
		if _, ok := st.Snapshot().Account("alice"); !ok {
			t.Error("expected alice to stay connected")
		}
	})

	t.Run("missing collaborators", func(t *testing.T) {
		if _, err := NewConnectFlow(nil, nil, nil, nil).Connect(ctx, nil, "code"); !errors.Is(err, shared.ErrUnknown) {
			t.Errorf("expected unknown error, got %v", err)
		}
	})

	t.Run("full progress channel does not block", func(t *testing.T) {
		st := newStore(t, tu.NewMemoryStorage())
		ex := &mockExchanger{results: map[string]*services.ExchangeResult{"code-a": exchangeFor("alice")}}

		progress := make(chan ProgressUpdate)
		done := make(chan error, 1)
		go func() {
			_, err := newFlow(ex, &mockFetcher{}, st).Connect(ctx, progress, "code-a")
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("connect failed: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("connect blocked on progress")
		}
	})
}

func TestRefreshBoards(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (*tu.MemoryStorage, *store.Store) {
		t.Helper()
		mem := tu.NewMemoryStorage()
		mem.Seed(owner, []models.Account{
			storagetest.Account("alice"),
			storagetest.Account("bob"),
			storagetest.Account("carol"),
		}, nil)
		return mem, newStore(t, mem)
	}

	t.Run("refreshes every account", func(t *testing.T) {
		mem, st := seed(t)
		f := &mockFetcher{boards: map[string][]models.Board{
			"token-alice": storagetest.Boards("alice", "a1"),
			"token-bob":   storagetest.Boards("bob", "b1", "b2"),
			"token-carol": {},
		}}

		progress := make(chan ProgressUpdate, 10)
		res, err := newFlow(nil, f, st).RefreshBoards(ctx, progress, nil, RefreshOpts{NumWorkers: 2, RateLimit: 100})
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}

		if res.Total != 3 || res.Succeeded != 3 || res.Failed != 0 {
			t.Errorf("unexpected result %+v", res)
		}
		if boards, _ := st.Snapshot().BoardsFor("bob"); len(boards) != 2 {
			t.Errorf("expected two boards for bob, got %v", boards)
		}
		if _, ok := mem.Boards(owner, "carol"); !ok {
			t.Error("expected carol's empty list to be stored")
		}
		if len(progress) != 3 {
			t.Errorf("expected 3 progress updates, got %d", len(progress))
		}
	})

	t.Run("failures are per account", func(t *testing.T) {
		_, st := seed(t)
		f := &mockFetcher{
			boards: map[string][]models.Board{"token-alice": storagetest.Boards("alice", "a1")},
			errs:   map[string]error{"token-bob": shared.NewError(shared.KindUnauthorized, "", "Authentication failed.", nil)},
		}

		res, err := newFlow(nil, f, st).RefreshBoards(ctx, nil, []string{"alice", "bob", "ghost"}, RefreshOpts{RateLimit: 100})
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if res.Succeeded != 1 || res.Failed != 2 {
			t.Fatalf("unexpected result %+v", res)
		}

		byID := map[string]AccountRefreshResult{}
		for _, r := range res.Results {
			byID[r.AccountID] = r
		}
		if !errors.Is(byID["bob"].Error, shared.ErrUnauthorized) {
			t.Errorf("expected unauthorized for bob, got %v", byID["bob"].Error)
		}
		if !errors.Is(byID["ghost"].Error, shared.ErrNotFound) {
			t.Errorf("expected not found for ghost, got %v", byID["ghost"].Error)
		}
		if _, ok := st.Snapshot().BoardsFor("bob"); ok {
			t.Error("bob's boards should not be set")
		}
	})

	t.Run("empty store", func(t *testing.T) {
		st := newStore(t, tu.NewMemoryStorage())
		f := &mockFetcher{}

		res, err := newFlow(nil, f, st).RefreshBoards(ctx, nil, nil, RefreshOpts{})
		if err != nil || res.Total != 0 || f.calls != 0 {
			t.Errorf("expected nothing to do, got %+v (err=%v)", res, err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		_, st := seed(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		res, err := newFlow(nil, &mockFetcher{}, st).RefreshBoards(cctx, nil, nil, RefreshOpts{RateLimit: 100})
		if !errors.Is(err, shared.ErrNetwork) {
			t.Fatalf("expected cancellation to surface, got %v", err)
		}
		if res.Succeeded == 3 {
			t.Error("expected the run to stop early")
		}
	})

	t.Run("cancelled while accounts are still being queued", func(t *testing.T) {
		_, st := seed(t)
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		lookup := &slowLookupStore{Store: st, id: "ghost", onLookup: func() {
			cancel()
			time.Sleep(50 * time.Millisecond)
		}}

		res, err := newFlow(nil, blockingFetcher{}, lookup).RefreshBoards(cctx, nil, []string{"alice", "bob", "ghost"}, RefreshOpts{NumWorkers: 1, RateLimit: 100})
		if !errors.Is(err, shared.ErrNetwork) {
			t.Fatalf("expected cancellation to surface, got %v", err)
		}
		if res.Succeeded != 0 {
			t.Errorf("expected no successes, got %+v", res)
		}

		var sawGhost bool
		for _, r := range res.Results {
			if r.AccountID == "ghost" {
				sawGhost = errors.Is(r.Error, shared.ErrNotFound)
			}
		}
		if !sawGhost {
			t.Errorf("expected the lookup failure to be reported, got %+v", res.Results)
		}
	})
}

func TestPhaseString(t *testing.T) {
	tc := map[Phase]string{
		ExchangeCode:  "exchange_code",
		SaveAccount:   "save_account",
		FetchBoards:   "fetch_boards",
		SaveBoards:    "save_boards",
		Connected:     "connected",
		RefreshBoards: "refresh_boards",
		Phase(99):     "",
	}
	for p, want := range tc {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d): expected %q, got %q", p, want, got)
		}
	}
}
