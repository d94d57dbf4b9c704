package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/pinx/internal/docstore"
	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/storage"
	"github.com/desertthunder/pinx/internal/storage/storagetest"
)

const (
	testSecret = "remote-secret"
	testOwner  = "owner-1"
)

func newDocStore(t *testing.T) *httptest.Server {
	t.Helper()

	srv, err := docstore.NewServer(docstore.Options{Secret: testSecret, Logger: shared.NewLogger(io.Discard)})
	if err != nil {
		t.Fatalf("failed to create docstore: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

func newRemoteStorage(t *testing.T, baseURL, owner string) *Storage {
	t.Helper()

	token, err := docstore.IssueToken(testSecret, owner, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	client, err := NewClient(baseURL, token, WithLogger(shared.NewLogger(io.Discard)))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return New(client)
}

func TestRemoteStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) *storage.Storage {
		ts := newDocStore(t)
		return newRemoteStorage(t, ts.URL, testOwner).Storage
	})

	ctx := context.Background()

	t.Run("documents are laid out per account", func(t *testing.T) {
		ts := newDocStore(t)
		st := newRemoteStorage(t, ts.URL, testOwner)

		if err := st.Accounts.Save(ctx, testOwner, storagetest.Account("alice")); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		data, ok, err := st.client.Get(ctx, "test", storage.AccountPath(testOwner, "alice"))
		if err != nil || !ok {
			t.Fatalf("expected account document, got ok=%v err=%v", ok, err)
		}
		var acc models.Account
		if err := json.Unmarshal(data, &acc); err != nil || acc.ID != "alice" {
			t.Errorf("unexpected document %s", data)
		}
	})

	t.Run("another owner is refused", func(t *testing.T) {
		ts := newDocStore(t)
		st := newRemoteStorage(t, ts.URL, testOwner)

		_, err := st.Accounts.List(ctx, "owner-2")
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Fatalf("expected unauthorized, got %v", err)
		}
		if shared.Message(err) != "Permission denied" {
			t.Errorf("unexpected message %q", shared.Message(err))
		}
	})

	t.Run("bad token is unauthenticated", func(t *testing.T) {
		ts := newDocStore(t)
		client, err := NewClient(ts.URL, "not-a-token")
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		st := New(client)

		err = st.Accounts.Save(ctx, testOwner, storagetest.Account("alice"))
		if !errors.Is(err, shared.ErrUnauthenticated) {
			t.Fatalf("expected unauthenticated, got %v", err)
		}
	})

	t.Run("server errors map to persistence failures", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"boom"}`))
		}))
		defer ts.Close()
		st := newRemoteStorage(t, ts.URL, testOwner)

		if _, err := st.Accounts.List(ctx, testOwner); !errors.Is(err, shared.ErrPersistenceReadFailed) {
			t.Errorf("expected read failure, got %v", err)
		}
		if err := st.Boards.Save(ctx, testOwner, "alice", nil); !errors.Is(err, shared.ErrPersistenceWriteFailed) {
			t.Errorf("expected write failure, got %v", err)
		}
	})

	t.Run("unreachable server is a network error", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		st := newRemoteStorage(t, url, testOwner)
		if _, err := st.Accounts.List(ctx, testOwner); !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected network error, got %v", err)
		}
	})

	t.Run("corrupt document is a read failure", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`"not an object"`))
		}))
		defer ts.Close()
		st := newRemoteStorage(t, ts.URL, testOwner)

		if _, err := st.Boards.ListByAccount(ctx, testOwner); !errors.Is(err, shared.ErrPersistenceReadFailed) {
			t.Errorf("expected read failure, got %v", err)
		}
	})
}

func TestNewClient(t *testing.T) {
	tc := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "http", url: "http://localhost:8787"},
		{name: "https with trailing slash", url: "https://store.example.com/"},
		{name: "missing scheme", url: "localhost:8787", wantErr: true},
		{name: "ftp", url: "ftp://example.com", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.url, "token")
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidConfig) {
					t.Errorf("expected invalid config, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers current value and later writes", func(t *testing.T) {
		ts := newDocStore(t)
		st := newRemoteStorage(t, ts.URL, testOwner)

		values := make(chan json.RawMessage, 8)
		unsubscribe := st.Subscribe(storage.AccountsPath(testOwner), func(data json.RawMessage) {
			values <- data
		}, func(err error) {
			t.Errorf("unexpected watch error: %v", err)
		})
		defer unsubscribe()

		select {
		case data := <-values:
			if string(data) != "null" {
				t.Fatalf("expected initial null, got %s", data)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for initial value")
		}

		if err := st.Accounts.Save(ctx, testOwner, storagetest.Account("alice")); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		select {
		case data := <-values:
			accounts, err := storage.DecodeAccounts(data)
			if err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if len(accounts) != 1 || accounts[0].ID != "alice" {
				t.Errorf("unexpected accounts %+v", accounts)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for own write")
		}
	})

	t.Run("no callbacks after unsubscribe", func(t *testing.T) {
		ts := newDocStore(t)
		st := newRemoteStorage(t, ts.URL, testOwner)

		values := make(chan json.RawMessage, 8)
		unsubscribe := st.Subscribe(storage.AccountsPath(testOwner), func(data json.RawMessage) {
			values <- data
		}, func(error) {})

		select {
		case <-values:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for initial value")
		}
		unsubscribe()
		unsubscribe()

		if err := st.Accounts.Save(ctx, testOwner, storagetest.Account("alice")); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		select {
		case data := <-values:
			t.Errorf("unexpected value after unsubscribe: %s", data)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("refused watch reports an error", func(t *testing.T) {
		ts := newDocStore(t)
		st := newRemoteStorage(t, ts.URL, testOwner)

		errs := make(chan error, 4)
		unsubscribe := st.Subscribe(storage.AccountsPath("owner-2"), func(json.RawMessage) {}, func(err error) {
			select {
			case errs <- err:
			default:
			}
		})
		defer unsubscribe()

		select {
		case err := <-errs:
			if !errors.Is(err, shared.ErrUnauthorized) {
				t.Errorf("expected unauthorized, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for watch error")
		}
	})
}
