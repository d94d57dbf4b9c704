package docstore

import (
	"encoding/json"
	"testing"
)

func mustSplit(t *testing.T, p string) []string {
	t.Helper()
	segments, err := SplitPath(p)
	if err != nil {
		t.Fatalf("failed to split %q: %v", p, err)
	}
	return segments
}

func mustGet(t *testing.T, tree *Tree, p string) (string, bool) {
	t.Helper()
	data, ok, err := tree.Get(mustSplit(t, p))
	if err != nil {
		t.Fatalf("get %q failed: %v", p, err)
	}
	return string(data), ok
}

func TestSplitPath(t *testing.T) {
	tc := []struct {
		name    string
		path    string
		want    int
		wantErr bool
	}{
		{name: "root", path: "", want: 0},
		{name: "trims slashes", path: "/owners/alice/", want: 2},
		{name: "nested", path: "owners/alice/accounts/bob", want: 4},
		{name: "empty segment", path: "owners//alice", wantErr: true},
		{name: "dot", path: "owners/./alice", wantErr: true},
		{name: "dot dot", path: "owners/../alice", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.path)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d segments, got %v", tt.want, got)
			}
		})
	}
}

func TestRelated(t *testing.T) {
	tc := []struct {
		name             string
		watched, changed string
		want             bool
	}{
		{name: "same path", watched: "a/b", changed: "a/b", want: true},
		{name: "child change", watched: "a/b", changed: "a/b/c", want: true},
		{name: "parent change", watched: "a/b/c", changed: "a", want: true},
		{name: "sibling", watched: "a/b", changed: "a/c", want: false},
		{name: "other owner", watched: "owners/x/accounts", changed: "owners/y/accounts", want: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Related(mustSplit(t, tt.watched), mustSplit(t, tt.changed)); got != tt.want {
				t.Errorf("Related(%q, %q) = %v, want %v", tt.watched, tt.changed, got, tt.want)
			}
		})
	}
}

func TestTree(t *testing.T) {
	t.Run("Set then Get", func(t *testing.T) {
		tree := NewTree()
		if _, err := tree.Set(mustSplit(t, "owners/u1/accounts/alice"), []byte(`{"id":"alice","n":1}`)); err != nil {
			t.Fatalf("set failed: %v", err)
		}

		got, ok := mustGet(t, tree, "owners/u1/accounts")
		if !ok {
			t.Fatal("expected accounts to exist")
		}
		if got != `{"alice":{"id":"alice","n":1}}` {
			t.Errorf("unexpected value %s", got)
		}
	})

	t.Run("numbers keep their encoding", func(t *testing.T) {
		tree := NewTree()
		if _, err := tree.Set(mustSplit(t, "a"), []byte(`{"ts":1700000000000123}`)); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if got, _ := mustGet(t, tree, "a/ts"); got != "1700000000000123" {
			t.Errorf("expected exact number, got %s", got)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		tree := NewTree()
		if _, ok := mustGet(t, tree, "owners/u1"); ok {
			t.Error("expected missing path")
		}
		if _, ok := mustGet(t, tree, ""); ok {
			t.Error("expected empty root to be missing")
		}
	})

	t.Run("null deletes and prunes parents", func(t *testing.T) {
		tree := NewTree()
		tree.Set(mustSplit(t, "owners/u1/boards/alice"), []byte(`[{"id":"b1"}]`))
		if _, err := tree.Set(mustSplit(t, "owners/u1/boards/alice"), []byte(`null`)); err != nil {
			t.Fatalf("set null failed: %v", err)
		}

		if _, ok := mustGet(t, tree, "owners"); ok {
			t.Error("expected empty parents to be pruned")
		}
	})

	t.Run("empty arrays are kept", func(t *testing.T) {
		tree := NewTree()
		tree.Set(mustSplit(t, "owners/u1/boards/alice"), []byte(`[]`))
		if got, ok := mustGet(t, tree, "owners/u1/boards/alice"); !ok || got != "[]" {
			t.Errorf("expected empty array, got %q (present=%v)", got, ok)
		}
	})

	t.Run("Delete keeps siblings", func(t *testing.T) {
		tree := NewTree()
		tree.Set(mustSplit(t, "owners/u1/accounts/alice"), []byte(`{"id":"alice"}`))
		tree.Set(mustSplit(t, "owners/u1/accounts/bob"), []byte(`{"id":"bob"}`))
		tree.Delete(mustSplit(t, "owners/u1/accounts/alice"))

		if got, _ := mustGet(t, tree, "owners/u1/accounts"); got != `{"bob":{"id":"bob"}}` {
			t.Errorf("unexpected value %s", got)
		}
	})

	t.Run("Set through a scalar replaces it", func(t *testing.T) {
		tree := NewTree()
		tree.Set(mustSplit(t, "a"), []byte(`"leaf"`))
		if _, err := tree.Set(mustSplit(t, "a/b"), []byte(`1`)); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if got, _ := mustGet(t, tree, "a"); got != `{"b":1}` {
			t.Errorf("unexpected value %s", got)
		}
	})

	t.Run("root must be an object", func(t *testing.T) {
		tree := NewTree()
		if _, err := tree.Set(nil, []byte(`[1,2]`)); err == nil {
			t.Error("expected error for array root")
		}
		if _, err := tree.Set(nil, []byte(`{"a":{}}`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := mustGet(t, tree, ""); ok {
			t.Error("expected pruned root to be empty")
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tree := NewTree()
		for _, raw := range []string{`{`, `1 2`, ``} {
			if _, err := tree.Set(mustSplit(t, "a"), []byte(raw)); err == nil {
				t.Errorf("expected error for %q", raw)
			}
		}
		if tree.Revision() != 0 {
			t.Errorf("expected failed writes to leave revision at 0, got %d", tree.Revision())
		}
	})

	t.Run("revision counts mutations", func(t *testing.T) {
		tree := NewTree()
		tree.Set(mustSplit(t, "a"), []byte(`1`))
		tree.Delete(mustSplit(t, "a"))
		if rev := tree.Delete(mustSplit(t, "missing")); rev != 3 {
			t.Errorf("expected revision 3, got %d", rev)
		}
	})

	t.Run("Snapshot and Restore", func(t *testing.T) {
		tree := NewTree()
		tree.Set(mustSplit(t, "owners/u1/accounts/alice"), []byte(`{"id":"alice"}`))
		data, rev, err := tree.Snapshot()
		if err != nil {
			t.Fatalf("snapshot failed: %v", err)
		}

		restored := NewTree()
		if err := restored.Restore(data, rev); err != nil {
			t.Fatalf("restore failed: %v", err)
		}
		if restored.Revision() != rev {
			t.Errorf("expected revision %d, got %d", rev, restored.Revision())
		}

		got, _ := mustGet(t, restored, "owners/u1/accounts/alice")
		var acc map[string]string
		if err := json.Unmarshal([]byte(got), &acc); err != nil || acc["id"] != "alice" {
			t.Errorf("unexpected restored value %s", got)
		}

		if err := restored.Restore([]byte(`[1]`), 1); err == nil {
			t.Error("expected error for non-object snapshot")
		}
	})
}
