package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Tree is an in-memory JSON document addressed by slash separated paths.
//
// Objects are the only containers; arrays and scalars are leaves. Removing the last child of an
// object removes the object too, so empty objects never exist.
type Tree struct {
	mu       sync.RWMutex
	root     map[string]any
	revision int64
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{root: map[string]any{}}
}

// SplitPath validates p and returns its segments. The empty path addresses the root.
func SplitPath(p string) ([]string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil, nil
	}

	segments := strings.Split(p, "/")
	for _, s := range segments {
		switch s {
		case "", ".", "..":
			return nil, fmt.Errorf("invalid path segment %q in %q", s, p)
		}
	}
	return segments, nil
}

// Related reports whether a change at changed can alter the value at watched.
func Related(watched, changed []string) bool {
	n := min(len(watched), len(changed))
	for i := 0; i < n; i++ {
		if watched[i] != changed[i] {
			return false
		}
	}
	return true
}

// Revision returns the number of mutations applied so far.
func (t *Tree) Revision() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revision
}

// Get returns the JSON encoding of the value at path and whether it exists.
func (t *Tree) Get(segments []string) (json.RawMessage, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	value, ok := t.lookup(segments)
	if !ok {
		return nil, false, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode value: %w", err)
	}
	return data, true, nil
}

func (t *Tree) lookup(segments []string) (any, bool) {
	if len(segments) == 0 {
		if len(t.root) == 0 {
			return nil, false
		}
		return t.root, true
	}

	var node any = t.root
	for _, s := range segments {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = obj[s]; !ok {
			return nil, false
		}
	}
	return node, true
}

// Set decodes raw and stores it at path, replacing whatever was there. A JSON null deletes the path.
// It returns the new revision.
func (t *Tree) Set(segments []string, raw []byte) (int64, error) {
	value, err := decodeValue(raw)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return t.Delete(segments), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(segments) == 0 {
		obj, ok := value.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("root value must be an object")
		}
		t.root = map[string]any{}
		if pruned, ok := prune(obj).(map[string]any); ok {
			t.root = pruned
		}
		t.revision++
		return t.revision, nil
	}

	parent := t.root
	for _, s := range segments[:len(segments)-1] {
		child, ok := parent[s].(map[string]any)
		if !ok {
			child = map[string]any{}
			parent[s] = child
		}
		parent = child
	}

	if pruned := prune(value); pruned == nil {
		t.remove(segments)
	} else {
		parent[segments[len(segments)-1]] = pruned
	}
	t.revision++
	return t.revision, nil
}

// Delete removes the value at path. Deleting a missing path still bumps the revision.
func (t *Tree) Delete(segments []string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(segments) == 0 {
		t.root = map[string]any{}
	} else {
		t.remove(segments)
	}
	t.revision++
	return t.revision
}

func (t *Tree) remove(segments []string) {
	chain := []map[string]any{t.root}
	node := t.root
	for _, s := range segments[:len(segments)-1] {
		child, ok := node[s].(map[string]any)
		if !ok {
			return
		}
		chain = append(chain, child)
		node = child
	}
	delete(node, segments[len(segments)-1])

	for i := len(chain) - 1; i > 0; i-- {
		if len(chain[i]) > 0 {
			break
		}
		delete(chain[i-1], segments[i-1])
	}
}

// Snapshot encodes the whole tree with its revision.
func (t *Tree) Snapshot() ([]byte, int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	data, err := json.Marshal(t.root)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode tree: %w", err)
	}
	return data, t.revision, nil
}

// Restore replaces the tree with a snapshot produced by [Tree.Snapshot].
func (t *Tree) Restore(data []byte, revision int64) error {
	value, err := decodeValue(data)
	if err != nil {
		return err
	}
	root, ok := value.(map[string]any)
	if value != nil && !ok {
		return fmt.Errorf("snapshot root must be an object")
	}
	if root == nil {
		root = map[string]any{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = root
	t.revision = revision
	return nil
}

func decodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid JSON value: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid JSON value: trailing data")
	}
	return value, nil
}

// prune drops null members and empty objects. It returns nil when nothing is left.
func prune(value any) any {
	obj, ok := value.(map[string]any)
	if !ok {
		return value
	}
	for k, v := range obj {
		if p := prune(v); p == nil {
			delete(obj, k)
		} else {
			obj[k] = p
		}
	}
	if len(obj) == 0 {
		return nil
	}
	return obj
}
