// package store keeps the connected Pinterest accounts and their boards in memory for one owner
// and writes every change through to a [storage.Storage] backend.
//
// # Lifecycle
//
// A Store is created with [New], loaded once with [Store.Initialize] and released with [Store.Close].
// There is no package level instance; callers pass the *Store to whatever needs it.
//
//	st := store.New(backend, store.WithLogger(logger), store.WithWatcher(remote))
//	defer st.Close()
//	if err := st.Initialize(ctx, owner); err != nil { ... }
//
// # Write-through
//
// AddAccount, SetBoards and RemoveAccount call the backend first and only touch memory after it reports
// success. A failed call leaves memory as it was, records the user facing message in [State].Error and
// returns a [*shared.Error]. RemoveAccount deletes the account and its boards concurrently; when one of the
// two fails the other is not undone. The next Initialize of a fresh store reconciles from storage.
//
// SetSelectedAccount and SetAccounts only change memory.
//
// # Concurrency
//
// State is guarded by a mutex so every method is safe to call from any goroutine. Operations are not
// queued behind each other: two overlapping AddAccount calls both run, and Loading reflects whichever
// settled last. Initialize is the exception; concurrent calls wait for the first and then return.
//
// # Live updates
//
// With [WithWatcher], the store subscribes to the owner's accounts and boards after the first successful
// Initialize. Each push carries the whole collection and is handed to a single goroutine that replaces the
// collection in memory and moves a selection that no longer exists to the first account. Pushes may
// overwrite the effect of a write still in flight; the last delivered value wins.
//
// Readers observe changes through [Store.Snapshot] or the channel returned by [Store.Subscribe].
package store
