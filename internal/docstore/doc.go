// Package docstore is a small hosted JSON document store with live watches.
//
// # Data Model
//
// The store keeps one [Tree] of nested JSON objects. Documents are addressed by slash separated paths
// such as "owners/alice/accounts/bob". Writing null or deleting a path removes it, and objects left
// empty are pruned, so a missing path and an empty object are indistinguishable.
//
// # HTTP Surface
//
//	GET    /v1/docs/{path}     current value, 404 when absent
//	PUT    /v1/docs/{path}     replace the value, 204
//	DELETE /v1/docs/{path}     remove the value, 204
//	GET    /v1/watch?path=...  websocket stream of {"type":"value","path":...,"data":...}
//	GET    /healthz
//
// Every /v1 request carries an HS256 bearer token issued by [IssueToken]. The token's owner claim
// limits access to paths under "owners/<owner>/"; anything else is answered with 403.
//
// # Watches
//
// A watch receives the current value of its path right after connecting and again after every mutation
// at, above or below it, including the watcher's own writes. Values are always complete, never diffs.
//
// # Persistence
//
// When a [SnapshotStore] is configured the whole tree is written through after every mutation and
// reloaded by [Server.Restore] at startup.
package docstore
