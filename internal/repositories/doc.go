// Package repositories implements SQLite persistence used by the local storage backend and the document store.
//
// Key Implementations:
//   - [BlobRepository] : Opaque values keyed by "<collection>_<owner>", overwritten wholesale on every save
//   - [DocumentRepository] : Revisioned snapshots of the document store tree
//
// Both repositories expect the schema created by shared.RunMigrations.
package repositories
