// Package tasks drives the account operations that span the Pinterest clients and the account store.
//
// # Core Operations
//
//  1. [ConnectFlow.Connect] : connect a Pinterest account from an OAuth code
//     - Exchanges the code through the token proxy
//     - Stores the account (keyed by username) in the [AccountStore]
//     - Fetches and stores its boards
//     - Selects the account when it is the only one
//
//  2. [ConnectFlow.RefreshBoards] : re-fetch boards of connected accounts
//     - Rate limited worker pool (golang.org/x/time/rate)
//     - Per-account results; one failure does not stop the others
//
// # Partial failure
//
// Connect is not transactional. Each step runs only when the previous one succeeded and completed steps
// are never undone, so a failed boards fetch leaves a connected account without boards.
//
// # Progress Reporting
//
// All operations accept an optional channel for [ProgressUpdate] values. Updates use select with default
// so a slow or absent reader never blocks the operation.
package tasks
