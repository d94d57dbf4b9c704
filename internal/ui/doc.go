// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI browses connected Pinterest accounts and their boards:
//  1. [AccountListView] : Connected accounts, the selected one marked with ●
//  2. [BoardListView] : Boards of the chosen account
//  3. [ConfirmView] : Confirm disconnecting an account
//  4. [RefreshView] : Monitor board refresh progress
//  5. [ResultView] : Per-account refresh results
//
// The (view) [Model] never reads the store directly. It receives [store.State] snapshots from
// Store.Subscribe as messages and replaces what it renders wholesale, so live updates pushed by a remote
// backend show up without polling.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, r, d, y/n, q) with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
