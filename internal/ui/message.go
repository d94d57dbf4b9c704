package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/pinx/internal/store"
	"github.com/desertthunder/pinx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStateChanged MsgKind = iota
	MsgProgressUpdate
	MsgRefreshComplete
	MsgAccountRemoved
)

// stateChangedMsg is the constructor for [MsgStateChanged]
func stateChangedMsg(state store.State) Msg {
	return Msg{kind: MsgStateChanged, data: state}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

type refreshOutcome struct {
	result *tasks.RefreshResult
	err    error
}

// refreshCompleteMsg is the constructor for [MsgRefreshComplete]
func refreshCompleteMsg(result *tasks.RefreshResult, err error) Msg {
	return Msg{kind: MsgRefreshComplete, data: refreshOutcome{result, err}}
}

// accountRemovedMsg is the constructor for [MsgAccountRemoved]
func accountRemovedMsg(err error) Msg {
	return Msg{kind: MsgAccountRemoved, data: err}
}
