package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/store"
	"github.com/desertthunder/pinx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	AccountListView ViewState = iota
	BoardListView
	ConfirmView
	RefreshView
	ResultView
)

// AccountStore is the part of [store.Store] the TUI reads from and writes to.
type AccountStore interface {
	Subscribe() (<-chan store.State, func())
	SetSelectedAccount(id string) error
	RemoveAccount(ctx context.Context, accountID string) error
}

// Refresher re-fetches boards for stored accounts.
type Refresher interface {
	RefreshBoards(ctx context.Context, progress chan<- tasks.ProgressUpdate, ids []string, opts tasks.RefreshOpts) (*tasks.RefreshResult, error)
}

var (
	_ AccountStore = (*store.Store)(nil)
	_ Refresher    = (*tasks.ConnectFlow)(nil)
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	store        AccountStore
	refresher    Refresher
	opts         tasks.RefreshOpts
	updates      <-chan store.State
	unsubscribe  func()
	state        store.State
	accountList  list.Model
	boardList    list.Model
	accountID    string // account whose boards are shown
	pending      string // account awaiting disconnect confirmation
	progressChan chan tasks.ProgressUpdate
	refreshDone  chan refreshOutcome
	progress     tasks.ProgressUpdate
	result       *tasks.RefreshResult
	err          error
	width        int
	height       int
	help         help.Model
	keys         keyMap
}

// NewModel subscribes to st and returns a model rendering its snapshots. refresher may be nil, which disables
// board refreshes.
func NewModel(ctx context.Context, st AccountStore, refresher Refresher, opts tasks.RefreshOpts) *Model {
	updates, unsubscribe := st.Subscribe()

	accounts := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	accounts.Title = "Pinterest Accounts"
	boards := list.New(nil, list.NewDefaultDelegate(), 0, 0)

	return &Model{
		ctx:         ctx,
		view:        AccountListView,
		store:       st,
		refresher:   refresher,
		opts:        opts,
		updates:     updates,
		unsubscribe: unsubscribe,
		accountList: accounts,
		boardList:   boards,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init starts listening for store snapshots.
func (m *Model) Init() tea.Cmd {
	return m.waitForState()
}

// Close stops the store subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.accountList.SetSize(msg.Width-4, msg.Height-8)
		m.boardList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case AccountListView:
			return m.handleAccountListKeys(msg)
		case BoardListView:
			return m.handleBoardListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RefreshView:
			if key.Matches(msg, m.keys.quit) {
				return m.quit()
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStateChanged:
		m.applyState(msg.data.(store.State))
		return m, m.waitForState()

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgRefreshComplete:
		outcome := msg.data.(refreshOutcome)
		m.result = outcome.result
		m.err = outcome.err
		m.progressChan = nil
		m.refreshDone = nil
		m.view = ResultView
		return m, nil

	case MsgAccountRemoved:
		if err, ok := msg.data.(error); ok && err != nil {
			m.err = err
		}
		m.pending = ""
		m.view = AccountListView
		return m, nil
	}
	return m, nil
}

// applyState replaces everything rendered from the store with state.
func (m *Model) applyState(state store.State) {
	m.state = state
	m.accountList.SetItems(accountItems(state))

	if m.accountID == "" {
		return
	}
	boards, ok := state.BoardsFor(m.accountID)
	if _, exists := state.Account(m.accountID); !exists {
		m.accountID = ""
		if m.view == BoardListView {
			m.view = AccountListView
		}
		return
	}
	if !ok {
		boards = []models.Board{}
	}
	m.boardList.SetItems(boardItems(boards))
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case AccountListView:
		return m.renderAccountList()
	case BoardListView:
		return m.renderBoardList()
	case ConfirmView:
		return m.renderConfirm()
	case RefreshView:
		return m.renderRefresh()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.Close()
	return m, tea.Quit
}

func (m *Model) handleAccountListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.accountList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.accountList.SelectedItem().(accountItem); ok {
			m.err = m.store.SetSelectedAccount(item.account.ID)
			m.showBoards(item.account)
		}
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		ids := make([]string, len(m.state.Accounts))
		for i, acc := range m.state.Accounts {
			ids[i] = acc.ID
		}
		return m, m.startRefresh(ids)
	case key.Matches(msg, m.keys.remove):
		if item, ok := m.accountList.SelectedItem().(accountItem); ok {
			m.pending = item.account.ID
			m.view = ConfirmView
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handleBoardListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.boardList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.back):
		m.view = AccountListView
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		return m, m.startRefresh([]string{m.accountID})
	}
	return m.updateLists(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.removeAccount(m.pending)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.pending = ""
		m.view = AccountListView
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.result = nil
		m.err = nil
		if m.accountID != "" {
			m.view = BoardListView
		} else {
			m.view = AccountListView
		}
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case AccountListView:
		m.accountList, cmd = m.accountList.Update(msg)
	case BoardListView:
		m.boardList, cmd = m.boardList.Update(msg)
	}
	return m, cmd
}

func (m *Model) showBoards(account models.Account) {
	boards, _ := m.state.BoardsFor(account.ID)
	m.accountID = account.ID
	m.boardList.Title = fmt.Sprintf("Boards of '%s'", account.DisplayName())
	m.boardList.SetItems(boardItems(boards))
	m.boardList.ResetSelected()
	m.view = BoardListView
}

func (m *Model) waitForState() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		state, ok := <-updates
		if !ok {
			return nil
		}
		return stateChangedMsg(state)
	}
}

func (m *Model) removeAccount(id string) tea.Cmd {
	return func() tea.Msg {
		return accountRemovedMsg(m.store.RemoveAccount(m.ctx, id))
	}
}

func (m *Model) startRefresh(ids []string) tea.Cmd {
	if len(ids) == 0 {
		return nil
	}
	if m.refresher == nil {
		m.err = fmt.Errorf("board refresh needs Pinterest credentials, run setup first")
		return nil
	}

	m.err = nil
	m.result = nil
	m.progress = tasks.ProgressUpdate{Phase: tasks.RefreshBoards, Total: len(ids), Message: "Starting refresh..."}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.refreshDone = make(chan refreshOutcome, 1)
	m.view = RefreshView

	progress, done := m.progressChan, m.refreshDone
	go func() {
		result, err := m.refresher.RefreshBoards(m.ctx, progress, ids, m.opts)
		done <- refreshOutcome{result, err}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.refreshDone
	return func() tea.Msg {
		if progress == nil {
			return nil
		}

		update, ok := <-progress
		if !ok {
			outcome := <-done
			return refreshCompleteMsg(outcome.result, outcome.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) status() string {
	var lines []string
	if m.state.Loading {
		lines = append(lines, styles.help.Render("Loading..."))
	}
	if m.err != nil {
		lines = append(lines, styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	} else if m.state.Error != "" {
		lines = append(lines, styles.err.Render(m.state.Error))
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n" + strings.Join(lines, "\n")
}

func (m *Model) renderAccountList() string {
	if !m.state.Initialized {
		return styles.help.Render("Loading accounts...")
	}
	if len(m.state.Accounts) == 0 {
		return fmt.Sprintf("%s\n\nNo accounts connected. Run `pinx auth login` to connect one.%s\n\n%s",
			styles.title.Render("Pinterest Accounts"), m.status(), m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.refresh, m.keys.remove, m.keys.quit}
	return fmt.Sprintf("%s%s\n\n%s", m.accountList.View(), m.status(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderBoardList() string {
	helpKeys := []key.Binding{m.keys.refresh, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s%s\n\n%s", m.boardList.View(), m.status(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Disconnect '%s'?", m.pending))
	info := "\n" + styles.muted.Render("The account and its boards are removed from storage.") + "\n"

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderRefresh() string {
	title := styles.title.Render("Refreshing Boards")
	step := fmt.Sprintf("%s (%d/%d)", m.progress.Phase, m.progress.Step, m.progress.Total)
	return fmt.Sprintf("%s\n\n%s\n%s", title, step, m.progress.Message)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Refresh failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	title := styles.ok.Render("✓ Refresh Complete")
	if m.result.Failed > 0 || m.err != nil {
		title = styles.warn.Render("Refresh finished with errors")
	}
	info := fmt.Sprintf("\nAccounts: %d\nSucceeded: %d\nFailed: %d", m.result.Total, m.result.Succeeded, m.result.Failed)

	var details strings.Builder
	for _, r := range m.result.Results {
		if r.Error != nil {
			fmt.Fprintf(&details, "\n  • %s: %s", r.AccountID, styles.err.Render(r.Error.Error()))
		} else {
			fmt.Fprintf(&details, "\n  • %s: %s", r.AccountID, styles.muted.Render(fmt.Sprintf("%d boards", r.Boards)))
		}
	}
	if m.err != nil {
		fmt.Fprintf(&details, "\n\n%s", styles.err.Render(m.err.Error()))
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, details.String(), helpView)
}
