package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/store"
)

var (
	_ list.Item = accountItem{}
	_ list.Item = boardItem{}
)

// accountItem wraps [models.Account] to implement [list.Item].
type accountItem struct {
	account  models.Account
	boards   int
	selected bool
}

func (i accountItem) FilterValue() string { return i.account.ID }
func (i accountItem) Title() string {
	if i.selected {
		return "● " + i.account.DisplayName()
	}
	return i.account.DisplayName()
}
func (i accountItem) Description() string {
	return fmt.Sprintf("@%s • %d boards • refreshed %s",
		i.account.ID, i.boards, i.account.RefreshedAt().Format("2006-01-02 15:04"))
}

// boardItem wraps [models.Board] to implement [list.Item].
type boardItem struct {
	board models.Board
}

func (i boardItem) FilterValue() string { return i.board.Name }
func (i boardItem) Title() string       { return i.board.Name }
func (i boardItem) Description() string {
	desc := fmt.Sprintf("%d pins", i.board.PinCount)
	if i.board.Privacy != "" {
		desc = fmt.Sprintf("%s • %s", desc, strings.ToLower(i.board.Privacy))
	}
	if i.board.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.board.Description)
	}
	return desc
}

func accountItems(state store.State) []list.Item {
	items := make([]list.Item, len(state.Accounts))
	for i, acc := range state.Accounts {
		boards, _ := state.BoardsFor(acc.ID)
		items[i] = accountItem{account: acc, boards: len(boards), selected: acc.ID == state.SelectedAccountID}
	}
	return items
}

func boardItems(boards []models.Board) []list.Item {
	items := make([]list.Item, len(boards))
	for i, b := range boards {
		items[i] = boardItem{board: b}
	}
	return items
}
