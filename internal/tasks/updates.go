package tasks

import (
	"fmt"

	"github.com/desertthunder/pinx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ExchangeCode Phase = iota
	SaveAccount
	FetchBoards
	SaveBoards
	Connected
	RefreshBoards
)

func (p Phase) String() string {
	switch p {
	case ExchangeCode:
		return "exchange_code"
	case SaveAccount:
		return "save_account"
	case FetchBoards:
		return "fetch_boards"
	case SaveBoards:
		return "save_boards"
	case Connected:
		return "connected"
	case RefreshBoards:
		return "refresh_boards"
	default:
		return ""
	}
}

func exchangeUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExchangeCode,
		Step:    step,
		Total:   total,
		Message: "Exchanging authorization code...",
	}
}

func saveAccountUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveAccount,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Saving account %s...", id),
	}
}

func fetchBoardsUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchBoards,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching boards for %s...", id),
	}
}

func saveBoardsUpdate(step, total int, id string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveBoards,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Saving %d boards for %s...", count, id),
	}
}

func connectedUpdate(step, total int, account models.Account) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Connected,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Connected %s", account.DisplayName()),
		Data:    account,
	}
}

func refreshedUpdate(step, total int, id string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshBoards,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d boards)", step, total, id, count),
	}
}

func refreshFailedUpdate(step, total int, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshBoards,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id, err),
	}
}
