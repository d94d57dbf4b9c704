// package tasks implements the multi-step account operations that sit between the Pinterest clients and the
// account store.
//
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/services"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/store"
)

// AccountStore is the part of [store.Store] the flows drive.
type AccountStore interface {
	AddAccount(ctx context.Context, account models.Account) error
	SetBoards(ctx context.Context, accountID string, boards []models.Board) error
	SetSelectedAccount(id string) error
	Account(id string) (models.Account, error)
	Snapshot() store.State
}

var _ AccountStore = (*store.Store)(nil)

// ConnectResult describes a connected account.
type ConnectResult struct {
	Account  models.Account
	Boards   []models.Board
	Selected bool // true when the account became the selected one
}

// ConnectFlow connects Pinterest accounts to a store and keeps their boards current.
type ConnectFlow struct {
	exchanger services.TokenExchanger
	fetcher   services.BoardFetcher
	store     AccountStore
	now       func() time.Time
	logger    *log.Logger
}

// NewConnectFlow creates a flow. A nil logger writes to stderr.
func NewConnectFlow(exchanger services.TokenExchanger, fetcher services.BoardFetcher, st AccountStore, logger *log.Logger) *ConnectFlow {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ConnectFlow{
		exchanger: exchanger,
		fetcher:   fetcher,
		store:     st,
		now:       time.Now,
		logger:    shared.WithLogger(logger, "component", "connect"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (f *ConnectFlow) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Connect exchanges code for a token, stores the resulting account, then fetches and stores its boards.
//
// Steps run in order and the first failure stops the rest. Completed steps are kept: when the boards fetch
// fails the account stays connected without a boards entry. The account is selected when it is the only one.
func (f *ConnectFlow) Connect(ctx context.Context, progress chan<- ProgressUpdate, code string) (*ConnectResult, error) {
	const op = "connect"
	const steps = 5

	if f.exchanger == nil || f.fetcher == nil || f.store == nil {
		return nil, shared.NewError(shared.KindUnknown, op, "", shared.ErrServiceUnavailable)
	}

	f.sendProgress(progress, exchangeUpdate(1, steps))
	exchanged, err := f.exchanger.Exchange(ctx, code)
	if err != nil {
		f.logger.Warn("code exchange failed", "error", err)
		return nil, shared.Normalize(op+".exchange", err)
	}

	account := models.NewAccount(exchanged.User, exchanged.Token, f.now())
	result := &ConnectResult{Account: account}

	f.sendProgress(progress, saveAccountUpdate(2, steps, account.ID))
	if err := f.store.AddAccount(ctx, account); err != nil {
		return nil, shared.Normalize(op+".addAccount", err)
	}
	f.logger.Info("account connected", "account", account.ID)

	f.sendProgress(progress, fetchBoardsUpdate(3, steps, account.ID))
	boards, err := f.fetcher.FetchBoards(ctx, account.Token.AccessToken)
	if err != nil {
		f.logger.Warn("boards fetch failed", "account", account.ID, "error", err)
		return result, shared.Normalize(op+".fetchBoards", err)
	}
	result.Boards = boards

	f.sendProgress(progress, saveBoardsUpdate(4, steps, account.ID, len(boards)))
	if err := f.store.SetBoards(ctx, account.ID, boards); err != nil {
		return result, shared.Normalize(op+".setBoards", err)
	}

	if len(f.store.Snapshot().Accounts) == 1 {
		if err := f.store.SetSelectedAccount(account.ID); err != nil {
			return result, shared.Normalize(op+".select", err)
		}
		result.Selected = true
	}

	f.sendProgress(progress, connectedUpdate(steps, steps, account))
	return result, nil
}
