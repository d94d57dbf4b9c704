package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/shared"
	"golang.org/x/time/rate"
)

// RefreshOpts configures [ConnectFlow.RefreshBoards].
type RefreshOpts struct {
	NumWorkers int     // Concurrent fetches (default: 3, max: 10)
	RateLimit  float64 // Board fetches started per second (default: 5)
}

// AccountRefreshResult is the outcome for one account.
type AccountRefreshResult struct {
	AccountID string
	Boards    int
	Error     error
}

// RefreshResult summarizes a refresh run.
type RefreshResult struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []AccountRefreshResult
}

type refreshJob struct {
	account models.Account
}

// RefreshBoards re-fetches and stores the boards of the given accounts, or of every account when ids is empty.
//
// Accounts are fetched by a rate limited worker pool. A failure for one account is recorded in its result and
// does not stop the others. The returned error is only set when ctx ends before every account was handled.
func (f *ConnectFlow) RefreshBoards(ctx context.Context, progress chan<- ProgressUpdate, ids []string, opts RefreshOpts) (*RefreshResult, error) {
	const op = "refreshBoards"

	if f.fetcher == nil || f.store == nil {
		return nil, shared.NewError(shared.KindUnknown, op, "", shared.ErrServiceUnavailable)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if len(ids) == 0 {
		for _, acc := range f.store.Snapshot().Accounts {
			ids = append(ids, acc.ID)
		}
	}

	result := &RefreshResult{Total: len(ids), Results: make([]AccountRefreshResult, 0, len(ids))}
	if len(ids) == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan refreshJob, len(ids))
	results := make(chan AccountRefreshResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go f.refreshWorker(ctx, &wg, jobs, results)
	}

	// the producer reports lookup failures on results, so it holds the group open too
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for _, id := range ids {
			account, err := f.store.Account(id)
			if err != nil {
				results <- AccountRefreshResult{AccountID: id, Error: err}
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- refreshJob{account: account}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Error == nil {
			result.Succeeded++
			f.sendProgress(progress, refreshedUpdate(completed, len(ids), res.AccountID, res.Boards))
		} else {
			result.Failed++
			f.sendProgress(progress, refreshFailedUpdate(completed, len(ids), res.AccountID, res.Error))
		}
	}

	if completed < len(ids) {
		if err := ctx.Err(); err != nil {
			return result, shared.Normalize(op, err)
		}
	}
	f.logger.Info("boards refreshed", "accounts", len(ids), "failed", result.Failed)
	return result, nil
}

// refreshWorker fetches and stores boards for accounts from the jobs channel.
func (f *ConnectFlow) refreshWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan refreshJob, results chan<- AccountRefreshResult) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- f.refreshAccount(ctx, job.account)
	}
}

func (f *ConnectFlow) refreshAccount(ctx context.Context, account models.Account) AccountRefreshResult {
	res := AccountRefreshResult{AccountID: account.ID}

	boards, err := f.fetcher.FetchBoards(ctx, account.Token.AccessToken)
	if err != nil {
		res.Error = shared.Normalize("refreshBoards.fetch", err)
		return res
	}
	if err := f.store.SetBoards(ctx, account.ID, boards); err != nil {
		res.Error = shared.Normalize("refreshBoards.save", err)
		return res
	}
	res.Boards = len(boards)
	return res
}
