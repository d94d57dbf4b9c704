package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/pinx/internal/server"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// authTimeout is how long the callback listener waits for the browser.
const authTimeout = 2 * time.Minute

// AuthLogin performs the OAuth2 authorization flow for Pinterest and connects the account.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges the returned code through
// the token proxy.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.pinterest == nil {
		return fmt.Errorf("%w: Pinterest client_id and redirect_uri must be set in %s",
			shared.ErrMissingCredentials, r.configName())
	}

	code, err := r.doOAuth(ctx, !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}
	return r.connect(ctx, code)
}

// AuthURL prints an authorization URL for completing the flow by hand with `pinx connect`.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	if r.pinterest == nil {
		return fmt.Errorf("%w: Pinterest service not initialized", shared.ErrServiceUnavailable)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	r.writePlain("%s\n", r.pinterest.AuthURL(state))
	r.writePlain("\nState: %s\n", state)
	r.writePlain("After approving, run: pinx connect <code>\n")
	return nil
}

// Connect exchanges an authorization code and stores the account and its boards.
func (r *Runner) Connect(ctx context.Context, cmd *cli.Command) error {
	code := cmd.StringArg("code")
	if code == "" {
		return fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}
	return r.connect(ctx, code)
}

func (r *Runner) connect(ctx context.Context, code string) error {
	s, cleanup, err := r.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	flow, err := r.connectFlow(s)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 10)
	printed := r.printProgress(progressCh)
	result, err := flow.Connect(ctx, progressCh, code)
	close(progressCh)
	<-printed

	if err != nil {
		if result != nil {
			r.writePlain("⚠ Account @%s was saved before the failure\n", result.Account.ID)
		}
		return err
	}

	r.writePlainln("✓ Connected @%s (%d boards)", result.Account.ID, len(result.Boards))
	if result.Selected {
		r.writePlain("  Selected as the active account\n")
	}
	return nil
}

// doOAuth runs the authorization flow with a local callback server and returns the authorization code.
func (r *Runner) doOAuth(ctx context.Context, openBrowser bool) (string, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := r.pinterest.AuthURL(state)
	oauthHandler := server.NewOAuthHandler(state)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(oauthHandler)

	serverAddr := r.config.Server.Addr()
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	if openBrowser {
		r.writePlain("→ Opening browser for Pinterest authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return "", fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return "", fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if result.Error() != nil {
		return "", fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Code == "" {
		return "", fmt.Errorf("no authorization code received")
	}
	return result.Code, nil
}
