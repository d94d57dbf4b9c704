package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pinx/internal/docstore"
	"github.com/desertthunder/pinx/internal/repositories"
	"github.com/desertthunder/pinx/internal/server"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/urfave/cli/v3"
)

// ServeProxy runs the token exchange proxy until interrupted.
func (r *Runner) ServeProxy(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Pinterest
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		r.logger.Warn("pinterest credentials missing, requests must carry clientId and clientSecret")
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.ProxyAddr()
	}

	logger := shared.WithLogger(r.logger, "component", "proxy")
	proxy := server.NewProxyHandler(cfg, r.httpClient, logger)
	handler := server.NewProxyRouter(proxy, r.config.Server.AllowedOrigins, logger)
	return server.Serve(ctx, addr, handler, logger)
}

// ServeDocStore runs the document store until interrupted, persisting snapshots to the database unless
// --memory is set.
func (r *Runner) ServeDocStore(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.DocStore
	opts := docstore.Options{
		Secret:         cfg.Secret,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         r.logger,
	}

	if cfg.Persist && !cmd.Bool("memory") {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		opts.Snapshots = repositories.NewDocumentRepository(db)
	}

	srv, err := docstore.NewServer(opts)
	if err != nil {
		return err
	}
	if err := srv.Restore(ctx); err != nil {
		srv.Close()
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = cfg.Addr()
	}
	return srv.ListenAndServe(ctx, addr)
}

// ServeToken prints a document store token for owner signed with docstore.secret.
func (r *Runner) ServeToken(ctx context.Context, cmd *cli.Command) error {
	owner := cmd.StringArg("owner")
	if owner == "" {
		owner = r.config.Storage.OwnerKey
	}
	if r.config.DocStore.Secret == "" {
		return fmt.Errorf("%w: docstore.secret", shared.ErrMissingConfig)
	}

	token, err := docstore.IssueToken(r.config.DocStore.Secret, owner, cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", token)
}
