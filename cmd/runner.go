package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pinx/internal/docstore"
	"github.com/desertthunder/pinx/internal/repositories"
	"github.com/desertthunder/pinx/internal/services"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/storage"
	"github.com/desertthunder/pinx/internal/storage/local"
	"github.com/desertthunder/pinx/internal/storage/remote"
	"github.com/desertthunder/pinx/internal/store"
	"github.com/desertthunder/pinx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// remoteTokenTTL bounds tokens minted from remote.secret for a single command.
const remoteTokenTTL = 24 * time.Hour

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	pinterest  *services.PinterestService
	storage    *storage.Storage
	watcher    storage.Watcher
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Storage overrides the backend selected by the config; Watcher is only used with it.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Pinterest  *services.PinterestService
	Storage    *storage.Storage
	Watcher    storage.Watcher
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		pinterest:  opts.Pinterest,
		storage:    opts.Storage,
		watcher:    opts.Watcher,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the logger used by commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, connectCommand, accountsCommand, boardsCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openStore builds the configured storage, initializes a store for the owner key and returns it with a
// cleanup func. With watch set, remote backends push changes into the store.
func (r *Runner) openStore(ctx context.Context, watch bool) (*store.Store, func(), error) {
	owner := r.config.Storage.OwnerKey
	st, watcher, closeStorage, err := r.openStorage(owner)
	if err != nil {
		return nil, nil, err
	}

	opts := []store.Option{store.WithLogger(shared.WithLogger(r.logger, "component", "store"))}
	if watch && watcher != nil {
		opts = append(opts, store.WithWatcher(watcher))
	}
	s := store.New(st, opts...)
	cleanup := func() {
		s.Close()
		closeStorage()
	}

	if err := s.Initialize(ctx, owner); err != nil {
		cleanup()
		return nil, nil, err
	}
	return s, cleanup, nil
}

func (r *Runner) openStorage(owner string) (*storage.Storage, storage.Watcher, func(), error) {
	if r.storage != nil {
		return r.storage, r.watcher, func() {}, nil
	}

	switch strings.ToLower(r.config.Storage.Backend) {
	case shared.BackendLocal, "":
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		st := local.New(repositories.NewBlobRepository(db), r.logger)
		return st, nil, func() { db.Close() }, nil

	case shared.BackendRemote:
		token, err := r.remoteToken(owner)
		if err != nil {
			return nil, nil, nil, err
		}
		client, err := remote.NewClient(r.config.Remote.URL, token,
			remote.WithHTTPClient(r.httpClient), remote.WithLogger(r.logger))
		if err != nil {
			return nil, nil, nil, err
		}
		rs := remote.New(client)
		return rs.Storage, rs, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("%w: unknown storage backend %q", shared.ErrInvalidConfig, r.config.Storage.Backend)
	}
}

// remoteToken returns remote.token, or mints one for owner from remote.secret.
func (r *Runner) remoteToken(owner string) (string, error) {
	if r.config.Remote.Token != "" {
		return r.config.Remote.Token, nil
	}
	if r.config.Remote.Secret == "" {
		return "", fmt.Errorf("%w: remote backend needs remote.token or remote.secret", shared.ErrMissingCredentials)
	}
	token, err := docstore.IssueToken(r.config.Remote.Secret, owner, remoteTokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue remote token: %w", err)
	}
	return token, nil
}

// connectFlow wires the Pinterest service into a flow over s.
func (r *Runner) connectFlow(s *store.Store) (*tasks.ConnectFlow, error) {
	if r.pinterest == nil {
		return nil, fmt.Errorf("%w: Pinterest service not initialized, set client_id and redirect_uri in %s",
			shared.ErrServiceUnavailable, r.configName())
	}
	return tasks.NewConnectFlow(r.pinterest, r.pinterest, s, shared.WithLogger(r.logger, "component", "tasks")), nil
}

func (r *Runner) configName() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

// printProgress writes updates until progress is closed, then closes the returned channel.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.ExchangeCode:
				r.writePlain("🔑 %s\n", update.Message)
			case tasks.Connected:
				r.writePlain("✓ %s\n", update.Message)
			case tasks.RefreshBoards:
				r.writePlain("   [%d/%d] %s\n", update.Step, update.Total, update.Message)
			default:
				r.writePlain("→ %s\n", update.Message)
			}
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
