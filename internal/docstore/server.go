package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pinx/internal/repositories"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

const (
	// DefaultSnapshotName is the document name the tree is persisted under.
	DefaultSnapshotName = "docstore"

	// RevisionHeader carries the tree revision after a read or write.
	RevisionHeader = "X-Revision"

	maxBodySize = 8 << 20
)

// SnapshotStore persists whole-tree snapshots. [repositories.DocumentRepository] implements it.
type SnapshotStore interface {
	Load(ctx context.Context, name string) (*repositories.Document, error)
	Save(ctx context.Context, doc repositories.Document) error
}

var _ SnapshotStore = (*repositories.DocumentRepository)(nil)

// Options configures a [Server].
type Options struct {
	Secret         string
	AllowedOrigins []string
	Snapshots      SnapshotStore // nil keeps the tree in memory only
	SnapshotName   string
	Logger         *log.Logger
}

// Server exposes a [Tree] over HTTP with websocket watches.
type Server struct {
	secret    string
	tree      *Tree
	hub       *Hub
	snapshots SnapshotStore
	name      string
	origins   []string
	upgrader  websocket.Upgrader
	logger    *log.Logger

	// writeMu orders mutation, snapshot and notification so watchers observe revisions in sequence.
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewServer builds a server and starts its watch hub. Call [Server.Close] to stop it.
func NewServer(opts Options) (*Server, error) {
	if opts.Secret == "" {
		return nil, fmt.Errorf("%w: docstore secret", shared.ErrMissingConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.SnapshotName == "" {
		opts.SnapshotName = DefaultSnapshotName
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	logger := shared.WithLogger(opts.Logger, "component", "docstore")
	tree := NewTree()
	s := &Server{
		secret:    opts.Secret,
		tree:      tree,
		hub:       NewHub(tree, logger),
		snapshots: opts.Snapshots,
		name:      opts.SnapshotName,
		origins:   opts.AllowedOrigins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
	go s.hub.Run()
	return s, nil
}

// Restore loads the last snapshot, if any.
func (s *Server) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}

	doc, err := s.snapshots.Load(ctx, s.name)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if doc == nil {
		s.logger.Info("no snapshot found, starting empty")
		return nil
	}
	if err := s.tree.Restore(doc.Body, doc.Revision); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	s.logger.Info("snapshot restored", "revision", doc.Revision, "bytes", len(doc.Body))
	return nil
}

// Tree returns the backing tree.
func (s *Server) Tree() *Tree {
	return s.tree
}

// Handler returns the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/docs/{path:.+}", s.getDocument).Methods("GET")
	api.HandleFunc("/docs/{path:.+}", s.putDocument).Methods("PUT")
	api.HandleFunc("/docs/{path:.+}", s.deleteDocument).Methods("DELETE")
	api.HandleFunc("/watch", s.watch).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{RevisionHeader},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down and closes the hub.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("document store listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("error shutting down server", "error", err)
	}
	s.Close()
	return nil
}

// Close disconnects every watcher. It is safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(s.hub.Close)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"revision": s.tree.Revision(),
		"watchers": s.hub.Clients(),
	})
}

// documentPath resolves the {path} variable and checks it belongs to the caller.
func (s *Server) documentPath(w http.ResponseWriter, r *http.Request, raw string) ([]string, bool) {
	segments, err := SplitPath(raw)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	owner, ok := ownerFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, errMissingToken.Error())
		return nil, false
	}
	if !authorized(owner, segments) {
		writeMessage(w, http.StatusForbidden, "permission denied")
		return nil, false
	}
	return segments, true
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	segments, ok := s.documentPath(w, r, mux.Vars(r)["path"])
	if !ok {
		return
	}

	data, found, err := s.tree.Get(segments)
	if err != nil {
		s.logger.Error("failed to read document", "error", err)
		writeMessage(w, http.StatusInternalServerError, "failed to read document")
		return
	}
	if !found {
		writeMessage(w, http.StatusNotFound, "not found")
		return
	}

	w.Header().Set(RevisionHeader, strconv.FormatInt(s.tree.Revision(), 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) putDocument(w http.ResponseWriter, r *http.Request) {
	segments, ok := s.documentPath(w, r, mux.Vars(r)["path"])
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	s.mutate(r.Context(), w, segments, func() (int64, error) {
		return s.tree.Set(segments, body)
	})
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	segments, ok := s.documentPath(w, r, mux.Vars(r)["path"])
	if !ok {
		return
	}

	s.mutate(r.Context(), w, segments, func() (int64, error) {
		return s.tree.Delete(segments), nil
	})
}

// mutate applies change, persists the snapshot and notifies watchers of segments.
//
// A snapshot failure is reported to the writer after watchers are notified; the in-memory tree keeps the change.
func (s *Server) mutate(ctx context.Context, w http.ResponseWriter, segments []string, change func() (int64, error)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	revision, err := change()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	persistErr := s.persist(ctx)
	s.hub.Notify(segments)

	if persistErr != nil {
		s.logger.Error("failed to persist snapshot", "revision", revision, "error", persistErr)
		writeMessage(w, http.StatusInternalServerError, "failed to persist document")
		return
	}

	w.Header().Set(RevisionHeader, strconv.FormatInt(revision, 10))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) persist(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}

	body, revision, err := s.tree.Snapshot()
	if err != nil {
		return err
	}
	return s.snapshots.Save(ctx, repositories.Document{Name: s.name, Body: body, Revision: revision})
}

func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	segments, ok := s.documentPath(w, r, r.URL.Query().Get("path"))
	if !ok {
		return
	}
	owner, _ := ownerFrom(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(s.hub, conn, owner, segments)
	if !s.hub.registerClient(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
