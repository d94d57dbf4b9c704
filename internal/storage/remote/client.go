package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// Client talks to a hosted document store.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *log.Logger
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for document requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithDialer replaces the websocket dialer used for watches.
func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) { c.dialer = d }
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the store at baseURL authenticating with token.
func NewClient(baseURL, token string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: remote url %q", shared.ErrInvalidConfig, baseURL)
	}

	c := &Client{
		baseURL:    u.String(),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dialer:     websocket.DefaultDialer,
		logger:     shared.NewLogger(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = shared.WithLogger(c.logger, "storage", "remote")
	return c, nil
}

func (c *Client) documentURL(path string) string {
	return c.baseURL + "/v1/docs/" + path
}

func (c *Client) watchURL(path string) string {
	base := "ws" + strings.TrimPrefix(c.baseURL, "http")
	return base + "/v1/watch?path=" + url.QueryEscape(path)
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}

// Get returns the value at path. A missing document yields (nil, false, nil).
func (c *Client) Get(ctx context.Context, op, path string) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.documentURL(path), nil)
	if err != nil {
		return nil, false, shared.NewError(shared.KindPersistenceRead, op, "", err)
	}
	c.authorize(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, shared.Normalize(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, shared.Normalize(op, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.StatusCode != http.StatusOK:
		return nil, false, statusError(op, resp.StatusCode, body, shared.KindPersistenceRead)
	}
	return body, true, nil
}

// Put replaces the value at path with the JSON encoding of value.
func (c *Client) Put(ctx context.Context, op, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return shared.NewError(shared.KindPersistenceWrite, op, "", fmt.Errorf("encode %s: %w", path, err))
	}
	return c.write(ctx, op, http.MethodPut, path, data)
}

// Delete removes the value at path. Deleting a missing document succeeds.
func (c *Client) Delete(ctx context.Context, op, path string) error {
	return c.write(ctx, op, http.MethodDelete, path, nil)
}

func (c *Client) write(ctx context.Context, op, method, path string, data []byte) error {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.documentURL(path), body)
	if err != nil {
		return shared.NewError(shared.KindPersistenceWrite, op, "", err)
	}
	c.authorize(req.Header)
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.Normalize(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		return statusError(op, resp.StatusCode, respBody, shared.KindPersistenceWrite)
	}
	return nil
}

// statusError maps a non-success response to an error kind. fallback is used for anything that is not an auth
// failure.
func statusError(op string, status int, body []byte, fallback shared.Kind) *shared.Error {
	var payload struct {
		Message string `json:"message"`
	}
	json.Unmarshal(body, &payload)
	cause := fmt.Errorf("%s: status %d: %s", op, status, strings.TrimSpace(payload.Message))

	switch status {
	case http.StatusUnauthorized:
		return shared.NewError(shared.KindUnauthenticated, op, "", cause)
	case http.StatusForbidden:
		return shared.NewError(shared.KindUnauthorized, op, "", cause)
	default:
		return shared.NewError(fallback, op, "", cause)
	}
}

// Subscribe watches path and calls onChange with the full value after every change.
//
// Broken connections are retried with backoff; each failure is reported to onError. Callbacks run on one
// goroutine and never after the returned unsubscribe func has returned.
func (c *Client) Subscribe(path string, onChange func(json.RawMessage), onError func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{client: c, path: path, onChange: onChange, onError: onError, done: make(chan struct{})}
	go sub.run(ctx)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			sub.closeConn()
			<-sub.done
		})
	}
}

type subscription struct {
	client   *Client
	path     string
	onChange func(json.RawMessage)
	onError  func(error)
	done     chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)

	const op = "remote.subscribe"
	backoff := minBackoff
	for {
		connected, err := s.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.client.logger.Warn("watch interrupted", "path", s.path, "error", err)
			s.onError(watchError(op, err))
		}
		if connected {
			backoff = minBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// listen holds one connection until it fails. connected reports whether the handshake succeeded.
func (s *subscription) listen(ctx context.Context) (connected bool, err error) {
	const op = "remote.subscribe"

	header := http.Header{}
	s.client.authorize(header)

	conn, resp, err := s.client.dialer.DialContext(ctx, s.client.watchURL(s.path), header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return false, statusError(op, resp.StatusCode, body, shared.KindPersistenceRead)
		}
		return false, err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer s.closeConn()

	if ctx.Err() != nil {
		return true, nil
	}

	for {
		var msg watchMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return true, err
		}

		switch msg.Type {
		case "value":
			s.onChange(msg.Data)
		case "error":
			s.onError(shared.NewError(shared.KindPersistenceRead, op, "", fmt.Errorf("watch %s: %s", s.path, msg.Message)))
		}
	}
}

// watchError keeps already classified errors and treats everything else as a dropped connection.
func watchError(op string, err error) error {
	var se *shared.Error
	if errors.As(err, &se) {
		return se
	}
	return shared.NewError(shared.KindNetwork, op, "", err)
}

func (s *subscription) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

type watchMessage struct {
	Type    string          `json:"type"`
	Path    string          `json:"path"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}
