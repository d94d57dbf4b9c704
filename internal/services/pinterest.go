package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	DefaultOAuthURL = "https://www.pinterest.com/oauth/"
	DefaultAPIURL   = "https://api.pinterest.com/v5"

	// TokenPath and BoardsPath are the routes served by the token proxy.
	TokenPath  = "/api/pinterest/token"
	BoardsPath = "/api/pinterest/boards"

	boardsPageSize = 100
	maxBoardPages  = 50
)

// DefaultScopes are requested when the configuration names none.
var DefaultScopes = []string{"boards:read", "pins:read", "pins:write", "user_accounts:read", "boards:write"}

var (
	_ TokenExchanger = (*PinterestService)(nil)
	_ BoardFetcher   = (*PinterestService)(nil)
)

// PinterestService builds authorization URLs, exchanges codes through the token proxy and lists boards.
type PinterestService struct {
	config     *oauth2.Config
	proxyURL   string
	boardsURL  string
	httpClient *http.Client
	logger     *log.Logger
}

// NewPinterestService creates a service from the [pinterest] config section. A nil client uses a client with a
// 30 second timeout.
func NewPinterestService(cfg shared.PinterestConfig, client *http.Client, logger *log.Logger) (*PinterestService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: pinterest client_id", shared.ErrMissingCredentials)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: pinterest redirect_uri", shared.ErrMissingConfig)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	oauthURL := cfg.OAuthURL
	if oauthURL == "" {
		oauthURL = DefaultOAuthURL
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &PinterestService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			// Pinterest expects one comma separated scope parameter
			Scopes: []string{strings.Join(scopes, ",")},
			Endpoint: oauth2.Endpoint{
				AuthURL:   oauthURL,
				TokenURL:  apiURL + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		proxyURL:   strings.TrimRight(cfg.ProxyURL, "/"),
		boardsURL:  apiURL + "/boards",
		httpClient: client,
		logger:     shared.WithLogger(logger, "service", "pinterest"),
	}, nil
}

// AuthURL returns the authorization URL the user opens to grant access.
func (s *PinterestService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange posts the code to the token proxy.
func (s *PinterestService) Exchange(ctx context.Context, code string) (*ExchangeResult, error) {
	const op = "pinterest.exchange"
	if strings.TrimSpace(code) == "" {
		return nil, shared.NewError(shared.KindUnauthorized, op, "Missing authorization code", shared.ErrMissingArgument)
	}
	if s.proxyURL == "" {
		return nil, shared.NewError(shared.KindNetwork, op, "Token proxy is not configured", fmt.Errorf("%w: pinterest proxy_url", shared.ErrMissingConfig))
	}

	body, err := json.Marshal(ExchangeRequest{
		Code:         code,
		RedirectURI:  s.config.RedirectURL,
		ClientID:     s.config.ClientID,
		ClientSecret: s.config.ClientSecret,
	})
	if err != nil {
		return nil, shared.NewError(shared.KindUnknown, op, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.proxyURL+TokenPath, bytes.NewReader(body))
	if err != nil {
		return nil, shared.NewError(shared.KindNetwork, op, "Failed to connect to Pinterest API", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	s.logger.Debug("exchanging code", "code", redact(code))
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, shared.NewError(shared.KindNetwork, op, "Failed to connect to Pinterest API", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.NewError(shared.KindNetwork, op, "Failed to connect to Pinterest API", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := errorMessage(data, "Failed to exchange Pinterest code")
		cause := fmt.Errorf("token proxy: status %d", resp.StatusCode)
		s.logger.Warn("code exchange failed", "status", resp.StatusCode, "message", message)
		if resp.StatusCode >= 500 {
			return nil, shared.NewError(shared.KindNetwork, op, message, cause)
		}
		return nil, shared.NewError(shared.KindUnauthorized, op, message, cause)
	}

	var result ExchangeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, shared.NewError(shared.KindNetwork, op, "Failed to connect to Pinterest API", fmt.Errorf("decode exchange response: %w", err))
	}
	if result.Token.AccessToken == "" || result.User.Username == "" {
		return nil, shared.NewError(shared.KindUnauthorized, op, "Failed to exchange Pinterest code", fmt.Errorf("incomplete exchange response"))
	}
	return &result, nil
}

// FetchBoards lists every board, following bookmarks until the last page.
func (s *PinterestService) FetchBoards(ctx context.Context, accessToken string) ([]models.Board, error) {
	boards := []models.Board{}
	bookmark := ""
	for page := 0; page < maxBoardPages; page++ {
		result, err := s.FetchBoardsPage(ctx, accessToken, bookmark)
		if err != nil {
			return nil, err
		}
		boards = append(boards, result.Items...)
		bookmark = result.Bookmark
		if bookmark == "" {
			break
		}
	}
	if bookmark != "" {
		s.logger.Warn("board listing truncated, more pages remain", "pages", maxBoardPages, "count", len(boards))
	}

	s.logger.Debug("fetched boards", "count", len(boards))
	return boards, nil
}

// FetchBoardsPage returns one page of boards starting at bookmark.
func (s *PinterestService) FetchBoardsPage(ctx context.Context, accessToken, bookmark string) (*BoardsPage, error) {
	const op = "pinterest.boards"
	if accessToken == "" {
		return nil, shared.NewError(shared.KindUnauthenticated, op, "No access token provided", shared.ErrMissingCredentials)
	}

	q := url.Values{}
	q.Set("page_size", fmt.Sprint(boardsPageSize))
	if bookmark != "" {
		q.Set("bookmark", bookmark)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.boardsURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, shared.NewError(shared.KindNetwork, op, "Failed to fetch Pinterest boards", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, shared.NewError(shared.KindNetwork, op, "Failed to fetch Pinterest boards", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.NewError(shared.KindNetwork, op, "Failed to fetch Pinterest boards", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := errorMessage(data, "Failed to fetch boards")
		s.logger.Warn("boards fetch failed", "status", resp.StatusCode, "message", message)
		return nil, shared.NewError(shared.KindUnauthorized, op, message, fmt.Errorf("boards: status %d", resp.StatusCode))
	}

	var result BoardsPage
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, shared.NewError(shared.KindNetwork, op, "Failed to fetch Pinterest boards", fmt.Errorf("decode boards: %w", err))
	}
	if result.Items == nil {
		result.Items = []models.Board{}
	}
	return &result, nil
}

// UseProxyForBoards routes board requests through the token proxy instead of calling the API directly.
func (s *PinterestService) UseProxyForBoards() {
	if s.proxyURL != "" {
		s.boardsURL = s.proxyURL + BoardsPath
	}
}

// errorMessage pulls "message" (or the proxy's legacy "error") out of an error body.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Error != "":
		return payload.Error
	default:
		return fallback
	}
}

func redact(s string) string {
	if len(s) <= 10 {
		return "..."
	}
	return s[:10] + "..."
}
