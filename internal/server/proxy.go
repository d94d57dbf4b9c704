package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pinx/internal/models"
	"github.com/desertthunder/pinx/internal/services"
	"github.com/desertthunder/pinx/internal/shared"
	"golang.org/x/oauth2"
)

const maxProxyBody = 1 << 20

// ProxyHandler exchanges OAuth codes and forwards board requests to the Pinterest API so the client secret
// never has to reach a browser.
//
// Provider failures are answered with the provider's status and a {"message"} body. Failures to reach the
// provider are answered with 502 and code NETWORK_ERROR.
type ProxyHandler struct {
	apiURL     string
	creds      shared.PinterestConfig
	httpClient *http.Client
	logger     *log.Logger
}

// NewProxyHandler creates a proxy for the API at cfg.APIURL. Client credentials in cfg are used when a
// request leaves them out.
func NewProxyHandler(cfg shared.PinterestConfig, client *http.Client, logger *log.Logger) *ProxyHandler {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = services.DefaultAPIURL
	}
	return &ProxyHandler{
		apiURL:     apiURL,
		creds:      cfg,
		httpClient: client,
		logger:     shared.WithLogger(logger, "component", "proxy"),
	}
}

// Routes returns the HTTP routes this handler serves.
func (p *ProxyHandler) Routes() []string {
	return []string{services.TokenPath, services.BoardsPath}
}

// ServeHTTP dispatches on path and method.
func (p *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == services.TokenPath && r.Method == http.MethodPost:
		p.exchange(w, r)
	case r.URL.Path == services.BoardsPath && r.Method == http.MethodGet:
		p.boards(w, r)
	case r.URL.Path == services.TokenPath || r.URL.Path == services.BoardsPath:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	default:
		writeError(w, http.StatusNotFound, "Not found", "")
	}
}

func (p *ProxyHandler) exchange(w http.ResponseWriter, r *http.Request) {
	var req services.ExchangeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxProxyBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.ClientID == "" && req.ClientSecret == "" {
		req.ClientID, req.ClientSecret = p.creds.ClientID, p.creds.ClientSecret
	}
	if req.RedirectURI == "" {
		req.RedirectURI = p.creds.RedirectURI
	}
	if req.Code == "" || req.RedirectURI == "" || req.ClientID == "" || req.ClientSecret == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameters", "")
		return
	}

	config := &oauth2.Config{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		RedirectURL:  req.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  p.apiURL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	p.logger.Info("exchanging code for token", "redirect_uri", req.RedirectURI)
	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, p.httpClient)
	tok, err := config.Exchange(ctx, req.Code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			p.logger.Warn("token exchange rejected", "status", rerr.Response.StatusCode)
			writeError(w, rerr.Response.StatusCode, providerMessage(rerr.Body, "Failed to exchange Pinterest code"), "")
			return
		}
		p.logger.Error("token exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to connect to Pinterest API", "NETWORK_ERROR")
		return
	}

	var user models.User
	status, body, err := p.get(r.Context(), "/user_account", tok.AccessToken, "")
	switch {
	case err != nil:
		p.logger.Error("user fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to connect to Pinterest API", "NETWORK_ERROR")
		return
	case status < 200 || status >= 300:
		writeError(w, status, providerMessage(body, "Failed to fetch user data"), "")
		return
	}
	if err := json.Unmarshal(body, &user); err != nil {
		writeError(w, http.StatusBadGateway, "Failed to connect to Pinterest API", "NETWORK_ERROR")
		return
	}

	p.logger.Info("code exchanged", "user", user.Username)
	writeJSON(w, http.StatusOK, services.ExchangeResult{Token: tokenFrom(tok), User: user})
}

func (p *ProxyHandler) boards(w http.ResponseWriter, r *http.Request) {
	accessToken := bearer(r)
	if accessToken == "" {
		writeError(w, http.StatusUnauthorized, "No access token provided", "")
		return
	}

	status, body, err := p.get(r.Context(), "/boards", accessToken, r.URL.RawQuery)
	if err != nil {
		p.logger.Error("boards fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to connect to Pinterest API", "NETWORK_ERROR")
		return
	}
	if status < 200 || status >= 300 {
		writeError(w, status, providerMessage(body, "Failed to fetch boards"), "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// get performs an authenticated GET against the API and returns the raw response.
func (p *ProxyHandler) get(ctx context.Context, path, accessToken, rawQuery string) (int, []byte, error) {
	u := p.apiURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return resp.StatusCode, body, nil
}

// tokenFrom converts an oauth2 token back to the provider's field names.
func tokenFrom(tok *oauth2.Token) models.Token {
	out := models.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	switch v := tok.Extra("refresh_token_expires_in").(type) {
	case float64:
		out.RefreshTokenExpiresIn = int64(v)
	case json.Number:
		out.RefreshTokenExpiresIn, _ = v.Int64()
	}
	return out
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// providerMessage pulls the message out of a provider error body.
func providerMessage(body []byte, fallback string) string {
	var e services.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Message == "" {
		return fallback
	}
	return e.Message
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, services.ErrorResponse{Message: message, Code: code})
}
