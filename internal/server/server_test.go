package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/pinx/internal/services"
	"github.com/desertthunder/pinx/internal/shared"
	tu "github.com/desertthunder/pinx/internal/testing"
)

// fakePinterest serves the three API endpoints the proxy calls.
func fakePinterest(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client-id" || secret != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":1,"message":"Invalid client credentials"}`))
			return
		}
		r.ParseForm()
		if r.PostForm.Get("grant_type") != "authorization_code" {
			t.Errorf("unexpected grant type %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("redirect_uri") != "http://localhost:3000/callback" {
			t.Errorf("unexpected redirect uri %q", r.PostForm.Get("redirect_uri"))
		}
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":283,"message":"Invalid authorization code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"pina_123","refresh_token":"pinr_456","token_type":"bearer","expires_in":2592000,"refresh_token_expires_in":31536000,"scope":"boards:read,pins:read"}`))
	})
	mux.HandleFunc("/user_account", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer pina_123" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":2,"message":"Authentication failed."}`))
			return
		}
		w.Write([]byte(`{"username":"alice","account_type":"BUSINESS","business_name":"Alice Co"}`))
	})
	mux.HandleFunc("/boards", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer pina_123" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":2,"message":"Authentication failed."}`))
			return
		}
		if r.URL.Query().Get("bookmark") == "next" {
			w.Write([]byte(`{"items":[{"id":"b2","name":"Two"}],"bookmark":null}`))
			return
		}
		w.Write([]byte(`{"items":[{"id":"b1","name":"One"}],"bookmark":"next"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func proxyConfig(apiURL string) shared.PinterestConfig {
	return shared.PinterestConfig{APIURL: apiURL}
}

func newProxy(t *testing.T, cfg shared.PinterestConfig) *httptest.Server {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	srv := httptest.NewServer(NewProxyRouter(NewProxyHandler(cfg, nil, logger), nil, logger))
	t.Cleanup(srv.Close)
	return srv
}

func postExchange(t *testing.T, proxyURL string, req services.ExchangeRequest) (*http.Response, []byte) {
	t.Helper()
	body, _ := json.Marshal(req)
	resp, err := http.Post(proxyURL+services.TokenPath, "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func goodRequest(code string) services.ExchangeRequest {
	return services.ExchangeRequest{
		Code:         code,
		RedirectURI:  "http://localhost:3000/callback",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}
}

func TestProxyExchange(t *testing.T) {
	api := fakePinterest(t)

	t.Run("returns token and user", func(t *testing.T) {
		proxy := newProxy(t, proxyConfig(api.URL))
		resp, body := postExchange(t, proxy.URL, goodRequest("good-code"))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}

		var result services.ExchangeResult
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatalf("invalid response: %v", err)
		}
		tok := result.Token
		if tok.AccessToken != "pina_123" || tok.RefreshToken != "pinr_456" || tok.ExpiresIn != 2592000 {
			t.Errorf("unexpected token %+v", tok)
		}
		if tok.Scope != "boards:read,pins:read" || tok.RefreshTokenExpiresIn != 31536000 {
			t.Errorf("expected extras to survive, got %+v", tok)
		}
		if result.User.Username != "alice" || result.User.BusinessName != "Alice Co" {
			t.Errorf("unexpected user %+v", result.User)
		}
	})

	t.Run("configured credentials fill the request", func(t *testing.T) {
		cfg := proxyConfig(api.URL)
		cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI = "client-id", "client-secret", "http://localhost:3000/callback"
		proxy := newProxy(t, cfg)

		resp, body := postExchange(t, proxy.URL, services.ExchangeRequest{Code: "good-code"})
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
		}
	})

	tc := []struct {
		name        string
		req         services.ExchangeRequest
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "missing parameters",
			req:         services.ExchangeRequest{Code: "good-code"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing required parameters",
		},
		{
			name:        "rejected code",
			req:         goodRequest("bad-code"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid authorization code",
		},
		{
			name: "rejected client",
			req: services.ExchangeRequest{
				Code: "good-code", RedirectURI: "http://localhost:3000/callback", ClientID: "client-id", ClientSecret: "wrong",
			},
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid client credentials",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			proxy := newProxy(t, proxyConfig(api.URL))
			resp, body := postExchange(t, proxy.URL, tt.req)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, resp.StatusCode, body)
			}
			var e services.ErrorResponse
			json.Unmarshal(body, &e)
			if e.Message != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, e.Message)
			}
		})
	}

	t.Run("invalid body", func(t *testing.T) {
		proxy := newProxy(t, proxyConfig(api.URL))
		resp, err := http.Post(proxy.URL+services.TokenPath, "application/json", strings.NewReader("{"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("unreachable provider", func(t *testing.T) {
		logger := shared.NewLogger(io.Discard)
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
		proxy := httptest.NewServer(NewProxyRouter(NewProxyHandler(proxyConfig("http://pinterest.invalid"), client, logger), nil, logger))
		defer proxy.Close()

		resp, body := postExchange(t, proxy.URL, goodRequest("good-code"))
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", resp.StatusCode)
		}
		var e services.ErrorResponse
		json.Unmarshal(body, &e)
		if e.Code != "NETWORK_ERROR" || e.Message != "Failed to connect to Pinterest API" {
			t.Errorf("unexpected error body %+v", e)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		proxy := newProxy(t, proxyConfig(api.URL))
		resp, err := http.Get(proxy.URL + services.TokenPath)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})
}

func TestProxyBoards(t *testing.T) {
	api := fakePinterest(t)
	proxy := newProxy(t, proxyConfig(api.URL))

	get := func(t *testing.T, query, token string) (*http.Response, []byte) {
		t.Helper()
		req, _ := http.NewRequest(http.MethodGet, proxy.URL+services.BoardsPath+query, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp, body
	}

	t.Run("passes the page through", func(t *testing.T) {
		resp, body := get(t, "?bookmark=next", "pina_123")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var page services.BoardsPage
		json.Unmarshal(body, &page)
		if len(page.Items) != 1 || page.Items[0].ID != "b2" {
			t.Errorf("expected the bookmarked page, got %s", body)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		resp, body := get(t, "", "")
		if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(string(body), "No access token provided") {
			t.Errorf("expected 401, got %d: %s", resp.StatusCode, body)
		}
	})

	t.Run("provider rejection keeps status", func(t *testing.T) {
		resp, body := get(t, "", "expired")
		if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(string(body), "Authentication failed.") {
			t.Errorf("expected provider error, got %d: %s", resp.StatusCode, body)
		}
	})
}

func TestProxyWithService(t *testing.T) {
	api := fakePinterest(t)
	proxy := newProxy(t, proxyConfig(api.URL))
	ctx := context.Background()

	svc, err := services.NewPinterestService(shared.PinterestConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:3000/callback",
		ProxyURL:     proxy.URL,
	}, nil, shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	svc.UseProxyForBoards()

	t.Run("exchange", func(t *testing.T) {
		res, err := svc.Exchange(ctx, "good-code")
		if err != nil {
			t.Fatalf("exchange failed: %v", err)
		}
		if res.User.Username != "alice" {
			t.Errorf("unexpected user %+v", res.User)
		}
	})

	t.Run("rejected code", func(t *testing.T) {
		_, err := svc.Exchange(ctx, "bad-code")
		if !errors.Is(err, shared.ErrUnauthorized) || shared.Message(err) != "Invalid authorization code" {
			t.Errorf("expected unauthorized with provider message, got %v", err)
		}
	})

	t.Run("boards across pages", func(t *testing.T) {
		boards, err := svc.FetchBoards(ctx, "pina_123")
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if len(boards) != 2 {
			t.Errorf("expected 2 boards, got %v", boards)
		}
	})
}

func TestProxyCORS(t *testing.T) {
	logger := shared.NewLogger(io.Discard)
	h := NewProxyRouter(NewProxyHandler(proxyConfig("http://pinterest.invalid"), nil, logger), []string{"https://app.example.com"}, logger)

	req := httptest.NewRequest(http.MethodOptions, services.TokenPath, nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected allowed origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, services.TokenPath, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allowed origin, got %q", got)
	}
}

func TestOAuthHandler(t *testing.T) {
	t.Run("delivers the code", func(t *testing.T) {
		h := NewOAuthHandler("state-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		res := <-h.Result()
		if res.Error() != nil || res.Code != "abc" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	tc := []struct {
		name    string
		query   string
		wantErr string
	}{
		{name: "state mismatch", query: "state=other&code=abc", wantErr: "invalid state parameter"},
		{name: "provider error", query: "state=state-1&error=access_denied&error_description=User+declined", wantErr: "access_denied - User declined"},
		{name: "missing code", query: "state=state-1", wantErr: "missing_code"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOAuthHandler("state-1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+tt.query, nil))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			res := <-h.Result()
			if res.Error() == nil || !strings.Contains(res.Error().Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, res.Error())
			}
		})
	}

	t.Run("only the first callback counts", func(t *testing.T) {
		h := NewOAuthHandler("state-1")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=first", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=second", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for replay, got %d", rec.Code)
		}

		res := <-h.Result()
		if res.Code != "first" {
			t.Errorf("expected first code, got %q", res.Code)
		}
		if _, ok := <-h.Result(); ok {
			t.Error("expected channel closed after one result")
		}
	})

	t.Run("escapes provider text", func(t *testing.T) {
		h := NewOAuthHandler("state-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&error=%3Cscript%3E", nil))
		if strings.Contains(rec.Body.String(), "<script>") {
			t.Error("provider error rendered unescaped")
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("filters methods", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("pong"))
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %q", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET" {
			t.Errorf("expected 405 with Allow, got %d %q", rec.Code, rec.Header().Get("Allow"))
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("outer"), mw("inner"))
		r.Handler(NewOAuthHandler("s"))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s&code=c", nil))

		if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
			t.Errorf("unexpected middleware order %v", order)
		}
	})
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), shared.NewLogger(io.Discard))
	}()
	cancel()

	if err := <-done; err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}
