package server

import (
	"fmt"
	"html/template"
	"net/http"
	"sync"
)

// OAuthResult contains the result of an OAuth authorization redirect.
type OAuthResult struct {
	Code string
	err  error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler receives the provider redirect on /callback and hands the authorization code to the caller.
// The code is not exchanged here; that goes through the token proxy.
type OAuthHandler struct {
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler that accepts one redirect carrying state.
// The state token should be cryptographically random for CSRF protection.
func NewOAuthHandler(state string) *OAuthHandler {
	return &OAuthHandler{
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

type callbackView struct {
	Title   string
	Message string
	Color   template.CSS
}

// ServeHTTP handles the OAuth callback request.
//
// Only the first request is processed; later ones get 400.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("invalid state parameter")})
		render(w, http.StatusBadRequest, callbackView{Title: "Authorization Failed", Message: "Invalid state parameter.", Color: "#e60023"})
		return
	}

	code := q.Get("code")
	if code == "" {
		errParam := q.Get("error")
		if errParam == "" {
			errParam = "missing_code"
		}
		err := fmt.Errorf("authorization failed: %s - %s", errParam, q.Get("error_description"))
		h.Send(OAuthResult{err: err})
		render(w, http.StatusBadRequest, callbackView{Title: "Authorization Failed", Message: err.Error(), Color: "#e60023"})
		return
	}

	h.Send(OAuthResult{Code: code})
	render(w, http.StatusOK, callbackView{
		Title:   "✓ Authorization Received",
		Message: "You can close this window and return to the terminal.",
		Color:   "#bd081c",
	})
}

func render(w http.ResponseWriter, status int, v callbackView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	callbackPage.Execute(w, v)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
