// package services defines the clients used to talk to Pinterest and the token proxy
package services

import (
	"context"

	"github.com/desertthunder/pinx/internal/models"
)

// TokenExchanger trades an OAuth authorization code for a token and the profile of the user who granted it.
type TokenExchanger interface {
	// Exchange returns an [shared.KindUnauthorized] error when the provider rejects the code and
	// [shared.KindNetwork] when it cannot be reached.
	Exchange(ctx context.Context, code string) (*ExchangeResult, error)
}

// BoardFetcher lists the boards visible to an access token.
type BoardFetcher interface {
	FetchBoards(ctx context.Context, accessToken string) ([]models.Board, error)
}

// ExchangeResult is the proxy response to a successful code exchange.
type ExchangeResult struct {
	Token models.Token `json:"token"`
	User  models.User  `json:"user"`
}

// BoardsPage is one page of the boards listing.
type BoardsPage struct {
	Items    []models.Board `json:"items"`
	Bookmark string         `json:"bookmark,omitempty"`
}

// ExchangeRequest is the body the token proxy accepts.
type ExchangeRequest struct {
	Code         string `json:"code"`
	RedirectURI  string `json:"redirectUri"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// ErrorResponse is the error body used by the proxy and the provider.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
