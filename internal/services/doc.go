// Package services talks to Pinterest on behalf of the connect flow.
//
// # Collaborators
//
// The flow depends on two narrow interfaces so tests and other transports can stand in:
//   - [TokenExchanger] : trades an authorization code for a token and the user profile
//   - [BoardFetcher] : lists every board of the token's owner
//
// [PinterestService] implements both. Authorization URLs are built with golang.org/x/oauth2 and request the
// scopes as one comma separated parameter. The code exchange never happens in this process: the code is posted
// to the token proxy (see internal/server), which holds the client secret. Boards are read from the API
// directly, or through the proxy after [PinterestService.UseProxyForBoards], following bookmarks until the last
// page.
//
// # Error Handling
//
// Every failure is a [*shared.Error]:
//   - non-2xx from the proxy : Unauthorized with the body's message, NetworkError for 5xx
//   - transport or decode failure : NetworkError
//
// Tokens and codes are redacted before they are logged.
package services
