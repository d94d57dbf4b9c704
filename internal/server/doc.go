// Package server provides HTTP routing, the Pinterest token proxy and the local OAuth callback.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] uses [http.ServeMux]
// internally with method filtering. Middleware added first runs first.
//
// # Token Proxy
//
// [ProxyHandler] keeps the Pinterest client secret on the server:
//
//	POST /api/pinterest/token   {code, redirectUri, clientId, clientSecret} -> {token, user}
//	GET  /api/pinterest/boards  Authorization: Bearer <token>               -> {items, bookmark}
//
// The code is exchanged with golang.org/x/oauth2 using HTTP Basic client authentication, then the user
// profile is read from /user_account. Provider errors keep their status and carry {"message"}.
// [NewProxyRouter] adds CORS for browser clients.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves /callback for the CLI login. It checks the state parameter, reports the provider's
// error and error_description, and passes the authorization code through a channel. It only processes one
// callback.
//
// # Handler Interface
//
// Custom handlers implement [Handler], which adds the list of routes they serve to [http.Handler].
package server
