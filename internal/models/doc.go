// Package models defines domain entities for the pinx account manager.
//
// The package contains plain data types that are serialized as JSON by every persistence backend:
//   - [Account] : A connected provider account keyed by username, with its profile and OAuth token
//   - [User] : Provider profile returned by the user_account endpoint
//   - [Token] : OAuth access and refresh tokens
//   - [Board] : Provider board metadata, always stored as a list per account
//
// JSON field names follow the provider API so payloads can be stored without translation.
package models
