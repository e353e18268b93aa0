// Package handler provides the HTTP endpoints of the console gateway.
//
// Each handler struct encapsulates the dependencies needed to serve one
// feature area (auth and sessions, profile, messages, directory).
//
// # Handler Pattern
//
// All handlers follow a consistent pattern:
//
//   - Constructor function (NewXxxHandler) accepts a config struct with dependencies
//   - Methods handle specific HTTP endpoints
//   - Response helpers from response.go standardize output format
//   - Errors are mapped to RFC 9457 Problem Details responses by
//     writeTaxonomyError, which also clears the session when the
//     upstream credential is rejected
//
// # Authentication
//
// Protected handlers run behind middleware.Auth, which restores the
// session for the bearer token. Handlers read it back with
// middleware.GetSession(r.Context()).
package handler
