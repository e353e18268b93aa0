// Package middleware provides HTTP middleware for the console gateway.
//
// Core components:
//
//   - Auth: session token restoration and context population
//   - RequireVisible: affordance-policy gating for privileged routes
//   - RateLimit: per-client token bucket limiting
//   - Idempotency: response replay for repeated Idempotency-Key requests
//   - RequestID, Logger, Observe, Recovery, CORS, Compress
//
// Middleware sets context values accessible via helper functions:
//
//   - GetSession(ctx): the restored session
//   - GetSessionToken(ctx): the raw bearer token
//   - GetUserID(ctx): the authenticated identity id
//   - GetRequestID(ctx): unique request identifier
package middleware
