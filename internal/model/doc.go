// Package model defines domain entities shared across the gateway.
//
// The model package contains the Identity and Message entities the
// console works with, the role enum the affordance policy gates on,
// and the RFC 9457 Problem Details error types the HTTP surface
// responds with.
//
// # Error Types
//
// RFC 9457 Problem Details errors are defined in errors.go:
//
//	type ProblemDetails struct {
//	    Type    string `json:"type"`
//	    Title   string `json:"title"`
//	    Status  int    `json:"status"`
//	    Detail  string `json:"detail"`
//	}
//
// Constructors exist for each entry of the response taxonomy
// (validation, unauthorized, not found, conflict, upstream, internal).
package model
