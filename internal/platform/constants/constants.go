// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities, IP tracking TTLs and identity attempt budgets.
  - Security: JWT issuers and one-time code parameters.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "tourly-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 20 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 15 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 20.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 40

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Identity Attempt Budgets

const (
	// MaxLoginFailures is the number of failed logins tolerated per email within LoginFailureWindow.
	MaxLoginFailures   = 5
	LoginFailureWindow = 15 * time.Minute

	// MaxCodeFailures is the number of wrong one-time codes tolerated per email and purpose.
	MaxCodeFailures   = 5
	CodeFailureWindow = 10 * time.Minute

	// MaxCodeIssuance is the number of one-time codes that may be sent per email and purpose.
	MaxCodeIssuance    = 3
	CodeIssuanceWindow = 10 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "tourly.app"

	// SessionTokenTTL is the absolute lifetime of a session token from issuance.
	SessionTokenTTL = 24 * time.Hour

	// OneTimeCodeDigits is the length of the numeric one-time code.
	OneTimeCodeDigits = 6

	// OneTimeCodeTTL is how long a freshly issued one-time code stays valid.
	OneTimeCodeTTL = 10 * time.Minute

	// DeactivationPhrase must be typed verbatim to deactivate an account.
	DeactivationPhrase = "DELETE MY ACCOUNT"

	// DefaultMailFrom is the sender shown when no SMTP relay is configured.
	DefaultMailFrom = "no-reply@tourly.app"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Database Schemas

const (
	SchemaUsers   = "users"
	SchemaContent = "content"
	SchemaSystem  = "system"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixDraft   = "auth:draft:"
	RedisPrefixAttempt = "auth:attempt:"
)
