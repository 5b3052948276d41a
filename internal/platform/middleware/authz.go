// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/ctxutil"
	"github.com/taibuivan/tourly/internal/platform/respond"
	"github.com/taibuivan/tourly/internal/platform/sec"
)

// TokenVerifier checks the signature and expiry of a session token.
type TokenVerifier interface {
	VerifyToken(tokenString string) (*sec.AuthClaims, error)
}

// PrincipalLoader loads the current state of an account by id.
//
// It must return an error carrying a 404 [apperr.AppError] when the account no
// longer exists.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID string) (*sec.Principal, error)
}

// Authenticate verifies the bearer token and attaches the freshly loaded principal.
//
// # Flow
//  1. No 'Authorization' header: the request proceeds as anonymous.
//  2. Malformed header, bad signature or expired token: invalid session.
//  3. The embedded user id is re-loaded through [PrincipalLoader]. The role and
//     names cached in the token are never used for authorization.
//  4. Missing account: principal not found.
//
// A rejected session never blocks a public route. The request proceeds as
// anonymous with the rejection attached, and [RequireAuth] or the capability
// checks answer it with 401.
func Authenticate(verifier TokenVerifier, loader PrincipalLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get("Authorization")

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Token Verification ─────────────────────────────────────────
			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				reject(next, writer, request, apperr.ErrInvalidSession)
				return
			}

			claims, err := verifier.VerifyToken(strings.TrimSpace(token))
			if err != nil {
				reject(next, writer, request, apperr.ErrInvalidSession)
				return
			}

			// ── 3. Principal Reload ───────────────────────────────────────────
			principal, err := loader.LoadPrincipal(request.Context(), claims.UserID)
			if err != nil {
				if apperr.IsNotFound(err) {
					err = apperr.ErrPrincipalNotFound
				}
				reject(next, writer, request, err)
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithPrincipal(request.Context(), principal)
			ctx = ctxutil.WithLogger(ctx, ctxutil.GetLogger(ctx).With(slog.String("user_id", principal.UserID)))

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// reject continues the request anonymously, carrying the session failure.
func reject(next http.Handler, writer http.ResponseWriter, request *http.Request, err error) {
	next.ServeHTTP(writer, request.WithContext(ctxutil.WithAuthError(request.Context(), err)))
}

// unauthenticated answers a request that reached a protected route without a principal.
func unauthenticated(writer http.ResponseWriter, request *http.Request) {
	if err := ctxutil.GetAuthError(request.Context()); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
}

// RequireAuth blocks requests without a verified principal.
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetPrincipal(request.Context()) == nil {
			unauthenticated(writer, request)
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireAdmin admits principals with the stored admin role or the super-admin email.
// It implies [RequireAuth].
func RequireAdmin(policy sec.AccessPolicy) func(http.Handler) http.Handler {
	return require(func(principal *sec.Principal) bool {
		return policy.IsAdmin(principal)
	})
}

// RequireSuperAdmin admits only the principal whose email is the configured
// super-admin email. The stored role is not sufficient.
func RequireSuperAdmin(policy sec.AccessPolicy) func(http.Handler) http.Handler {
	return require(func(principal *sec.Principal) bool {
		return policy.IsSuperAdmin(principal.Email)
	})
}

// require builds a capability check: 401 without a principal, 403 when the check fails.
func require(allowed func(*sec.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal := ctxutil.GetPrincipal(request.Context())

			// ── 1. Authentication Check ───────────────────────────────────────
			if principal == nil {
				unauthenticated(writer, request)
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────────
			if !allowed(principal) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
