// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/ctxutil"
	"github.com/taibuivan/tourly/internal/platform/limiter"
	"github.com/taibuivan/tourly/internal/platform/mailer"
	"github.com/taibuivan/tourly/internal/platform/sec"
)

// # One-Time-Code Engine

// Purpose separates the three flows gated by one-time codes. A code issued for
// one purpose never verifies for another.
type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password_reset"
	PurposeEmailChange   Purpose = "email_change"
)

// AttemptLimiter counts attempts per budget and subject.
type AttemptLimiter interface {
	Check(ctx context.Context, budget limiter.Budget, subject string) error
	Hit(ctx context.Context, budget limiter.Budget, subject string) (int, error)
	Take(ctx context.Context, budget limiter.Budget, subject string) error
	Reset(ctx context.Context, budget limiter.Budget, subject string) error
}

// IssuedCode is a freshly generated code. Plain only ever goes into the email.
type IssuedCode struct {
	Plain     string
	Digest    string
	ExpiresAt time.Time
}

// CodeEngine generates, delivers and validates one-time codes.
//
// Subjects are bound into the digest: the draft email for registration and the
// account id for password reset and email change.
type CodeEngine struct {
	digester *sec.CodeDigester
	sender   mailer.Sender
	attempts AttemptLimiter
	ttl      time.Duration
	now      func() time.Time
}

// NewCodeEngine constructs a [CodeEngine].
func NewCodeEngine(digester *sec.CodeDigester, sender mailer.Sender, attempts AttemptLimiter, ttl time.Duration) *CodeEngine {
	return &CodeEngine{
		digester: digester,
		sender:   sender,
		attempts: attempts,
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock returns a copy of the engine reading time from now.
func (engine *CodeEngine) WithClock(now func() time.Time) *CodeEngine {
	clone := *engine
	clone.now = now
	return &clone
}

// budgetSubject scopes attempt counters to one purpose.
func budgetSubject(purpose Purpose, subject string) string {
	return string(purpose) + ":" + subject
}

/*
Issue generates a code for purpose and subject, spending one issuance attempt.

Parameters:
  - context: context.Context
  - purpose: Purpose
  - subject: string
  - budgetKey: string (usually the email the code is sent to)

Returns:
  - *IssuedCode: Plain code, digest and expiry
  - error: 429 when the issuance budget is spent, or generation failures
*/
func (engine *CodeEngine) Issue(context context.Context, purpose Purpose, subject, budgetKey string) (*IssuedCode, error) {
	if err := engine.attempts.Take(context, limiter.CodeIssuance, budgetSubject(purpose, budgetKey)); err != nil {
		return nil, err
	}

	plain, err := engine.digester.Generate()
	if err != nil {
		return nil, fmt.Errorf("otp_engine_generate_failed: %w", err)
	}

	return &IssuedCode{
		Plain:     plain,
		Digest:    engine.digester.Digest(string(purpose), subject, plain),
		ExpiresAt: engine.now().Add(engine.ttl),
	}, nil
}

/*
Deliver sends the plain code to recipient. A delivery failure is returned as a
503 so the client never believes an undelivered code was sent.

Parameters:
  - context: context.Context
  - purpose: Purpose
  - recipient: string
  - code: *IssuedCode

Returns:
  - error: apperr.ServiceUnavailable wrapping the transport error
*/
func (engine *CodeEngine) Deliver(context context.Context, purpose Purpose, recipient string, code *IssuedCode) error {
	message := composeCodeMessage(purpose, recipient, code.Plain, engine.ttl)

	if err := engine.sender.Send(context, message); err != nil {
		ctxutil.GetLogger(context).ErrorContext(context, "otp_delivery_failed",
			slog.String("purpose", string(purpose)),
			slog.Any("error", err),
		)
		unavailable := apperr.ServiceUnavailable("The verification code could not be sent. Please try again.")
		unavailable.Cause = err
		return unavailable
	}

	ctxutil.GetLogger(context).InfoContext(context, "otp_issued", slog.String("purpose", string(purpose)))
	return nil
}

/*
Verify checks a presented code and hands its digest to consume, which must clear
the stored code atomically.

Description: Fails fast with 429 when too many wrong codes were presented for
this subject. A malformed code or a consume returning [apperr.ErrInvalidCode]
counts as a failure; a success resets the failure budget. Wrong and expired
codes are indistinguishable to the caller.

Parameters:
  - context: context.Context
  - purpose: Purpose
  - subject: string
  - budgetKey: string
  - presented: string
  - consume: func(digest string, now time.Time) error

Returns:
  - error: apperr.ErrInvalidCode, 429, or the error returned by consume
*/
func (engine *CodeEngine) Verify(context context.Context, purpose Purpose, subject, budgetKey, presented string, consume func(digest string, now time.Time) error) error {
	key := budgetSubject(purpose, budgetKey)

	if err := engine.attempts.Check(context, limiter.CodeFailures, key); err != nil {
		return err
	}

	if !engine.digester.WellFormed(presented) {
		return engine.fail(context, purpose, key)
	}

	err := consume(engine.digester.Digest(string(purpose), subject, presented), engine.now())
	if errors.Is(err, apperr.ErrInvalidCode) {
		return engine.fail(context, purpose, key)
	}
	if err != nil {
		return err
	}

	if err := engine.attempts.Reset(context, limiter.CodeFailures, key); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "otp_failure_reset_failed", slog.Any("error", err))
	}
	return nil
}

// fail records a wrong code and returns the generic error.
func (engine *CodeEngine) fail(context context.Context, purpose Purpose, key string) error {
	if _, err := engine.attempts.Hit(context, limiter.CodeFailures, key); err != nil {
		return fmt.Errorf("otp_engine_record_failure_failed: %w", err)
	}
	ctxutil.GetLogger(context).InfoContext(context, "otp_rejected", slog.String("purpose", string(purpose)))
	return apperr.ErrInvalidCode
}

// # Messages

// composeCodeMessage renders the email carrying a code.
func composeCodeMessage(purpose Purpose, recipient, code string, ttl time.Duration) mailer.Message {
	subject, intro := "Your Tourly verification code", "Use this code to verify your email address."
	switch purpose {
	case PurposeRegistration:
		subject, intro = "Welcome to Tourly: confirm your email", "Use this code to finish creating your account."
	case PurposePasswordReset:
		subject, intro = "Reset your Tourly password", "Use this code to choose a new password."
	case PurposeEmailChange:
		subject, intro = "Confirm your new Tourly email", "Use this code to confirm this address for your account."
	}

	body := fmt.Sprintf("%s\n\n    %s\n\nThe code expires in %d minutes. If you did not request it, you can ignore this email.\n",
		intro, code, int(ttl.Minutes()))

	return mailer.Message{To: recipient, Subject: subject, Body: body}
}
