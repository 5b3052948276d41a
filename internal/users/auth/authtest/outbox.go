// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package authtest

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/taibuivan/tourly/internal/platform/mailer"
)

// ErrDeliveryFailed is returned by an [Outbox] with Fail set.
var ErrDeliveryFailed = errors.New("authtest: delivery failed")

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// Outbox is a [mailer.Sender] that keeps every message in memory.
type Outbox struct {
	mu       sync.Mutex
	messages []mailer.Message

	// Fail makes every Send return [ErrDeliveryFailed].
	Fail bool
}

func (outbox *Outbox) Send(_ context.Context, message mailer.Message) error {
	outbox.mu.Lock()
	defer outbox.mu.Unlock()
	if outbox.Fail {
		return ErrDeliveryFailed
	}
	outbox.messages = append(outbox.messages, message)
	return nil
}

// Len returns the number of delivered messages.
func (outbox *Outbox) Len() int {
	outbox.mu.Lock()
	defer outbox.mu.Unlock()
	return len(outbox.messages)
}

// Last returns the most recent message, or the zero value.
func (outbox *Outbox) Last() mailer.Message {
	outbox.mu.Lock()
	defer outbox.mu.Unlock()
	if len(outbox.messages) == 0 {
		return mailer.Message{}
	}
	return outbox.messages[len(outbox.messages)-1]
}

// LastCode extracts the one-time code from the most recent message.
func (outbox *Outbox) LastCode() string {
	return codePattern.FindString(outbox.Last().Body)
}
