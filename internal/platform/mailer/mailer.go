// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mailer delivers transactional email, currently the one-time codes of the
identity flows.

A delivery failure is always returned to the caller. A code that could not be
sent must not be reported to the client as sent.
*/
package mailer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"sync"
)

// Message is a single plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a [Message].
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// # Rendering

// render builds the RFC 5322 payload. Header values are stripped of CR/LF so
// user-supplied addresses cannot inject extra headers.
func render(from string, message Message) []byte {
	var builder strings.Builder

	fmt.Fprintf(&builder, "From: %s\r\n", headerValue(from))
	fmt.Fprintf(&builder, "To: %s\r\n", headerValue(message.To))
	fmt.Fprintf(&builder, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(message.Subject)))
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(strings.ReplaceAll(message.Body, "\n", "\r\n"))

	return []byte(builder.String())
}

func headerValue(value string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(value)
}

// # Console Sender

// ConsoleSender writes messages to a writer instead of a relay. It is used in
// development when no SMTP relay is configured.
type ConsoleSender struct {
	mu     sync.Mutex
	writer io.Writer
	from   string
}

// NewConsoleSender returns a [ConsoleSender] writing to writer.
func NewConsoleSender(writer io.Writer, from string) *ConsoleSender {
	return &ConsoleSender{writer: writer, from: from}
}

// Send implements [Sender].
func (sender *ConsoleSender) Send(_ context.Context, message Message) error {
	sender.mu.Lock()
	defer sender.mu.Unlock()

	if _, err := fmt.Fprintf(sender.writer, "----- outbound mail -----\r\n%s\r\n-------------------------\r\n", render(sender.from, message)); err != nil {
		return fmt.Errorf("mailer: console write failed: %w", err)
	}
	return nil
}
