// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/taibuivan/tourly/internal/platform/config"
)

const smtpDialTimeout = 10 * time.Second

// SMTPSender delivers mail through a relay over implicit TLS (port 465).
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

// NewSMTPSender builds a sender from the SMTP configuration.
// The envelope sender defaults to the username when From is empty.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     from,
	}
}

// Send implements [Sender]. The context deadline bounds the whole SMTP dialogue.
func (sender *SMTPSender) Send(ctx context.Context, message Message) error {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: smtpDialTimeout},
		Config:    &tls.Config{ServerName: sender.host, MinVersion: tls.VersionTLS12},
	}

	connection, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(sender.host, sender.port))
	if err != nil {
		return fmt.Errorf("mailer: dial failed: %w", err)
	}
	defer connection.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = connection.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(connection, sender.host)
	if err != nil {
		return fmt.Errorf("mailer: handshake failed: %w", err)
	}
	defer client.Close()

	if sender.username != "" {
		if err := client.Auth(smtp.PlainAuth("", sender.username, sender.password, sender.host)); err != nil {
			return fmt.Errorf("mailer: auth failed: %w", err)
		}
	}

	if err := client.Mail(sender.from); err != nil {
		return fmt.Errorf("mailer: MAIL FROM rejected: %w", err)
	}
	if err := client.Rcpt(message.To); err != nil {
		return fmt.Errorf("mailer: RCPT TO rejected: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("mailer: DATA rejected: %w", err)
	}
	if _, err := writer.Write(render(sender.from, message)); err != nil {
		return fmt.Errorf("mailer: write failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("mailer: message rejected: %w", err)
	}

	return client.Quit()
}
