package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
)

const smtpDialTimeout = 30 * time.Second

// sendMail delivers msg to every recipient, over implicit TLS or
// STARTTLS depending on cfg.TLS.
func sendMail(
	ctx context.Context,
	cfg SMTPConfig,
	from string,
	to []string,
	msg []byte,
) error {
	addr := cfg.Host + ":" + cfg.Port
	dialer := &net.Dialer{Timeout: smtpDialTimeout}

	var conn net.Conn
	var err error
	if cfg.TLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: cfg.Host},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return mailbox.Unavailable("dialing SMTP "+addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return mailbox.Unavailable("creating SMTP client", err)
	}
	defer client.Close()

	if !cfg.TLS {
		tlsConfig := &tls.Config{ServerName: cfg.Host}
		if err := client.StartTLS(tlsConfig); err != nil {
			return mailbox.Unavailable("SMTP STARTTLS", err)
		}
	}

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return &mailbox.AuthError{
			Provider: model.ProviderIMAP,
			Message:  fmt.Sprintf("SMTP auth for %s: %v", cfg.Username, err),
		}
	}

	return sendMailViaSMTPClient(client, from, to, msg)
}

// sendMailViaSMTPClient sends a message using an already-authenticated
// SMTP client. A rejected RCPT TO is reported as an invalid recipient.
func sendMailViaSMTPClient(
	client *smtp.Client, from string, to []string, msg []byte,
) error {
	if err := client.Mail(from); err != nil {
		return mailbox.Unavailable("SMTP MAIL FROM", err)
	}

	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("%w: %s: %v", mailbox.ErrInvalidRecipient, rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return mailbox.Unavailable("SMTP DATA", err)
	}

	if _, err := writer.Write(msg); err != nil {
		return mailbox.Unavailable("writing email body", err)
	}

	if err := writer.Close(); err != nil {
		return mailbox.Unavailable("closing email body", err)
	}

	return client.Quit()
}
