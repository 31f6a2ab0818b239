package notify

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

// Notifier delivers one rendered report.
type Notifier interface {
	Send(subject, body string) error
}

// EmailSender delivers reports over SMTP with implicit TLS (the 465
// path). Delivery failures are returned to the caller to log; they are
// never fatal to the process.
type EmailSender struct {
	Host       string
	Port       int
	Sender     string
	Password   string
	Recipients []string
}

func (e *EmailSender) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: e.Host})
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, e.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", e.Sender, e.Password, e.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := client.Mail(e.Sender); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range e.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(buildMessage(e.Sender, e.Recipients, subject, body))); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}

	return client.Quit()
}

func buildMessage(from string, to []string, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}
