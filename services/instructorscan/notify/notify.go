// Package notify delivers scan results to the configured recipient
// over SMTP.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Options struct {
	Smtp SmtpConfig `json:"smtp"`
	To   string     `json:"to"`
}

type Notifier struct {
	config Options
}

func NewNotifier(options Options) Notifier {
	return Notifier{config: options}
}

// SendHtml joins the lines into an html body and delivers it.
func (n Notifier) SendHtml(ctx context.Context, subject string, lines []string) error {
	var body strings.Builder
	for _, line := range lines {
		body.WriteString(line)
		body.WriteString("<br>\r\n")
	}
	return n.send(ctx, subject, nil, []byte(body.String()))
}

// SendText joins the lines into a plain-text body and delivers it.
func (n Notifier) SendText(ctx context.Context, subject string, lines []string) error {
	return n.send(ctx, subject, []byte(strings.Join(lines, "\r\n")), nil)
}

func (n Notifier) send(ctx context.Context, subject string, text, html []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Instructor Scan <%s>", n.config.Smtp.EmailAddress)
	mail.To = []string{n.config.To}
	mail.Subject = subject
	mail.Text = text
	mail.HTML = html

	addr := fmt.Sprintf("%s:%d", n.config.Smtp.Server, n.config.Smtp.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", n.config.Smtp.EmailAddress, n.config.Smtp.Password, n.config.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send email %q: %w", subject, err)
	}

	slog.InfoContext(ctx, "sent email", "subject", subject, "to", n.config.To)
	return nil
}
