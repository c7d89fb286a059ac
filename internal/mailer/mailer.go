// Package mailer sends transactional email over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPSender struct {
	host string
	port string
	user string
	pass string
	from string
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewSMTPSender(host, port, user, pass, from string) *SMTPSender {
	return &SMTPSender{
		host: host, port: port, user: user, pass: pass, from: from,
		send: func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}

	e := email.NewEmail()
	e.From = s.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if err := s.send(e, addr, auth); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// NopSender 는 SMTP 가 설정되지 않았을 때 사용합니다.
type NopSender struct{}

func (NopSender) Send(context.Context, string, string, string) error { return nil }
