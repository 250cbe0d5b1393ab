package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"seojobs/internal/task/jobs"
	logx "seojobs/pkg/logx"
)

type SMTPConfig struct {
	Host     string
	Port     int // default 587
	Username string
	Password string
	From     string
}

// Configured reports whether Host and From are set.
func (c SMTPConfig) Configured() bool {
	return strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.From) != ""
}

// SMTPMailer sends plain-text mail through one relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	log  logx.Logger
	now  func() time.Time
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig, log logx.Logger) *SMTPMailer {
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &SMTPMailer{cfg: cfg, log: log, now: time.Now, send: smtp.SendMail}
}

// Send delivers m. net/smtp is not context aware, so ctx only bounds how long
// the caller waits; the dial itself may finish in the background.
func (s *SMTPMailer) Send(ctx context.Context, m jobs.Email) error {
	if !s.cfg.Configured() {
		return errors.WithHint(errors.New("smtp not configured"), "set services.smtp.host and services.smtp.from")
	}
	if strings.TrimSpace(m.To) == "" {
		return errors.New("smtp: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	msg := s.message(m)

	done := make(chan error, 1)
	go func() { done <- s.send(addr, auth, s.cfg.From, []string{m.To}, msg) }()
	select {
	case err := <-done:
		if err != nil {
			return errors.Wrapf(err, "smtp send to %s", m.To)
		}
		s.log.Debug("email sent", logx.String("to", m.To), logx.String("subject", m.Subject))
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "smtp send to %s", m.To)
	}
}

func (s *SMTPMailer) message(m jobs.Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogMailer logs mail instead of sending it. Used when SMTP is unset.
type LogMailer struct {
	Log logx.Logger
}

func (l LogMailer) Send(_ context.Context, m jobs.Email) error {
	l.Log.Info("email not sent; smtp unset", logx.String("to", m.To), logx.String("subject", m.Subject), logx.Int("body_len", len(m.Body)))
	return nil
}
