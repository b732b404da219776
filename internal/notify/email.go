package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"alertflow/internal/config"
	"alertflow/internal/constants"
)

var ErrNoRecipients = errors.New("rule has no email recipients")

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel sends a plain text mail per notification.
type EmailChannel struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
}

func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	port := cfg.Port
	if port == 0 {
		port = 587
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &EmailChannel{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		from:     cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

func (e *EmailChannel) Name() string {
	return constants.ChannelEmail
}

func (e *EmailChannel) Send(ctx context.Context, n Notification) error {
	if len(n.Recipients) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.sendMail(e.addr, e.auth, e.from, n.Recipients, e.compose(n)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func (e *EmailChannel) compose(n Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(n.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", strings.ToUpper(n.Severity), headerSafe(n.Title))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(n.Message)
	b.WriteString("\r\n")
	if n.Link != "" {
		fmt.Fprintf(&b, "\r\n%s\r\n", n.Link)
	}
	fmt.Fprintf(&b, "\r\nRule: %s\r\nFingerprint: %s\r\n", n.RuleID, n.Fingerprint)
	return []byte(b.String())
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
