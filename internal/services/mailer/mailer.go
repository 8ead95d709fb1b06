package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/thishamdi/digital-store-api/internal/logger"
)

const (
	PurposeVerification = "verification"
	PurposeReset        = "reset"
)

type Mailer interface {
	SendOTP(ctx context.Context, to, otp, purpose string) error
}

func subjectFor(purpose string) string {
	if purpose == PurposeReset {
		return "Password Reset OTP"
	}
	return "Email Verification OTP"
}

var otpBody = template.Must(template.New("otp").Parse(`<div style="font-family:sans-serif">
  <h2>{{.Title}}</h2>
  <p>Your one-time code is:</p>
  <p style="font-size:28px;letter-spacing:6px"><strong>{{.OTP}}</strong></p>
  <p>This code is valid for 15 minutes. If you did not request it, you can ignore this email.</p>
</div>`))

func renderOTP(otp, purpose string) (string, error) {
	var buf bytes.Buffer
	err := otpBody.Execute(&buf, struct{ Title, OTP string }{subjectFor(purpose), otp})
	return buf.String(), err
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPMailer delivers mail through an SMTP relay. Port 465 uses implicit
// TLS; anything else goes through smtp.SendMail, which upgrades with
// STARTTLS when the server offers it.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendOTP(ctx context.Context, to, otp, purpose string) error {
	body, err := renderOTP(otp, purpose)
	if err != nil {
		return fmt.Errorf("mail: render: %w", err)
	}
	raw := buildRaw(m.cfg.From, to, subjectFor(purpose), body)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := m.cfg.Host + ":" + m.cfg.Port

	if m.cfg.Port == "465" {
		err = m.sendTLS(addr, auth, to, raw)
	} else {
		err = smtp.SendMail(addr, auth, envelopeAddr(m.cfg.From), []string{to}, raw)
	}
	if err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	logger.WithCtx(ctx).Info("otp mail sent", "to", to, "purpose", purpose)
	return nil
}

func (m *SMTPMailer) sendTLS(addr string, auth smtp.Auth, to string, raw []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(envelopeAddr(m.cfg.From)); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	return w.Close()
}

// envelopeAddr pulls the bare address out of "Name <addr>".
func envelopeAddr(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return strings.TrimSpace(from)
}

func buildRaw(from, to, subject, html string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}

// LogMailer writes the OTP to the log instead of sending it. Used when no
// SMTP host is configured.
type LogMailer struct{}

func (LogMailer) SendOTP(ctx context.Context, to, otp, purpose string) error {
	logger.WithCtx(ctx).Warn("smtp not configured, otp not mailed", "to", to, "purpose", purpose, "otp", otp)
	return nil
}

var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = LogMailer{}
)
