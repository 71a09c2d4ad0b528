package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	htmltemplate "html/template"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/jordan-wright/email"
)

const (
	sentOnLayout = "Mon, 02 Jan 2006 15:04:05 MST"
	maxSubject   = 200

	defaultSMTPTimeout = 15 * time.Second
)

var textBody = template.Must(template.New("text").Parse(`New Contact Form Submission

Name: {{.Name}}
Email: {{.Email}}
Subject: {{.Subject}}

Message:
{{.Message}}

Sent on: {{.SentOn}}
Submission: {{.ID}}
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Funcs(htmltemplate.FuncMap{
	"lines": func(s string) []string { return strings.Split(s, "\n") },
}).Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #3D71BD; border-bottom: 2px solid #3D71BD; padding-bottom: 10px;">New Contact Form Submission</h2>
  <div style="margin: 20px 0;">
    <h3 style="color: #333; margin-bottom: 5px;">Contact Information:</h3>
    <p style="margin: 5px 0;"><strong>Name:</strong> {{.Name}}</p>
    <p style="margin: 5px 0;"><strong>Email:</strong> {{.Email}}</p>
    <p style="margin: 5px 0;"><strong>Subject:</strong> {{.Subject}}</p>
  </div>
  <div style="margin: 20px 0;">
    <h3 style="color: #333; margin-bottom: 10px;">Message:</h3>
    <div style="background-color: #f5f5f5; padding: 15px; border-left: 4px solid #3D71BD; border-radius: 4px;">
      {{range $i, $l := lines .Message}}{{if $i}}<br>{{end}}{{$l}}{{end}}
    </div>
  </div>
  <div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; color: #666; font-size: 12px;">
    <p>This message was sent from the contact form on your portfolio website.</p>
    <p>Sent on: {{.SentOn}}</p>
  </div>
</div>
`))

type bodyData struct {
	ID      string
	Name    string
	Email   string
	Subject string
	Message string
	SentOn  string
}

// sendEmailFunc is swapped out in tests.
var sendEmailFunc = sendMail

// sendMail delivers e over one SMTP session. The whole session, dial
// included, is bounded by cfg.Timeout and by ctx.
func sendMail(ctx context.Context, cfg SmtpCfg, e *email.Email) error {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return fmt.Errorf("parse from address: %w", err)
	}
	var rcpts []string
	for _, list := range [][]string{e.To, e.Cc, e.Bcc} {
		for _, r := range list {
			a, err := mail.ParseAddress(r)
			if err != nil {
				return fmt.Errorf("parse recipient %q: %w", r, err)
			}
			rcpts = append(rcpts, a.Address)
		}
	}
	msg, err := e.Bytes()
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{ServerName: cfg.Host}
	dialer := &net.Dialer{}
	var conn net.Conn
	if cfg.SSL {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if !cfg.SSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if cfg.User != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := c.Mail(from.Address); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, r := range rcpts {
		if err := c.Rcpt(r); err != nil {
			return fmt.Errorf("rcpt to %s: %w", r, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return c.Quit()
}

type SMTPDispatcher struct {
	cfg Config
}

func NewSMTPDispatcher(cfg Config) *SMTPDispatcher {
	return &SMTPDispatcher{cfg: cfg}
}

func (d *SMTPDispatcher) Dispatch(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := d.compose(env)
	if err != nil {
		return err
	}
	if err := sendEmailFunc(ctx, d.cfg.SMTP, e); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (d *SMTPDispatcher) compose(env Envelope) (*email.Email, error) {
	s := env.Submission
	data := bodyData{
		ID:      env.ID.String(),
		Name:    strings.TrimSpace(s.Name),
		Email:   strings.TrimSpace(s.Email),
		Subject: strings.TrimSpace(s.Subject),
		Message: strings.TrimSpace(s.Message),
		SentOn:  env.ReceivedAt.Format(sentOnLayout),
	}
	if env.ReceivedAt.IsZero() {
		data.SentOn = time.Now().Format(sentOnLayout)
	}

	var text, html bytes.Buffer
	if err := textBody.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlBody.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	e := email.NewEmail()
	e.From = d.cfg.FromAddr
	e.To = []string{d.cfg.To}
	e.ReplyTo = []string{(&mail.Address{Name: data.Name, Address: data.Email}).String()}
	e.Subject = headerSafe(strings.TrimSpace(d.cfg.SubjectPrefix + " " + data.Subject))
	e.Text = text.Bytes()
	e.HTML = html.Bytes()
	e.Headers.Set("X-Submission-ID", data.ID)
	return e, nil
}

// headerSafe flattens line breaks and caps the length of a header value.
func headerSafe(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxSubject {
		s = string(r[:maxSubject])
	}
	return s
}
