package portfolio_contact

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nazarhussain/portfolio-contact/env"
	"github.com/nazarhussain/portfolio-contact/internal/dispatch"
)

/*
ENV-ONLY CONFIG (a .env file in the working directory is loaded first):
  Server:
    LISTEN_ADDR (default ":3000")
    APP_ENV (default "production"; "development" adds error details to 500s)
    ALLOWED_ORIGINS="https://a.com,https://b.com" ("*" allows any)
    ALLOW_JSON (default "true")
    ALLOW_FORM (default "true")
    MAX_BODY_KB (default 64)

  Dispatch:
    DISPATCH_MODE ("smtp" | "forward" | "log", default "smtp")
    DISPATCH_RATE_PER_MINUTE (default 30, 0 disables)
    DISPATCH_BURST (default 5)

  smtp mode:
    SMTP_HOST, SMTP_USER, SMTP_PASS, CONTACT_TO (required)
    SMTP_PORT (default 587)
    SMTP_SSL (default true when SMTP_PORT is 465)
    SMTP_TIMEOUT_SECONDS (default 15, bounds the whole SMTP session)
    FROM_ADDR (default SMTP_USER)
    SUBJECT_PREFIX (default "Portfolio Contact:")

  forward mode:
    FORWARD_URL (required)
    FORWARD_TIMEOUT_SECONDS (default 10)

  Submission limits (3 attempts per 15 minutes per source) are fixed.
*/

type Config struct {
	ListenAddr     string
	AppEnv         string
	AllowedOrigins []string
	AllowJSON      bool
	AllowForm      bool
	MaxBodyKB      int
	Dispatch       dispatch.Config
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// DispatchConfigured reports whether the selected mode has what it needs
// to deliver mail.
func (c *Config) DispatchConfigured() bool {
	return c.validateDispatch() == nil
}

func LoadConfig() (*Config, error) {
	port := env.EnvInt("SMTP_PORT", 587)
	user := env.Env("SMTP_USER", "")

	c := &Config{
		ListenAddr:     env.Env("LISTEN_ADDR", ":3000"),
		AppEnv:         env.Env("APP_ENV", "production"),
		AllowedOrigins: splitString(env.Env("ALLOWED_ORIGINS", "")),
		AllowJSON:      env.EnvBool("ALLOW_JSON", true),
		AllowForm:      env.EnvBool("ALLOW_FORM", true),
		MaxBodyKB:      env.EnvInt("MAX_BODY_KB", 64),
		Dispatch: dispatch.Config{
			Mode:          strings.ToLower(env.Env("DISPATCH_MODE", dispatch.ModeSMTP)),
			To:            env.Env("CONTACT_TO", ""),
			FromAddr:      env.Env("FROM_ADDR", user),
			SubjectPrefix: env.Env("SUBJECT_PREFIX", "Portfolio Contact:"),
			SMTP: dispatch.SmtpCfg{
				Host:    env.Env("SMTP_HOST", ""),
				Port:    port,
				User:    user,
				Pass:    env.Env("SMTP_PASS", ""),
				SSL:     env.EnvBool("SMTP_SSL", port == 465),
				Timeout: time.Duration(env.EnvInt("SMTP_TIMEOUT_SECONDS", 15)) * time.Second,
			},
			ForwardURL:     env.Env("FORWARD_URL", ""),
			ForwardTimeout: time.Duration(env.EnvInt("FORWARD_TIMEOUT_SECONDS", 10)) * time.Second,
			RatePerMinute:  env.EnvInt("DISPATCH_RATE_PER_MINUTE", 30),
			Burst:          env.EnvInt("DISPATCH_BURST", 5),
		},
	}

	if c.MaxBodyKB <= 0 {
		return nil, errors.New("MAX_BODY_KB must be positive")
	}
	if !c.AllowJSON && !c.AllowForm {
		return nil, errors.New("at least one of ALLOW_JSON or ALLOW_FORM must be enabled")
	}
	if err := c.validateDispatch(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validateDispatch() error {
	d := c.Dispatch
	switch d.Mode {
	case dispatch.ModeSMTP:
		var missing []string
		if d.SMTP.Host == "" {
			missing = append(missing, "SMTP_HOST")
		}
		if d.SMTP.User == "" {
			missing = append(missing, "SMTP_USER")
		}
		if d.SMTP.Pass == "" {
			missing = append(missing, "SMTP_PASS")
		}
		if d.To == "" {
			missing = append(missing, "CONTACT_TO")
		}
		if len(missing) > 0 {
			return fmt.Errorf("smtp dispatch: missing env %s", strings.Join(missing, ", "))
		}
	case dispatch.ModeForward:
		if d.ForwardURL == "" {
			return errors.New("forward dispatch: missing env FORWARD_URL")
		}
	case dispatch.ModeLog:
	default:
		return fmt.Errorf("unknown DISPATCH_MODE %q", d.Mode)
	}
	return nil
}

func splitString(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
