// Package dispatch delivers accepted contact submissions.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nazarhussain/portfolio-contact/internal/gate"
)

const (
	ModeSMTP    = "smtp"
	ModeForward = "forward"
	ModeLog     = "log"
)

// Envelope wraps an accepted submission with delivery metadata.
type Envelope struct {
	ID         uuid.UUID
	Source     string
	ReceivedAt time.Time
	Submission gate.Submission
}

func NewEnvelope(source string, receivedAt time.Time, sub gate.Submission) Envelope {
	return Envelope{
		ID:         uuid.New(),
		Source:     source,
		ReceivedAt: receivedAt,
		Submission: sub,
	}
}

type Dispatcher interface {
	Dispatch(ctx context.Context, env Envelope) error
}

type SmtpCfg struct {
	Host    string
	Port    int
	User    string
	Pass    string
	SSL     bool
	Timeout time.Duration
}

type Config struct {
	Mode          string
	To            string
	FromAddr      string
	SubjectPrefix string
	SMTP          SmtpCfg

	ForwardURL     string
	ForwardTimeout time.Duration

	RatePerMinute int
	Burst         int
}

// New builds the dispatcher selected by cfg.Mode, throttled to
// cfg.RatePerMinute outbound deliveries.
func New(cfg Config, logger *slog.Logger) (Dispatcher, error) {
	var d Dispatcher
	switch cfg.Mode {
	case ModeSMTP:
		d = NewSMTPDispatcher(cfg)
	case ModeForward:
		d = NewForwardDispatcher(cfg.ForwardURL, cfg.ForwardTimeout)
	case ModeLog:
		d = NewLogDispatcher(logger)
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", cfg.Mode)
	}
	if cfg.RatePerMinute > 0 {
		d = Throttle(d, cfg.RatePerMinute, cfg.Burst)
	}
	return d, nil
}
