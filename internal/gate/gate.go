// Package gate decides whether an inbound contact submission may be
// dispatched. Checks run in a fixed order: rate limit, well-formedness,
// honeypot, suspicious content. The first failing check wins.
package gate

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	MaxAttempts    = 3
	WindowDuration = 15 * time.Minute
)

type Verdict int

const (
	Accepted Verdict = iota
	RateLimited
	InvalidPayload
	BotDetected
	SuspiciousContent
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case RateLimited:
		return "rate_limited"
	case InvalidPayload:
		return "invalid_payload"
	case BotDetected:
		return "bot_detected"
	case SuspiciousContent:
		return "suspicious_content"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Evaluate call. RetryAfterMinutes is set
// for RateLimited, Reason for InvalidPayload and Submission for Accepted.
type Result struct {
	Verdict           Verdict
	RetryAfterMinutes int
	Reason            string
	Submission        *Submission
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type Gate struct {
	limiter *Limiter
	filter  ContentFilter
	clock   Clock
}

type Option func(*Gate)

func WithClock(c Clock) Option {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

func WithContentFilter(f ContentFilter) Option {
	return func(g *Gate) {
		if f != nil {
			g.filter = f
		}
	}
}

func WithLimits(max int, window time.Duration) Option {
	return func(g *Gate) {
		if max > 0 && window > 0 {
			g.limiter = NewLimiter(max, window)
		}
	}
}

// New returns a gate with its own rate-limit store. Construct one per
// process and share it between requests.
func New(opts ...Option) *Gate {
	g := &Gate{
		limiter: NewLimiter(MaxAttempts, WindowDuration),
		filter:  NewPatternFilter(),
		clock:   ClockFunc(time.Now),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate runs every check against payload on behalf of identity. Every
// call consumes rate-limit budget, whatever the later outcome. Expected
// rejections are reported through Result; the error is reserved for
// internal faults.
func (g *Gate) Evaluate(identity string, payload any) (Result, error) {
	now := g.clock.Now()
	if now.IsZero() {
		return Result{}, errors.New("gate: clock returned zero time")
	}

	allowed, resetAt := g.limiter.Hit(identity, now)
	if !allowed {
		return Result{
			Verdict:           RateLimited,
			RetryAfterMinutes: retryAfterMinutes(resetAt.Sub(now)),
		}, nil
	}

	sub, err := ParsePayload(payload)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return Result{Verdict: InvalidPayload, Reason: verr.Reason}, nil
		}
		return Result{}, err
	}

	if strings.TrimSpace(sub.Honeypot) != "" {
		return Result{Verdict: BotDetected}, nil
	}

	if g.filter.IsSuspicious(sub.Subject + " " + sub.Message) {
		return Result{Verdict: SuspiciousContent}, nil
	}

	return Result{Verdict: Accepted, Submission: &sub}, nil
}

// Buckets reports how many source identities the rate-limit store tracks.
func (g *Gate) Buckets() int {
	return g.limiter.Len()
}

func retryAfterMinutes(d time.Duration) int {
	m := int(math.Ceil(d.Minutes()))
	if m < 1 {
		return 1
	}
	return m
}
