package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type throttled struct {
	next    Dispatcher
	limiter *rate.Limiter
}

// Throttle caps outbound deliveries across all senders. Callers block
// until a slot frees up or ctx is done.
func Throttle(next Dispatcher, perMinute, burst int) Dispatcher {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

func (t *throttled) Dispatch(ctx context.Context, env Envelope) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("dispatch throttle: %w", err)
	}
	return t.next.Dispatch(ctx, env)
}
