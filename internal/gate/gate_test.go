package gate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func validPayload() map[string]any {
	return map[string]any{
		"name":     "Ann",
		"email":    "ann@x.com",
		"subject":  "Hi",
		"message":  "Let's collaborate",
		"honeypot": "",
	}
}

func TestEvaluateAccepted(t *testing.T) {
	g := New(WithClock(newFakeClock()))

	res, err := g.Evaluate("203.0.113.7", validPayload())
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Verdict)
	require.NotNil(t, res.Submission)
	assert.Equal(t, "Ann", res.Submission.Name)
	assert.Equal(t, "ann@x.com", res.Submission.Email)
	assert.Equal(t, "Hi", res.Submission.Subject)
	assert.Equal(t, "Let's collaborate", res.Submission.Message)
}

func TestEvaluateHoneypot(t *testing.T) {
	g := New(WithClock(newFakeClock()))

	p := validPayload()
	p["honeypot"] = "http://spammer.biz"
	res, err := g.Evaluate("a", p)
	require.NoError(t, err)
	assert.Equal(t, BotDetected, res.Verdict)
	assert.Nil(t, res.Submission)

	p = validPayload()
	p["honeypot"] = "   "
	res, err = g.Evaluate("b", p)
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Verdict, "whitespace-only honeypot is treated as empty")
}

func TestEvaluateInvalidPayload(t *testing.T) {
	cases := map[string]func(map[string]any){
		"missing name":     func(p map[string]any) { delete(p, "name") },
		"missing email":    func(p map[string]any) { delete(p, "email") },
		"missing subject":  func(p map[string]any) { delete(p, "subject") },
		"missing message":  func(p map[string]any) { delete(p, "message") },
		"missing honeypot": func(p map[string]any) { delete(p, "honeypot") },
		"blank name":       func(p map[string]any) { p["name"] = " \t " },
		"empty email":      func(p map[string]any) { p["email"] = "" },
		"blank subject":    func(p map[string]any) { p["subject"] = "\n" },
		"blank message":    func(p map[string]any) { p["message"] = "   " },
		"email without @":  func(p map[string]any) { p["email"] = "ann.x.com" },
		"numeric name":     func(p map[string]any) { p["name"] = 42.0 },
		"null honeypot":    func(p map[string]any) { p["honeypot"] = nil },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			g := New(WithClock(newFakeClock()))
			p := validPayload()
			mutate(p)

			res, err := g.Evaluate("src", p)
			require.NoError(t, err)
			assert.Equal(t, InvalidPayload, res.Verdict)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestEvaluateNonObjectPayload(t *testing.T) {
	g := New(WithClock(newFakeClock()))

	for _, p := range []any{nil, "text", []any{"a"}, 12.5, map[string]any(nil)} {
		res, err := g.Evaluate("src", p)
		require.NoError(t, err)
		assert.Equal(t, InvalidPayload, res.Verdict)
	}
}

func TestEvaluateHoneypotCheckedAfterValidation(t *testing.T) {
	g := New(WithClock(newFakeClock()))

	p := validPayload()
	p["honeypot"] = "filled"
	p["email"] = "no-at-sign"
	res, err := g.Evaluate("src", p)
	require.NoError(t, err)
	assert.Equal(t, InvalidPayload, res.Verdict)
}

func TestEvaluateSuspiciousContent(t *testing.T) {
	g := New(WithClock(newFakeClock()), WithLimits(100, WindowDuration))

	p := validPayload()
	p["message"] = "visit http://spam.example now"
	res, err := g.Evaluate("src", p)
	require.NoError(t, err)
	assert.Equal(t, SuspiciousContent, res.Verdict)

	p = validPayload()
	p["message"] = "you won the lottery"
	res, err = g.Evaluate("src", p)
	require.NoError(t, err)
	assert.Equal(t, SuspiciousContent, res.Verdict)

	p = validPayload()
	p["subject"] = "FREE MONEY inside"
	res, err = g.Evaluate("src", p)
	require.NoError(t, err)
	assert.Equal(t, SuspiciousContent, res.Verdict, "subject is checked too")

	p = validPayload()
	p["message"] = "I enjoyed your animation work and would like to talk about a project."
	res, err = g.Evaluate("src", p)
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Verdict)
}

func TestEvaluateRateLimitThreshold(t *testing.T) {
	clock := newFakeClock()
	g := New(WithClock(clock))

	for i := 1; i <= MaxAttempts; i++ {
		res, err := g.Evaluate("198.51.100.1", validPayload())
		require.NoError(t, err)
		assert.NotEqual(t, RateLimited, res.Verdict, "attempt %d", i)
		clock.Advance(time.Minute)
	}

	res, err := g.Evaluate("198.51.100.1", validPayload())
	require.NoError(t, err)
	assert.Equal(t, RateLimited, res.Verdict)
	assert.GreaterOrEqual(t, res.RetryAfterMinutes, 1)
	assert.LessOrEqual(t, res.RetryAfterMinutes, 15)
	// first hit at t, now t+3m: 12 minutes left
	assert.Equal(t, 12, res.RetryAfterMinutes)
}

func TestEvaluateRateLimitCountsRejectedAttempts(t *testing.T) {
	g := New(WithClock(newFakeClock()))

	bad := validPayload()
	delete(bad, "message")
	for i := 0; i < MaxAttempts; i++ {
		res, err := g.Evaluate("src", bad)
		require.NoError(t, err)
		assert.Equal(t, InvalidPayload, res.Verdict)
	}

	res, err := g.Evaluate("src", validPayload())
	require.NoError(t, err)
	assert.Equal(t, RateLimited, res.Verdict)
}

func TestEvaluateRateLimitBeforeValidation(t *testing.T) {
	g := New(WithClock(newFakeClock()))

	for i := 0; i < MaxAttempts; i++ {
		_, err := g.Evaluate("src", validPayload())
		require.NoError(t, err)
	}

	res, err := g.Evaluate("src", map[string]any{"junk": true})
	require.NoError(t, err)
	assert.Equal(t, RateLimited, res.Verdict)
}

func TestEvaluateWindowReset(t *testing.T) {
	clock := newFakeClock()
	g := New(WithClock(clock))

	for i := 0; i < MaxAttempts; i++ {
		_, err := g.Evaluate("src", validPayload())
		require.NoError(t, err)
	}

	clock.Advance(WindowDuration + time.Second)
	res, err := g.Evaluate("src", validPayload())
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Verdict)

	// the reset attempt opened a new window with one attempt used
	for i := 0; i < MaxAttempts-1; i++ {
		res, err = g.Evaluate("src", validPayload())
		require.NoError(t, err)
		assert.Equal(t, Accepted, res.Verdict)
	}
	res, err = g.Evaluate("src", validPayload())
	require.NoError(t, err)
	assert.Equal(t, RateLimited, res.Verdict)
}

func TestEvaluateLimitedCallsDoNotExtendWindow(t *testing.T) {
	clock := newFakeClock()
	g := New(WithClock(clock))

	for i := 0; i < MaxAttempts; i++ {
		_, err := g.Evaluate("src", validPayload())
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		clock.Advance(time.Minute)
		res, err := g.Evaluate("src", validPayload())
		require.NoError(t, err)
		assert.Equal(t, RateLimited, res.Verdict)
	}

	clock.Advance(5 * time.Minute)
	res, err := g.Evaluate("src", validPayload())
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Verdict)
}

func TestEvaluateIdentityIsolation(t *testing.T) {
	g := New(WithClock(newFakeClock()))

	for i := 0; i < MaxAttempts+2; i++ {
		_, err := g.Evaluate("A", validPayload())
		require.NoError(t, err)
	}

	res, err := g.Evaluate("B", validPayload())
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Verdict)
	assert.Equal(t, 2, g.Buckets())
}

func TestEvaluateConcurrentSameIdentity(t *testing.T) {
	g := New(WithClock(newFakeClock()))

	const workers = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.Evaluate("shared", validPayload())
			if err != nil || res.Verdict == RateLimited {
				return
			}
			mu.Lock()
			admitted++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, MaxAttempts, admitted)
}

func TestEvaluateCustomFilter(t *testing.T) {
	g := New(
		WithClock(newFakeClock()),
		WithContentFilter(ContentFilterFunc(func(text string) bool { return true })),
	)

	res, err := g.Evaluate("src", validPayload())
	require.NoError(t, err)
	assert.Equal(t, SuspiciousContent, res.Verdict)
}

func TestEvaluateZeroClock(t *testing.T) {
	g := New(WithClock(ClockFunc(func() time.Time { return time.Time{} })))

	_, err := g.Evaluate("src", validPayload())
	require.Error(t, err)
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "rate_limited", RateLimited.String())
	assert.Equal(t, "invalid_payload", InvalidPayload.String())
	assert.Equal(t, "bot_detected", BotDetected.String())
	assert.Equal(t, "suspicious_content", SuspiciousContent.String())
	assert.Equal(t, "unknown", Verdict(99).String())
}
