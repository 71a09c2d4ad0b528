package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type forwardBody struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ForwardDispatcher hands submissions to a backend contact endpoint,
// which takes care of the actual delivery.
type ForwardDispatcher struct {
	url    string
	client *http.Client
}

func NewForwardDispatcher(url string, timeout time.Duration) *ForwardDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ForwardDispatcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (d *ForwardDispatcher) Dispatch(ctx context.Context, env Envelope) error {
	s := env.Submission
	body, err := json.Marshal(forwardBody{
		Name:    s.Name,
		Email:   s.Email,
		Subject: s.Subject,
		Message: s.Message,
	})
	if err != nil {
		return fmt.Errorf("encode forward body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Submission-ID", env.ID.String())
	if env.Source != "" {
		req.Header.Set("X-Forwarded-For", env.Source)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("forward submission: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("forward submission: backend returned %s", resp.Status)
	}
	return nil
}
