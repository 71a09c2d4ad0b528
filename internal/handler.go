package portfolio_contact

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nazarhussain/portfolio-contact/internal/dispatch"
	"github.com/nazarhussain/portfolio-contact/internal/gate"
)

const (
	msgSent     = "Message sent successfully! Thank you for reaching out."
	msgInvalid  = "Invalid form data. Please fill in all fields with valid information."
	msgRejected = "Unable to process your message. Please review it and try again."
	msgFailed   = "Failed to send message. Please try again later or contact directly via email."
)

type Server struct {
	config     *Config
	gate       *gate.Gate
	dispatcher dispatch.Dispatcher
	now        func() time.Time
}

func NewServer(config *Config, g *gate.Gate, d dispatch.Dispatcher) *Server {
	return &Server{
		config:     config,
		gate:       g,
		dispatcher: d,
		now:        time.Now,
	}
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":            "Contact API endpoint is working",
		"timestamp":          s.now().UTC().Format(time.RFC3339),
		"rateLimiting":       "Active",
		"honeypotProtection": "Active",
		"spamFiltering":      "Active",
		"dispatch":           s.config.Dispatch.Mode,
		"dispatchConfigured": s.config.DispatchConfigured(),
	})
}

func (s *Server) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	if !s.applyCORS(w, r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "600")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleContact(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())

	if !s.applyCORS(w, r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	maxBytes := s.config.MaxBodyKB * 1024
	body, err := io.ReadAll(io.LimitReader(r.Body, int64(maxBytes)+1))
	r.Body.Close()
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	if len(body) > maxBytes {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	payload, ok := s.decode(r.Header.Get("Content-Type"), body)
	if !ok {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return
	}

	source := SourceIdentity(r)
	receivedAt := s.now()
	res, err := s.gate.Evaluate(source, payload)
	if err != nil {
		logger.Error("gate failed", "err", err, "ip", source)
		s.writeFailure(w, err)
		return
	}

	switch res.Verdict {
	case gate.RateLimited:
		logger.Warn("contact rate limited", "ip", source, "retry_after_min", res.RetryAfterMinutes)
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterMinutes*60))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":       fmt.Sprintf("Too many attempts. Please try again in %d minutes.", res.RetryAfterMinutes),
			"rateLimited": true,
		})
		return
	case gate.InvalidPayload:
		logger.Info("contact rejected", "verdict", res.Verdict.String(), "reason", res.Reason, "ip", source)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": msgInvalid})
		return
	case gate.BotDetected, gate.SuspiciousContent:
		logger.Warn("contact rejected", "verdict", res.Verdict.String(), "ip", source)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": msgRejected})
		return
	case gate.Accepted:
	default:
		s.writeFailure(w, fmt.Errorf("unexpected verdict %s", res.Verdict))
		return
	}

	env := dispatch.NewEnvelope(source, receivedAt, *res.Submission)
	logger = logger.With("submission_id", env.ID.String())
	if err := s.dispatcher.Dispatch(r.Context(), env); err != nil {
		logger.Error("dispatch failed", "err", err, "ip", source)
		s.writeFailure(w, err)
		return
	}

	logger.Info("contact dispatched", "ip", source, "mode", s.config.Dispatch.Mode)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": msgSent,
		"success": true,
	})
}

// decode turns the body into the untyped shape the gate expects. A JSON
// body that does not parse becomes nil so the gate still counts the
// attempt and reports it as invalid.
func (s *Server) decode(contentType string, body []byte) (any, bool) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "application/json") && s.config.AllowJSON:
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, true
		}
		return v, true
	case strings.HasPrefix(ct, "application/x-www-form-urlencoded") && s.config.AllowForm:
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, true
		}
		// only keys actually sent, so a missing field stays missing
		v := make(map[string]any, len(form))
		for k := range form {
			v[k] = form.Get(k)
		}
		return v, true
	default:
		return nil, false
	}
}

// applyCORS sets the allow-origin headers. It reports false when the
// request names an origin outside the configured list.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if len(s.config.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, ao := range s.config.AllowedOrigins {
		if ao == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			return true
		}
		if origin == ao {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			return true
		}
	}
	return false
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	resp := map[string]any{"error": msgFailed}
	if s.config.IsDevelopment() {
		resp["details"] = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
