package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nazarhussain/portfolio-contact/env"
	portfolio_contact "github.com/nazarhussain/portfolio-contact/internal"
	"github.com/nazarhussain/portfolio-contact/internal/dispatch"
	"github.com/nazarhussain/portfolio-contact/internal/gate"
)

const (
	// writeTimeout must exceed the SMTP and forward timeouts
	writeTimeout    = 45 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := env.Load(); err != nil {
		slog.Error("load .env", "err", err)
		os.Exit(1)
	}

	logger := newLogger()

	config, err := portfolio_contact.LoadConfig()
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	dispatcher, err := dispatch.New(config.Dispatch, logger)
	if err != nil {
		logger.Error("dispatch setup failed", "err", err)
		os.Exit(1)
	}

	server := portfolio_contact.NewServer(config, gate.New(), dispatcher)

	s := &http.Server{
		Addr:              config.ListenAddr,
		Handler:           server.Routes(logger),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      writeTimeout,
	}

	ln, err := net.Listen("tcp", config.ListenAddr)
	if err != nil {
		logger.Error("listen failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("contact api listening",
		"addr", ln.Addr().String(),
		"dispatch", config.Dispatch.Mode,
		"env", config.AppEnv,
	)

	if err := serve(ctx, s, ln); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// serve runs s on ln until ctx is done, then drains in-flight requests.
// It returns only once Shutdown has finished.
func serve(ctx context.Context, s *http.Server, ln net.Listener) error {
	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr <- s.Shutdown(shutdownCtx)
	}()

	if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: logLevelFromEnv(),
	}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func logLevelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
