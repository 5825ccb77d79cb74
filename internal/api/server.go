package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// shutdownGrace bounds how long in-flight requests may run after ctx ends.
const shutdownGrace = 10 * time.Second

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Serve listens on o.Addr and serves h until ctx is done, then shuts down
// gracefully.
func Serve(ctx context.Context, o ServerOptions, h http.Handler, log *zap.Logger) error {
	l, err := net.Listen("tcp", o.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", o.Addr, err)
	}
	return ServeListener(ctx, l, o, h, log)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, l net.Listener, o ServerOptions, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadTimeout:       o.ReadTimeout,
		WriteTimeout:      o.WriteTimeout,
		ReadHeaderTimeout: o.ReadTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(l)
	}()
	log.Info("geoff listening", zap.String("addr", l.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
