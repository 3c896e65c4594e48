package server

import (
	"context"
	"errors"
	"log/slog"
	"mediumpilot/internal/pipeline"
	"mediumpilot/internal/registry"
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.Report, error)
}

type Registrar interface {
	Register(ctx context.Context, reg registry.Registration) (string, error)
}

type Server struct {
	runner       CycleRunner
	registrar    Registrar
	cycleTimeout time.Duration
	mux          *http.ServeMux
	log          *slog.Logger
}

func New(runner CycleRunner, registrar Registrar, cycleTimeout time.Duration, log *slog.Logger) *Server {
	s := &Server{
		runner:       runner,
		registrar:    registrar,
		cycleTimeout: cycleTimeout,
		mux:          http.NewServeMux(),
		log:          log,
	}
	s.routes()

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe blocks until ctx is done or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
