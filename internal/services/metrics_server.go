package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MetricsServer serves Prometheus metrics on /metrics and a liveness probe on /healthz.
type MetricsServer struct {
	Addr    string
	Metrics http.Handler
	Logger  zerolog.Logger

	srv      *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewMetricsServer creates a MetricsServer listening on addr.
func NewMetricsServer(addr string, metrics http.Handler, logger zerolog.Logger) *MetricsServer {
	return &MetricsServer{
		Addr:    addr,
		Metrics: metrics,
		Logger:  logger,
	}
}

// Start binds the listen address and serves in a separate goroutine.
func (m *MetricsServer) Start() error {
	if m.srv != nil {
		m.Logger.Warn().Msg("MetricsServer is already running")
		return errors.New("metrics server is already running")
	}

	listener, err := net.Listen("tcp", m.Addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Metrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	m.listener = listener
	m.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.Logger.Error().Err(err).Msg("Metrics server exited")
		}
	}()

	m.Logger.Info().Str("addr", listener.Addr().String()).Msg("MetricsServer started successfully")
	return nil
}

// ListenAddr returns the bound address, or an empty string when not running.
func (m *MetricsServer) ListenAddr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Stop shuts the server down, waiting up to five seconds for open requests.
func (m *MetricsServer) Stop() error {
	if m.srv == nil {
		m.Logger.Warn().Msg("MetricsServer is not running")
		return errors.New("metrics server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.srv.Shutdown(ctx)
	m.wg.Wait()

	m.srv = nil
	m.listener = nil

	m.Logger.Info().Msg("MetricsServer stopped successfully")
	return err
}
