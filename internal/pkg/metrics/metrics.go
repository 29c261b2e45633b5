// Package metrics exposes prometheus collectors for game sessions and
// serves them over HTTP.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "battleship"

var (
	// SessionTransitions counts sessions entering each status.
	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Sessions entering a status.",
	}, []string{"status"})

	// ActiveSessions is the number of sessions that are pending, in setup or in combat.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Sessions not yet in a terminal status.",
	})

	// Moves counts attacks by result.
	Moves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "moves_total",
		Help:      "Attacks made, by result.",
	}, []string{"result"})

	// PlatformFailures counts failed platform calls by operation.
	PlatformFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "platform_failures_total",
		Help:      "Failed platform calls, by operation.",
	}, []string{"operation"})
)

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// NewRouter returns the HTTP routes: /metrics and /healthz.
// Every non-nil check must pass for /healthz to answer 200.
func NewRouter(checks ...HealthFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(req.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Serve runs the metrics server on addr until ctx is done.
func Serve(ctx context.Context, addr string, checks ...HealthFunc) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(checks...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
