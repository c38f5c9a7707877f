// Package metrics provides Prometheus instrumentation for the client.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CallsTotal counts gateway calls by endpoint and outcome kind.
	CallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epl_client",
			Name:      "gateway_calls_total",
			Help:      "Total gateway calls by endpoint and outcome kind.",
		},
		[]string{"endpoint", "kind"},
	)

	// CallDuration observes gateway call latency by endpoint.
	CallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "epl_client",
			Name:      "gateway_call_duration_seconds",
			Help:      "Gateway call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// SessionActive is 1 while a token is held, 0 otherwise.
	SessionActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "epl_client", Name: "session_active",
		Help: "Whether an authentication token is currently held.",
	})

	// SessionClearsTotal counts session clears by reason.
	SessionClearsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epl_client",
			Name:      "session_clears_total",
			Help:      "Total session clears by reason (logout, unauthorized).",
		},
		[]string{"reason"},
	)

	// HealthProbesTotal counts health probes by result.
	HealthProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epl_client",
			Name:      "health_probes_total",
			Help:      "Total admin health probes by result.",
		},
		[]string{"result"},
	)

	// RetrainsTotal counts retrain invocations by final status.
	RetrainsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epl_client",
			Name:      "retrains_total",
			Help:      "Total retrain invocations by final status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		CallsTotal,
		CallDuration,
		SessionActive,
		SessionClearsTotal,
		HealthProbesTotal,
		RetrainsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done. Call in a goroutine.
func Serve(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics endpoint failed", "error", err)
	}
}
