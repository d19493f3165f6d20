package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/numbleroot/lwwdict/replica"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewDictMetrics returns the instruments of a replica. Without
// a Prometheus address nothing is collected.
func NewDictMetrics(promAddr string) *replica.Metrics {

	if promAddr == "" {
		return &replica.Metrics{
			Adds:    discard.NewCounter(),
			Updates: discard.NewCounter(),
			Removes: discard.NewCounter(),
			Merges:  discard.NewCounter(),
			Keys:    discard.NewGauge(),
		}
	}

	return &replica.Metrics{
		Adds: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "lwwdict",
			Subsystem: "replica",
			Name:      "adds_total",
			Help:      "Number of applied add operations",
		}, nil),
		Updates: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "lwwdict",
			Subsystem: "replica",
			Name:      "updates_total",
			Help:      "Number of applied update operations",
		}, nil),
		Removes: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "lwwdict",
			Subsystem: "replica",
			Name:      "removes_total",
			Help:      "Number of applied remove operations",
		}, nil),
		Merges: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "lwwdict",
			Subsystem: "replica",
			Name:      "merges_total",
			Help:      "Number of merges that changed local state",
		}, nil),
		Keys: prometheus.NewGaugeFrom(prom.GaugeOpts{
			Namespace: "lwwdict",
			Subsystem: "replica",
			Name:      "keys",
			Help:      "Number of keys currently present",
		}, nil),
	}
}

func runPromHTTP(ctx context.Context, logger log.Logger, addr string) {

	if addr == "" {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
	}
}
