// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package metrics exposes prometheus counters for geocoder requests and location updates.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wneessen/everymap/internal/geobus"
	"github.com/wneessen/everymap/internal/geocode"
	"github.com/wneessen/everymap/internal/logger"
)

const (
	namespace       = "everymap"
	shutdownTimeout = 5 * time.Second

	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

type Metrics struct {
	registry        *prometheus.Registry
	geocodeRequests *prometheus.CounterVec
	geocodeDuration *prometheus.HistogramVec
	cacheHits       *prometheus.CounterVec
	locationUpdates *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		geocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Number of geocoder requests by operation, provider and outcome.",
		}, []string{"operation", "provider", "outcome"}),
		geocodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_request_duration_seconds",
			Help:      "Duration of geocoder requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "provider"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_hits_total",
			Help:      "Number of geocoder requests answered from the cache.",
		}, []string{"operation"}),
		locationUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_updates_total",
			Help:      "Number of accepted location updates by source.",
		}, []string{"source"}),
	}
	m.registry.MustRegister(
		m.geocodeRequests,
		m.geocodeDuration,
		m.cacheHits,
		m.locationUpdates,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveLocation counts an accepted location update. It satisfies geobus.Observer.
func (m *Metrics) ObserveLocation(r geobus.Result) {
	m.locationUpdates.WithLabelValues(r.Source).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes the metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *logger.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return m.serve(ctx, listener, log)
}

func (m *Metrics) serve(ctx context.Context, listener net.Listener, log *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shut down metrics server", logger.Err(err))
		}
	}()

	log.Info("serving metrics", slog.String("address", listener.Addr().String()))
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// InstrumentGeocoder wraps coder so that every request is counted under the provider label.
func (m *Metrics) InstrumentGeocoder(coder geocode.Geocoder, provider string) geocode.Geocoder {
	return &instrumentedGeocoder{coder: coder, provider: provider, metrics: m}
}

type instrumentedGeocoder struct {
	coder    geocode.Geocoder
	provider string
	metrics  *Metrics
}

func (g *instrumentedGeocoder) Name() string {
	return g.coder.Name()
}

func (g *instrumentedGeocoder) Reverse(ctx context.Context, coords geobus.Coordinate) (geocode.Address, error) {
	start := time.Now()
	addr, err := g.coder.Reverse(ctx, coords)
	outcome := OutcomeFound
	switch {
	case err != nil:
		outcome = OutcomeError
	case !addr.AddressFound:
		outcome = OutcomeNotFound
	}
	g.observe("reverse", outcome, addr.CacheHit, start)
	return addr, err
}

func (g *instrumentedGeocoder) Search(ctx context.Context, query string) (geocode.SearchResult, error) {
	start := time.Now()
	result, err := g.coder.Search(ctx, query)
	outcome := OutcomeFound
	switch {
	case err != nil:
		outcome = OutcomeError
	case result.Empty():
		outcome = OutcomeNotFound
	}
	g.observe("search", outcome, result.CacheHit, start)
	return result, err
}

func (g *instrumentedGeocoder) observe(operation, outcome string, cacheHit bool, start time.Time) {
	g.metrics.geocodeRequests.WithLabelValues(operation, g.provider, outcome).Inc()
	g.metrics.geocodeDuration.WithLabelValues(operation, g.provider).Observe(time.Since(start).Seconds())
	if cacheHit {
		g.metrics.cacheHits.WithLabelValues(operation).Inc()
	}
}
