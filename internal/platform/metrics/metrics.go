// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics collects and exposes Prometheus metrics for the Unpuff API.

Services depend on the narrow [Recorder] interface; the HTTP chain uses
[Collector.Middleware]. Both are backed by a caller-supplied registry so tests
can use an isolated [prometheus.NewRegistry].
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth event outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder is the metrics surface used by the service layer.
type Recorder interface {
	RecordAuthEvent(event, outcome string)
	RecordProfileWrite(operation string)
}

// Collector is the Prometheus implementation of [Recorder].
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	authEvents   *prometheus.CounterVec
	profileOps   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unpuff_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unpuff_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unpuff_auth_events_total",
			Help: "Identity operations by event and outcome.",
		}, []string{"event", "outcome"}),
		profileOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unpuff_profile_writes_total",
			Help: "Profile writes by operation.",
		}, []string{"operation"}),
	}

	reg.MustRegister(c.httpRequests, c.httpLatency, c.authEvents, c.profileOps)

	return c
}

// RecordAuthEvent counts one identity operation.
func (c *Collector) RecordAuthEvent(event, outcome string) {
	c.authEvents.WithLabelValues(event, outcome).Inc()
}

// RecordProfileWrite counts one profile save or delete.
func (c *Collector) RecordProfileWrite(operation string) {
	c.profileOps.WithLabelValues(operation).Inc()
}

// Middleware records request count and latency per chi route pattern.
//
// The route label uses the matched pattern, not the raw path, to keep label
// cardinality bounded.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

		next.ServeHTTP(recorder, request)

		route := "unmatched"
		if routeCtx := chi.RouteContext(request.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		c.httpRequests.WithLabelValues(request.Method, route, strconv.Itoa(recorder.status)).Inc()
		c.httpLatency.WithLabelValues(request.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop is a [Recorder] that drops everything. Used by tests and tools.
type Nop struct{}

func (Nop) RecordAuthEvent(string, string) {}
func (Nop) RecordProfileWrite(string)      {}
