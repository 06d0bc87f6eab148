package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragpdf-go/internal/events"
	"github.com/54b3r/ragpdf-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. Ingesting
	// a large remote PDF happens inside the request, so the default is generous.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// MaxBodyBytes caps the POST /api/events request body. Defaults to 1 MiB.
	MaxBodyBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// AppID is reported by GET /api/functions. Defaults to DefaultAppID.
	AppID string
	// Ledger backs GET /api/documents. If nil the endpoint returns 503.
	Ledger store.Ledger
	// Metrics receives HTTP and event metrics. If nil, New registers a fresh
	// set against MetricsRegistry.
	Metrics *Metrics
	// MetricsRegistry is where New registers metrics when Metrics is nil.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics.
	// Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// dispatcher is the part of *events.Registry the handlers use.
// Tests inject a fake.
type dispatcher interface {
	// Dispatch runs every function subscribed to evt.Name.
	Dispatch(ctx context.Context, evt events.Event) ([]events.Run, error)
	// Functions lists the registered functions.
	Functions() []events.Function
}

// Server is the HTTP server that exposes the event registry.
type Server struct {
	// registry dispatches incoming events to functions.
	registry dispatcher
	// ledger lists ingested documents; nil when the ledger is disabled.
	ledger store.Ledger
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this server.
	metrics *Metrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// now is the clock used to stamp incoming events.
	now func() time.Time
}

// eventsResponse is the JSON response for POST /api/events.
type eventsResponse struct {
	// IDs are the event IDs in request order, including server-assigned ones.
	IDs []string `json:"ids"`
	// Runs are the function runs across all events, in dispatch order.
	Runs []events.Run `json:"runs"`
	// Duplicates lists the IDs that were skipped because they were seen before.
	Duplicates []string `json:"duplicates,omitempty"`
	// Error is set when dispatch failed outside of a handler.
	Error string `json:"error,omitempty"`
}

// functionsResponse is the JSON response for GET /api/functions.
type functionsResponse struct {
	// AppID identifies this application to event senders.
	AppID string `json:"app_id"`
	// Functions are the registered functions in registration order.
	Functions []events.Function `json:"functions"`
}

// documentsResponse is the JSON response for GET /api/documents.
type documentsResponse struct {
	// Documents are the most recently ingested documents, newest first.
	Documents []store.Document `json:"documents"`
}
