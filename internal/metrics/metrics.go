package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/leafsii/kvconn/pkg/kv"
)

type Metrics struct {
	HTTPRequests     metric.Int64Counter
	HTTPDuration     metric.Float64Histogram
	RedisEvents      metric.Int64Counter
	RedisWait        metric.Float64Histogram
	RedisHealthcheck metric.Int64Counter
}

var _ kv.Recorder = (*Metrics)(nil)

// Setup registers the instruments on the default Prometheus registry and installs
// the meter provider globally
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	m, err := newMetrics(serviceName, promclient.DefaultRegisterer, true)
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.Handler(), nil
}

// SetupWithRegistry registers the instruments on reg only
func SetupWithRegistry(serviceName string, reg *promclient.Registry) (*Metrics, http.Handler, error) {
	m, err := newMetrics(serviceName, reg, false)
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

func newMetrics(serviceName string, reg promclient.Registerer, global bool) (*Metrics, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	if global {
		otel.SetMeterProvider(provider)
	}

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"kvconn_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"kvconn_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.RedisEvents, err = meter.Int64Counter(
		"kvconn_redis_events_total",
		metric.WithDescription("Redis transport lifecycle events by kind"),
	)
	if err != nil {
		return nil, err
	}

	m.RedisWait, err = meter.Float64Histogram(
		"kvconn_redis_wait_seconds",
		metric.WithDescription("WaitUntilConnected duration in seconds by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.RedisHealthcheck, err = meter.Int64Counter(
		"kvconn_redis_healthchecks_total",
		metric.WithDescription("Redis healthchecks by outcome and attempts"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordEvent(ctx context.Context, topology kv.Topology, kind kv.EventKind) {
	m.RedisEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topology", topology.String()),
		attribute.String("event", string(kind)),
	))
}

func (m *Metrics) RecordWait(ctx context.Context, topology kv.Topology, outcome string, duration time.Duration) {
	m.RedisWait.Record(context.WithoutCancel(ctx), duration.Seconds(), metric.WithAttributes(
		attribute.String("topology", topology.String()),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordHealthcheck(ctx context.Context, topology kv.Topology, outcome string, attempts int) {
	m.RedisHealthcheck.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("topology", topology.String()),
		attribute.String("outcome", outcome),
		attribute.String("attempts", strconv.Itoa(attempts)),
	))
}
