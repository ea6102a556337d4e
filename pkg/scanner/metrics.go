package scanner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/praetorian-inc/sieve/pkg/scanner"

type metrics struct {
	blobs   metric.Int64Counter
	bytes   metric.Int64Counter
	matches metric.Int64Counter
	latency metric.Float64Histogram
	compile metric.Float64Histogram
	engine  attribute.KeyValue
}

func newMetrics(meter metric.Meter, engine string) (*metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	m := &metrics{engine: attribute.String("engine", engine)}

	var err error
	if m.blobs, err = meter.Int64Counter("sieve_scan_blobs_total",
		metric.WithDescription("Blobs scanned")); err != nil {
		return nil, err
	}
	if m.bytes, err = meter.Int64Counter("sieve_scan_bytes_total",
		metric.WithDescription("Bytes scanned"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.matches, err = meter.Int64Counter("sieve_scan_matches_total",
		metric.WithDescription("Matches reported, by rule")); err != nil {
		return nil, err
	}
	if m.latency, err = meter.Float64Histogram("sieve_scan_latency_ms",
		metric.WithDescription("Time to scan one blob"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.compile, err = meter.Float64Histogram("sieve_compile_latency_ms",
		metric.WithDescription("Time to compile the rule set"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metrics) recordCompile(ctx context.Context, d time.Duration, rules int) {
	m.compile.Record(ctx, ms(d), metric.WithAttributes(m.engine, attribute.Int("rule_count", rules)))
}

func (m *metrics) recordScan(ctx context.Context, size int, d time.Duration, perRule map[string]int) {
	attrs := metric.WithAttributes(m.engine)
	m.blobs.Add(ctx, 1, attrs)
	m.bytes.Add(ctx, int64(size), attrs)
	m.latency.Record(ctx, ms(d), attrs)
	for ruleID, n := range perRule {
		m.matches.Add(ctx, int64(n), metric.WithAttributes(m.engine, attribute.String("rule", ruleID)))
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
