package observability

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Collector is an in-process OpenTelemetry pipeline: metrics are pulled on
// demand through a manual reader and ended spans are kept in memory. The CLI
// uses it to print a run summary; tests use it to assert on telemetry.
type Collector struct {
	reader *sdkmetric.ManualReader
	spans  *tracetest.SpanRecorder

	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
}

// NewCollector builds the meter and tracer providers.
func NewCollector() *Collector {
	reader := sdkmetric.NewManualReader()
	spans := tracetest.NewSpanRecorder()
	return &Collector{
		reader:         reader,
		spans:          spans,
		MeterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)),
	}
}

// Metrics returns a recorder bound to the collector.
func (c *Collector) Metrics() (MetricsRecorder, error) {
	return NewMetricsRecorder(c.MeterProvider)
}

// Spans returns a span manager bound to the collector.
func (c *Collector) Spans() SpanManager {
	return NewSpanManager(c.TracerProvider)
}

// EndedSpans returns every finished span so far.
func (c *Collector) EndedSpans() []sdktrace.ReadOnlySpan {
	return c.spans.Ended()
}

// MetricTotal is one aggregated instrument stream.
type MetricTotal struct {
	Name  string
	Attrs string
	// Value is the counter sum, or the observation count for histograms.
	Value float64
	// Sum is the histogram sum; zero for counters.
	Sum float64
}

func (m MetricTotal) String() string {
	if m.Sum != 0 {
		return fmt.Sprintf("%s{%s} count=%g sum=%.2f", m.Name, m.Attrs, m.Value, m.Sum)
	}
	return fmt.Sprintf("%s{%s} %g", m.Name, m.Attrs, m.Value)
}

// Totals collects the current metric values, sorted by name and attributes.
func (c *Collector) Totals(ctx context.Context) ([]MetricTotal, error) {
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	var out []MetricTotal
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out = append(out, MetricTotal{Name: m.Name, Attrs: dp.Attributes.Encoded(attrEncoder), Value: float64(dp.Value)})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out = append(out, MetricTotal{Name: m.Name, Attrs: dp.Attributes.Encoded(attrEncoder), Value: float64(dp.Count), Sum: dp.Sum})
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					out = append(out, MetricTotal{Name: m.Name, Attrs: dp.Attributes.Encoded(attrEncoder), Value: float64(dp.Count), Sum: float64(dp.Sum)})
				}
			}
		}
	}
	slices.SortFunc(out, func(a, b MetricTotal) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Attrs, b.Attrs))
	})
	return out, nil
}

var attrEncoder = attribute.DefaultEncoder()

// Shutdown flushes and stops both providers.
func (c *Collector) Shutdown(ctx context.Context) error {
	merr := c.MeterProvider.Shutdown(ctx)
	terr := c.TracerProvider.Shutdown(ctx)
	if merr != nil {
		return merr
	}
	return terr
}
