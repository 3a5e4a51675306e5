package telemetry

import "go.opentelemetry.io/otel/metric"

// Metrics holds the gateway's instruments.
type Metrics struct {
	ToolDuration metric.Float64Histogram
	ToolErrors   metric.Int64Counter
}

// NewMetrics creates the instruments from meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ToolDuration, err = meter.Float64Histogram("agi.tool.duration",
		metric.WithDescription("Tool call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ToolErrors, err = meter.Int64Counter("agi.tool.errors",
		metric.WithDescription("Tool calls that returned an error envelope"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
