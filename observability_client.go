package flagcore

import "context"

// ObservabilityClient lets a host plug in its own metrics backend
// (statsd/Datadog/OTel/etc) for OutputLogger's Increment/Gauge/Distribution
// calls. All methods must be safe to call concurrently.
type ObservabilityClient interface {
	Init(ctx context.Context) error
	Increment(metricName string, value int, tags map[string]interface{}) error
	Gauge(metricName string, value float64, tags map[string]interface{}) error
	Distribution(metricName string, value float64, tags map[string]interface{}) error
	ShouldEnableHighCardinalityForThisTag(tag string) bool
	Shutdown(ctx context.Context) error
}
