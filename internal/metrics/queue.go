package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// RegisterQueueDepth exposes pending() as an observable gauge named
// <namespace>_dispatch_queue_depth. The callback runs on every collection.
func RegisterQueueDepth(meterProvider metric.MeterProvider, namespace string, pending func() int) error {
	meter := meterProvider.Meter(namespace)

	_, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_dispatch_queue_depth", namespace),
		metric.WithDescription("Reconciliations waiting for a worker"),
		metric.WithUnit("{job}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(pending()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue depth gauge: %w", err)
	}
	return nil
}
