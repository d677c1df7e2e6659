// Package metrics provides constants used across metric definitions.
package metrics

// Histogram bucket parameters shared by metric definitions.
const (
	// BucketStart1ms is the starting bucket for fast local operations.
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for in-process pipelines.
	BucketStart10ms = 0.01
	// BucketStart100ms is the starting bucket for network operations.
	BucketStart100ms = 0.1
	// BucketFactor2 doubles each successive bucket.
	BucketFactor2 = 2.0
	// BucketCount10 yields three decades of range at factor 2.
	BucketCount10 = 10
	// BucketCount12 extends the range for long-tail operations.
	BucketCount12 = 12
)
