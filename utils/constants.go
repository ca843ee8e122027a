package utils

import (
	"time"
)

// Dispatch constants
const (
	// DefaultBatchSize is how many pending recipient records one dispatch batch
	// claims at a time
	DefaultBatchSize = 1000

	// DefaultWorkerCount bounds the parallel transport calls per campaign
	DefaultWorkerCount = 8

	// DefaultSendRate is the target messages per second across all workers of
	// a campaign
	DefaultSendRate = 50

	// DefaultSendTimeout bounds one transport call; a timeout counts as a
	// delivery failure
	DefaultSendTimeout = 30 * time.Second

	// DispatchLockTTL bounds how long a crashed instance can hold the
	// cross-instance dispatch lock of a campaign
	DispatchLockTTL = 10 * time.Minute
)

// BulkIDLength is the length of generated bulk campaign identifiers
const BulkIDLength = 12

// CORSMaxAge is how long browsers may cache CORS preflight responses, in seconds
const CORSMaxAge = 86400

// Progress cache constants
const (
	// ProgressCacheTTL bounds staleness of cached progress snapshots
	ProgressCacheTTL = 5 * time.Second
)
