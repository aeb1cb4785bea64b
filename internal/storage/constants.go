package db

import "time"

// DuplicatePolicy decides what happens to incoming records whose key is already stored.
type DuplicatePolicy string

const (
	// DuplicatesSkip leaves stored rows untouched.
	DuplicatesSkip DuplicatePolicy = "skip"
	// DuplicatesUpdate replaces mutable columns of stored rows with the incoming values.
	DuplicatesUpdate DuplicatePolicy = "update"
)

// Query limits
const (
	// DefaultTopMessagesLimit caps top-N message queries.
	DefaultTopMessagesLimit = 1000
	maxTopMessagesLimit     = 10000
)

// Database connection constants
const (
	// ConnectionRetrySleep is the sleep duration between connection retries
	ConnectionRetrySleep = 2 * time.Second
	// maxConnectionRetries is the number of retries for initial connection
	maxConnectionRetries = 10
)

// Database pool default constants
const (
	defaultMaxConns          int32         = 10
	defaultMinConns          int32         = 2
	defaultMaxConnIdleTime   time.Duration = 30 * time.Minute
	defaultMaxConnLifetime   time.Duration = time.Hour
	defaultHealthCheckPeriod time.Duration = time.Minute
)
