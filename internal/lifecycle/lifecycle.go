package lifecycle

import "sync/atomic"

var (
	shuttingDown   atomic.Bool
	stationsLoaded atomic.Bool
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// SetStationsLoaded records that a station refresh has completed since start.
func SetStationsLoaded(v bool) {
	stationsLoaded.Store(v)
}

// StationsLoaded reports whether the store has been refreshed by this process.
// A false value with a readable store means the service is serving the list
// left by a previous run.
func StationsLoaded() bool {
	return stationsLoaded.Load()
}
