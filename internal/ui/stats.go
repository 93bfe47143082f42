package ui

import "sync/atomic"

// Stats aggregates the outcome of every loader driven by one command.
type Stats struct {
	Pages     atomic.Int64
	Items     atomic.Int64
	Bytes     atomic.Int64
	Failures  atomic.Int64
	Documents atomic.Int64
}
