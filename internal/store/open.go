package store

import (
	"context"
	"fmt"
	"time"
)

// Options selects paths and client settings for each backend.
type Options struct {
	CSVPath               string
	SQLitePath            string
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
}

// Handle is an opened StationStore with its health check and cleanup.
type Handle struct {
	StationStore
	Backend string
	// Ping reports whether the store can be read.
	Ping func() error
	// Close releases connections held by the backend.
	Close func() error
}

// Open builds the StationStore for backend ("csv", "sqlite" or "memcached").
func Open(ctx context.Context, backend string, opts Options) (*Handle, error) {
	noop := func() error { return nil }
	switch backend {
	case "csv":
		st, err := NewCSVStore(opts.CSVPath)
		if err != nil {
			return nil, err
		}
		ping := func() error {
			_, err := st.List(context.Background())
			return err
		}
		return &Handle{StationStore: st, Backend: backend, Ping: ping, Close: noop}, nil
	case "sqlite":
		st, err := NewSQLiteStore(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Handle{StationStore: st, Backend: backend, Ping: st.Ping, Close: st.Close}, nil
	case "memcached":
		st, err := NewMemcachedStore(opts.MemcachedAddrs, opts.MemcachedTimeout, opts.MemcachedMaxIdleConns)
		if err != nil {
			return nil, err
		}
		return &Handle{StationStore: st, Backend: backend, Ping: st.Ping, Close: st.Close}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
