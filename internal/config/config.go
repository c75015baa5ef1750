// Package config provides configuration persistence for chronostore.
//
// Store persists and reloads the desired system configuration across
// restarts. This is control-plane state, declarative: it describes
// what timelines, rotation policy, cache limits and snapshot backend
// should be in effect, not data-plane state. Store is never consulted
// on the ingest or query hot path.
package config

import (
	"context"
	"time"
)

// Store persists and loads chronostore's configuration.
type Store interface {
	// Load reads the configuration. Returns nil if none exists yet.
	Load(ctx context.Context) (*Config, error)

	// Save persists the configuration.
	Save(ctx context.Context, cfg *Config) error
}

// Config describes the desired shape of a chronostore instance.
type Config struct {
	Timelines   []TimelineConfig
	Rotation    RotationPolicy
	Cache       CacheConfig
	Snapshot    SnapshotConfig
	Eventbridge EventbridgeConfig
}

// TimelineConfig declares one timeline a store instance understands,
// e.g. {"frame", "sequence"} or {"log_time", "time"}.
type TimelineConfig struct {
	Name string
	Type string // "sequence" or "time"
}

// RotationPolicy bounds how large a chunk may grow before the writer
// that assembles it should seal and start a new one. Chunks are
// immutable once built; rotation is a concern of whatever assembles
// rows into chunks before handing them to the store, not of the store
// itself.
type RotationPolicy struct {
	MaxRowsPerChunk int
	MaxAge          time.Duration
}

// CacheConfig bounds the query cache's size. It is passed straight
// through to querycache.Config.MaxEntries.
type CacheConfig struct {
	// MaxEntries caps the number of distinct CacheKeys held by the
	// latest-at cache at once. Zero means unbounded.
	MaxEntries int
}

// SnapshotConfig selects and parameterizes a snapshot.BlobStore
// backend, e.g. {"local", {"dir": "/var/lib/chronostore"}} or
// {"s3", {"bucket": "..."}}.
type SnapshotConfig struct {
	Backend string
	Params  map[string]string
}

// EventbridgeConfig declares an optional Kafka sink that every
// committed StoreEvent is forwarded to, in addition to being held in
// the store itself. Brokers empty means no forwarding is configured.
type EventbridgeConfig struct {
	Brokers      []string
	Topic        string
	TLS          bool
	SASLMechanism string
	SASLUser     string
	SASLPassword string
}
