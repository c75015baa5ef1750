package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rerun-io/rerun-sub038/internal/config"
	configfile "github.com/rerun-io/rerun-sub038/internal/config/file"
	"github.com/rerun-io/rerun-sub038/internal/eventbridge"
	"github.com/rerun-io/rerun-sub038/internal/querycache"
	"github.com/rerun-io/rerun-sub038/internal/snapshot"
	"github.com/rerun-io/rerun-sub038/internal/store"

	"github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
)

// defaultConfig returns the configuration a fresh chronostore instance
// starts with when no config file exists yet: one "frame" sequence
// timeline, an unbounded cache and local on-disk snapshots under the
// given directory.
func defaultConfig(snapshotDir string) *config.Config {
	return &config.Config{
		Timelines: []config.TimelineConfig{{Name: "frame", Type: "sequence"}},
		Snapshot: config.SnapshotConfig{
			Backend: "local",
			Params:  map[string]string{"dir": snapshotDir},
		},
	}
}

// loadConfig opens the file-backed config store at path, returning its
// contents or a fresh default if none has been saved yet.
func loadConfig(ctx context.Context, path string, logger *slog.Logger) (*config.Config, config.Store, error) {
	cfgStore := configfile.NewStore(path, logger)
	cfg, err := cfgStore.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg == nil {
		cfg = defaultConfig(path + ".snapshots")
		if err := cfgStore.Save(ctx, cfg); err != nil {
			return nil, nil, fmt.Errorf("save default config: %w", err)
		}
	}
	return cfg, cfgStore, nil
}

// resources bundles the live, in-process pieces a running chronostore
// instance needs: the store of record, the query cache in front of it,
// the snapshot manager that persists and replays it, and (optionally)
// a Kafka publisher forwarding its events out of process.
type resources struct {
	storeID   string
	store     *store.Store
	cache     *querycache.Cache
	blobs     snapshot.BlobStore
	snapshots *snapshot.Manager
	writer    *snapshot.Writer
	publisher *eventbridge.Publisher
}

// openResources builds a Store wired to the config's snapshot backend,
// replays any existing snapshot into it, and subscribes a Writer and
// (if configured) an eventbridge Publisher to keep it durable and
// forwarded going forward.
func openResources(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*resources, error) {
	storeID := petname.Generate(2, "-") + "-" + uuid.NewString()[:8]

	s := store.New(store.Config{StoreID: storeID, Logger: logger})
	cache := querycache.New(s, querycache.Config{Logger: logger, MaxEntries: cfg.Cache.MaxEntries})

	blobs, err := snapshot.NewBlobStore(ctx, cfg.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	mgr := snapshot.New(blobs, snapshot.Config{Logger: logger})
	n, err := mgr.Replay(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("replay snapshot: %w", err)
	}
	logger.Info("replayed snapshot", "chunks", n, "store_id", storeID)

	writer := snapshot.NewWriter(mgr, s, logger)

	r := &resources{
		storeID:   storeID,
		store:     s,
		cache:     cache,
		blobs:     blobs,
		snapshots: mgr,
		writer:    writer,
	}

	if len(cfg.Eventbridge.Brokers) > 0 {
		pub, err := openPublisher(cfg.Eventbridge, logger)
		if err != nil {
			return nil, fmt.Errorf("open eventbridge publisher: %w", err)
		}
		s.Subscribe(pub)
		r.publisher = pub
	}

	return r, nil
}

func openPublisher(cfg config.EventbridgeConfig, logger *slog.Logger) (*eventbridge.Publisher, error) {
	ebCfg := eventbridge.Config{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		TLS:     cfg.TLS,
		Logger:  logger,
	}
	if cfg.SASLMechanism != "" {
		ebCfg.SASL = &eventbridge.SASLConfig{
			Mechanism: cfg.SASLMechanism,
			User:      cfg.SASLUser,
			Password:  cfg.SASLPassword,
		}
	}
	return eventbridge.New(ebCfg)
}

// close flushes and releases whatever resources were opened, logging
// but not failing on best-effort shutdown errors.
func (r *resources) close(logger *slog.Logger) {
	if r.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.publisher.Flush(ctx); err != nil {
			logger.Warn("flush publisher", "error", err)
		}
		if err := r.publisher.Close(); err != nil {
			logger.Warn("close publisher", "error", err)
		}
	}
}
