// Package metrics exposes a hand-formatted Prometheus text endpoint
// over the running store, query cache, and event bridge, written with
// plain fmt.Fprintf rather than through a client library.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rerun-io/rerun-sub038/internal/querycache"
	"github.com/rerun-io/rerun-sub038/internal/store"
)

// CacheStater is implemented by querycache.Cache; kept as an
// interface so Handler does not require a cache to be present.
type CacheStater interface {
	Stats() querycache.Stats
}

// PublisherStater is implemented by eventbridge.Publisher.
type PublisherStater interface {
	Failed() uint64
}

// Handler serves a Prometheus text-format exposition of a running
// store's state. Every field is optional except Store; a nil Cache or
// Publisher simply omits that section.
type Handler struct {
	Store     *store.Store
	Cache     CacheStater
	Publisher PublisherStater
	StartTime time.Time
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	h.write(w)
}

func (h *Handler) write(w http.ResponseWriter) {
	fmt.Fprintf(w, "# HELP chronostore_up Whether the store is running.\n")
	fmt.Fprintf(w, "# TYPE chronostore_up gauge\n")
	fmt.Fprintf(w, "chronostore_up 1\n")

	if !h.StartTime.IsZero() {
		fmt.Fprintf(w, "# HELP chronostore_uptime_seconds Seconds since store start.\n")
		fmt.Fprintf(w, "# TYPE chronostore_uptime_seconds gauge\n")
		fmt.Fprintf(w, "chronostore_uptime_seconds %.0f\n", time.Since(h.StartTime).Seconds())
	}

	h.writeStoreMetrics(w)

	if h.Cache != nil {
		h.writeCacheMetrics(w)
	}
	if h.Publisher != nil {
		h.writePublisherMetrics(w)
	}
}

func (h *Handler) writeStoreMetrics(w http.ResponseWriter) {
	fmt.Fprintf(w, "# HELP chronostore_generation Current store generation (monotonic write counter).\n")
	fmt.Fprintf(w, "# TYPE chronostore_generation counter\n")
	fmt.Fprintf(w, "chronostore_generation %d\n", h.Store.Generation())

	entities := h.Store.Entities()
	fmt.Fprintf(w, "# HELP chronostore_entities_total Distinct entities known to the store.\n")
	fmt.Fprintf(w, "# TYPE chronostore_entities_total gauge\n")
	fmt.Fprintf(w, "chronostore_entities_total %d\n", len(entities))
}

func (h *Handler) writeCacheMetrics(w http.ResponseWriter) {
	stats := h.Cache.Stats()

	fmt.Fprintf(w, "# HELP chronostore_querycache_keys Distinct cached query keys.\n")
	fmt.Fprintf(w, "# TYPE chronostore_querycache_keys gauge\n")
	fmt.Fprintf(w, "chronostore_querycache_keys %d\n", stats.Keys)

	fmt.Fprintf(w, "# HELP chronostore_querycache_hits_total Query cache hits.\n")
	fmt.Fprintf(w, "# TYPE chronostore_querycache_hits_total counter\n")
	fmt.Fprintf(w, "chronostore_querycache_hits_total %d\n", stats.Hits)

	fmt.Fprintf(w, "# HELP chronostore_querycache_misses_total Query cache misses.\n")
	fmt.Fprintf(w, "# TYPE chronostore_querycache_misses_total counter\n")
	fmt.Fprintf(w, "chronostore_querycache_misses_total %d\n", stats.Misses)

	fmt.Fprintf(w, "# HELP chronostore_querycache_sweeps_total Invalidation sweeps run.\n")
	fmt.Fprintf(w, "# TYPE chronostore_querycache_sweeps_total counter\n")
	fmt.Fprintf(w, "chronostore_querycache_sweeps_total %d\n", stats.Sweeps)
}

func (h *Handler) writePublisherMetrics(w http.ResponseWriter) {
	fmt.Fprintf(w, "# HELP chronostore_eventbridge_publish_failures_total Events that failed to publish.\n")
	fmt.Fprintf(w, "# TYPE chronostore_eventbridge_publish_failures_total counter\n")
	fmt.Fprintf(w, "chronostore_eventbridge_publish_failures_total %d\n", h.Publisher.Failed())
}
