package metrics

import (
	"strconv"
	"time"

	"github.com/cuemby/rangedb/pkg/datastore"
)

// StatsSource is anything that can report the aggregated Stats of every
// local datastore it owns, indexed by local offset; pkg/client.Client
// satisfies this. Collector depends on the interface rather than the
// concrete client to avoid an import cycle (pkg/client already imports
// pkg/metrics).
type StatsSource interface {
	GetStats() []datastore.Stats
}

// Collector periodically samples a StatsSource into the Stats* gauges,
// for values that are cheaper to poll than to update inline on every
// Put/Get.
type Collector struct {
	source   StatsSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector returns a Collector that samples source every 15 seconds,
// comfortably inside the usual Prometheus scrape interval.
func NewCollector(source StatsSource) *Collector {
	return &Collector{source: source, interval: 15 * time.Second, stopCh: make(chan struct{})}
}

// Start begins sampling in a background goroutine, collecting immediately
// before entering the ticker loop.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop ends the sampling loop. Calling Stop more than once panics, the
// same as closing any channel twice.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for offset, stats := range c.source.GetStats() {
		label := strconv.Itoa(offset)
		StatsNumPuts.WithLabelValues(label).Set(float64(stats.NumPuts))
		StatsNumGets.WithLabelValues(label).Set(float64(stats.NumGets))
	}
}
