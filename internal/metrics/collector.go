package metrics

import (
	"time"

	"kiwi/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current library statistics
type Stats struct {
	TotalItems  int
	ItemsByType map[string]int
	FolderLinks int
	TagLinks    int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	for mediaType, count := range stats.ItemsByType {
		LibraryItemsTotal.WithLabelValues(mediaType).Set(float64(count))
	}
	LibraryFolderLinks.Set(float64(stats.FolderLinks))
	LibraryTagLinks.Set(float64(stats.TagLinks))

	logging.Debug("Metrics collected: items=%d, folder links=%d, tag links=%d",
		stats.TotalItems, stats.FolderLinks, stats.TagLinks)
}
