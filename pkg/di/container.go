// Package di provides dependency injection container
package di

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/itm/eventstore/pkg/eventstore"
	"github.com/itm/eventstore/pkg/metrics"
)

// StoreOpener opens an event store from a configuration
type StoreOpener func(cfg eventstore.Config) (*eventstore.Store, error)

// Container holds all the dependencies for the application
type Container struct {
	storeOpener StoreOpener
	registerer  prometheus.Registerer
	collector   *metrics.Collector
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		storeOpener: eventstore.Open,
		registerer:  prometheus.NewRegistry(),
	}
}

// GetStoreOpener returns the store opener
func (c *Container) GetStoreOpener() StoreOpener {
	return c.storeOpener
}

// SetStoreOpener allows overriding the store opener (for testing)
func (c *Container) SetStoreOpener(opener StoreOpener) {
	c.storeOpener = opener
}

// GetMetrics returns the metrics collector, creating it on first use
func (c *Container) GetMetrics() *metrics.Collector {
	if c.collector == nil {
		c.collector = metrics.NewCollector(c.registerer)
	}
	return c.collector
}

// GetRegisterer returns the Prometheus registerer metrics are created on
func (c *Container) GetRegisterer() prometheus.Registerer {
	return c.registerer
}

// SetRegisterer allows overriding the Prometheus registerer. It must be
// called before GetMetrics.
func (c *Container) SetRegisterer(reg prometheus.Registerer) {
	c.registerer = reg
	c.collector = nil
}

// OpenStore opens a store with the container's metrics collector attached
func (c *Container) OpenStore(cfg eventstore.Config) (*eventstore.Store, error) {
	if cfg.Metrics == nil {
		cfg.Metrics = c.GetMetrics()
	}
	return c.storeOpener(cfg)
}
