package app

import (
	"context"
	"fmt"

	"github.com/samvad-hq/openshare-counts/internal/config"
	"github.com/samvad-hq/openshare-counts/internal/logger"
	"github.com/samvad-hq/openshare-counts/pkg/counter"
	"github.com/samvad-hq/openshare-counts/pkg/publishers"
)

// Counter resolves individual count specifications against the configured
// providers and cache.
type Counter struct {
	rt *runtime
}

// NewCounter builds a one-shot counting runtime.
func NewCounter(ctx context.Context, cfg *config.Config, log logger.Logger) (*Counter, error) {
	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &Counter{rt: rt}, nil
}

// Count resolves spec for url. sink, when non-nil, receives every value the
// resolver writes, including a cached value painted ahead of the fetch.
func (c *Counter) Count(ctx context.Context, spec, url string, sink counter.Sink) (counter.Result, error) {
	if c == nil || c.rt == nil {
		return counter.Result{}, fmt.Errorf("counter is not initialized")
	}

	res, err := counter.New(c.rt.registry, spec, url, c.rt.counterOptions()...)
	if err != nil {
		return counter.Result{}, err
	}
	result, err := res.Count(ctx, sink)
	if err != nil {
		return result, err
	}

	evt := publishers.NewCountedEvent(result.Spec, result.URL, result.Total, result.FailedIDs(), result.Stale())
	if _, perr := c.rt.fanout.Publish(ctx, evt); perr != nil {
		c.rt.log.ErrorObj("event publish failed", "publish_error", map[string]any{
			"event_id": evt.ID,
			"error":    perr.Error(),
		})
	}
	return result, nil
}

// Providers lists the enabled provider identifiers.
func (c *Counter) Providers() []string {
	if c == nil || c.rt == nil {
		return nil
	}
	return c.rt.registry.IDs()
}

// Close releases runtime resources.
func (c *Counter) Close() error {
	if c == nil {
		return nil
	}
	return c.rt.Close()
}
