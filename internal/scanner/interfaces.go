package scanner

import (
	"context"

	"github.com/samvad-hq/openshare-counts/pkg/publishers"
)

// EventPublisher publishes scan events downstream. *publishers.Fanout
// satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}
