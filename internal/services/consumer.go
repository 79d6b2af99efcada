package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/devfolio/apiserver/internal/cache"
	"github.com/devfolio/apiserver/internal/mq"
)

// EventSubscriber consumes project change events from a broker. *mq.MQ
// satisfies it.
type EventSubscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// ProjectEventConsumer applies project change events published by other
// instances: each event drops the affected cache entries, so a replica's
// staleness is bounded by broker latency instead of the cache TTL.
type ProjectEventConsumer struct {
	subscriber EventSubscriber
	cache      *cache.ProjectCache
}

func NewProjectEventConsumer(subscriber EventSubscriber, projectCache *cache.ProjectCache) *ProjectEventConsumer {
	return &ProjectEventConsumer{subscriber: subscriber, cache: projectCache}
}

// Run consumes project events until the context is cancelled.
func (c *ProjectEventConsumer) Run(ctx context.Context) error {
	return c.subscriber.Subscribe(ctx, mq.ProjectEventsChannel, c.handle)
}

func (c *ProjectEventConsumer) handle(ctx context.Context, msg mq.Message) error {
	var event ProjectEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Redelivery cannot fix a malformed payload; drop it.
		log.Printf("dropping malformed project event %s: %v", msg.ID, err)
		return nil
	}
	if event.ProjectID == "" {
		log.Printf("dropping project event %s without a project id", msg.ID)
		return nil
	}

	c.cache.Invalidate(ctx, event.ProjectID)
	log.Printf("project %s %s: cache entries invalidated", event.ProjectID, event.Action)
	return nil
}
