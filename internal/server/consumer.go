package server

import (
	"context"
	"errors"

	"github.com/devfolio/apiserver/config"
	"github.com/devfolio/apiserver/internal/cache"
	"github.com/devfolio/apiserver/internal/mq"
	"github.com/devfolio/apiserver/internal/services"
)

// Consumer runs the project event worker: it subscribes to the project
// events channel and keeps the redis cache in step with writes made by
// other instances.
type Consumer struct {
	queue  *mq.MQ
	cache  *cache.ProjectCache
	worker *services.ProjectEventConsumer
}

// NewConsumer wires the event worker from config. A broker backend is
// required; the cache is optional.
func NewConsumer(ctx context.Context, cfg config.Config) (*Consumer, error) {
	queue, err := newEventQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if queue == nil {
		return nil, errors.New("MQ_BACKEND is required to run the consumer")
	}

	projectCache, err := newProjectCache(ctx, cfg)
	if err != nil {
		_ = queue.Close()
		return nil, err
	}

	return &Consumer{
		queue:  queue,
		cache:  projectCache,
		worker: services.NewProjectEventConsumer(queue, projectCache),
	}, nil
}

// Run consumes project events until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.worker.Run(ctx)
}

// Close releases the broker connection and the cache client.
func (c *Consumer) Close() error {
	err := c.queue.Close()
	_ = c.cache.Close()
	return err
}
