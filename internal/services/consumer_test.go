package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/devfolio/apiserver/internal/cache"
	"github.com/devfolio/apiserver/internal/mq"
	"github.com/devfolio/apiserver/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBrokerBackend collects published messages and replays them to a
// subscriber.
type fakeBrokerBackend struct {
	subscribedTo string
	messages     []mq.Message
	closed       bool
}

func (f *fakeBrokerBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	f.messages = append(f.messages, mq.Message{Data: data, Attributes: attrs})
	return "m-1", nil
}

func (f *fakeBrokerBackend) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	f.subscribedTo = channel
	for _, msg := range f.messages {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBrokerBackend) Close() error {
	f.closed = true
	return nil
}

func newConsumerTestCache(t *testing.T) *cache.ProjectCache {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	projectCache := cache.NewProjectCache(client, time.Minute)
	t.Cleanup(func() { _ = projectCache.Close() })
	return projectCache
}

func TestProjectEventConsumerInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	projectCache := newConsumerTestCache(t)
	projectCache.SetProject(ctx, types.Project{ID: "p-1", Title: "Portfolio"})

	data, err := json.Marshal(ProjectEvent{Action: "updated", ProjectID: "p-1"})
	require.NoError(t, err)

	backend := &fakeBrokerBackend{messages: []mq.Message{{ID: "m-1", Data: data}}}
	consumer := NewProjectEventConsumer(mq.New(backend), projectCache)
	require.NoError(t, consumer.Run(ctx))

	assert.Equal(t, mq.ProjectEventsChannel, backend.subscribedTo)
	_, ok := projectCache.GetProject(ctx, "p-1")
	assert.False(t, ok)
}

func TestProjectEventConsumerDropsBadEvents(t *testing.T) {
	ctx := context.Background()
	projectCache := newConsumerTestCache(t)
	projectCache.SetProject(ctx, types.Project{ID: "p-1", Title: "Portfolio"})

	backend := &fakeBrokerBackend{messages: []mq.Message{
		{ID: "m-1", Data: []byte("not-json")},
		{ID: "m-2", Data: []byte(`{"action":"updated"}`)},
	}}
	consumer := NewProjectEventConsumer(mq.New(backend), projectCache)
	require.NoError(t, consumer.Run(ctx))

	// Undecodable or incomplete events are dropped without touching the cache.
	_, ok := projectCache.GetProject(ctx, "p-1")
	assert.True(t, ok)
}

func TestProjectWritePropagatesToConsumerCache(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBrokerBackend{}
	queue := mq.New(backend)

	svc := NewProjectService(newFakeProjectRepo(), nil, queue)
	created, err := svc.Create(ctx, types.Project{Title: "Portfolio", Description: "My site"})
	require.NoError(t, err)

	// Another instance holds the project in its cache; replaying the
	// published event through its consumer drops the stale entry.
	replicaCache := newConsumerTestCache(t)
	replicaCache.SetProject(ctx, created)

	consumer := NewProjectEventConsumer(queue, replicaCache)
	require.NoError(t, consumer.Run(ctx))

	_, ok := replicaCache.GetProject(ctx, created.ID)
	assert.False(t, ok)
}
