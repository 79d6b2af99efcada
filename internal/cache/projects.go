// Package cache provides an optional redis read cache for the public
// project gallery. The database stays authoritative; cache misses and
// redis failures both fall through to the store.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/devfolio/apiserver/types"
	"github.com/redis/go-redis/v9"
)

const (
	projectKeyPrefix = "project:"
	listKey          = "projects:first-page"
)

// ProjectCache caches individual projects and the first gallery page.
// A nil *ProjectCache is valid and disables caching.
type ProjectCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// CachedList is the cached form of the first gallery page.
type CachedList struct {
	Items []types.Project `json:"items"`
	Total int             `json:"total"`
}

func NewProjectCache(client *redis.Client, ttl time.Duration) *ProjectCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProjectCache{redis: client, ttl: ttl}
}

// GetProject returns the cached project and whether it was present.
func (c *ProjectCache) GetProject(ctx context.Context, id string) (types.Project, bool) {
	if c == nil {
		return types.Project{}, false
	}
	raw, err := c.redis.Get(ctx, projectKeyPrefix+id).Bytes()
	if err != nil {
		return types.Project{}, false
	}
	var project types.Project
	if err := json.Unmarshal(raw, &project); err != nil {
		return types.Project{}, false
	}
	return project, true
}

func (c *ProjectCache) SetProject(ctx context.Context, project types.Project) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(project)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, projectKeyPrefix+project.ID, raw, c.ttl).Err()
}

// GetList returns the cached first page and whether it was present.
func (c *ProjectCache) GetList(ctx context.Context) (CachedList, bool) {
	if c == nil {
		return CachedList{}, false
	}
	raw, err := c.redis.Get(ctx, listKey).Bytes()
	if err != nil {
		return CachedList{}, false
	}
	var list CachedList
	if err := json.Unmarshal(raw, &list); err != nil {
		return CachedList{}, false
	}
	return list, true
}

func (c *ProjectCache) SetList(ctx context.Context, list CachedList) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, listKey, raw, c.ttl).Err()
}

// Invalidate drops the cached project and the cached first page. Called on
// every project write.
func (c *ProjectCache) Invalidate(ctx context.Context, id string) {
	if c == nil {
		return
	}
	_ = c.redis.Del(ctx, projectKeyPrefix+id, listKey).Err()
}

// Close releases the underlying redis client.
func (c *ProjectCache) Close() error {
	if c == nil {
		return nil
	}
	return c.redis.Close()
}
