package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/devfolio/apiserver/internal/cache"
	"github.com/devfolio/apiserver/internal/mq"
	"github.com/devfolio/apiserver/types"
	"github.com/google/uuid"
)

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Project, int, error)
	Get(ctx context.Context, id string) (types.Project, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
	Update(ctx context.Context, project types.Project) (types.Project, error)
	Delete(ctx context.Context, id string) error
}

// EventPublisher sends project change events to a broker. *mq.MQ satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ProjectEvent is the payload published on every project write.
type ProjectEvent struct {
	Action    string `json:"action"`
	ProjectID string `json:"project_id"`
}

// ProjectService encapsulates gallery use-cases. The cache and publisher
// are both optional; a nil cache disables caching and a nil publisher
// disables events.
type ProjectService struct {
	repo      ProjectRepository
	cache     *cache.ProjectCache
	publisher EventPublisher
}

func NewProjectService(repo ProjectRepository, projectCache *cache.ProjectCache, publisher EventPublisher) *ProjectService {
	return &ProjectService{repo: repo, cache: projectCache, publisher: publisher}
}

// List returns a page of projects. The first page with default paging is
// served from the cache when warm.
func (s *ProjectService) List(ctx context.Context, offset, limit int) ([]types.Project, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	firstPage := offset == 0
	if firstPage {
		if cached, ok := s.cache.GetList(ctx); ok && len(cached.Items) >= limit {
			return cached.Items[:limit], cached.Total, nil
		}
	}

	items, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	if firstPage {
		s.cache.SetList(ctx, cache.CachedList{Items: items, Total: total})
	}
	return items, total, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (types.Project, error) {
	if cached, ok := s.cache.GetProject(ctx, id); ok {
		return cached, nil
	}

	project, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Project{}, err
	}
	s.cache.SetProject(ctx, project)
	return project, nil
}

func (s *ProjectService) Create(ctx context.Context, project types.Project) (types.Project, error) {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if len(project.ImageURLs) > types.MaxProjectImages {
		project.ImageURLs = project.ImageURLs[:types.MaxProjectImages]
	}

	created, err := s.repo.Create(ctx, project)
	if err != nil {
		return types.Project{}, err
	}

	s.cache.Invalidate(ctx, created.ID)
	s.publishEvent(ctx, "created", created.ID)
	return created, nil
}

func (s *ProjectService) Update(ctx context.Context, project types.Project) (types.Project, error) {
	if len(project.ImageURLs) > types.MaxProjectImages {
		project.ImageURLs = project.ImageURLs[:types.MaxProjectImages]
	}

	updated, err := s.repo.Update(ctx, project)
	if err != nil {
		return types.Project{}, err
	}

	s.cache.Invalidate(ctx, updated.ID)
	s.publishEvent(ctx, "updated", updated.ID)
	return updated, nil
}

func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, id)
	s.publishEvent(ctx, "deleted", id)
	return nil
}

// publishEvent emits a best-effort change notification. The write has
// already committed, so a broker failure must not fail the request.
func (s *ProjectService) publishEvent(ctx context.Context, action, projectID string) {
	if s.publisher == nil {
		return
	}

	data, err := json.Marshal(ProjectEvent{Action: action, ProjectID: projectID})
	if err != nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, mq.ProjectEventsChannel, data, map[string]string{"action": action}); err != nil {
		log.Printf("project event publish failed: %v", err)
	}
}
