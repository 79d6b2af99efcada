package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devfolio/apiserver/types"
)

// decodeJSONColumn unmarshals a JSONB column into dst. Empty input is left
// as the zero value.
func decodeJSONColumn(column string, data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", column, err)
	}
	return nil
}

// ProjectRepository handles persistence for projects.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) List(ctx context.Context, offset, limit int) ([]types.Project, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM projects`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT id, title, description, image_urls, tech_stack, live_url, repo_url, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC, id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0, limit)
	for rows.Next() {
		var project types.Project
		var imagesJSON, stackJSON []byte
		if err := rows.Scan(
			&project.ID,
			&project.Title,
			&project.Description,
			&imagesJSON,
			&stackJSON,
			&project.LiveURL,
			&project.RepoURL,
			&project.CreatedAt,
			&project.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}

		if err := decodeJSONColumn("image_urls", imagesJSON, &project.ImageURLs); err != nil {
			return nil, 0, err
		}
		if err := decodeJSONColumn("tech_stack", stackJSON, &project.TechStack); err != nil {
			return nil, 0, err
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return projects, total, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id string) (types.Project, error) {
	const query = `
		SELECT id, title, description, image_urls, tech_stack, live_url, repo_url, created_at, updated_at
		FROM projects
		WHERE id = $1`
	var project types.Project
	var imagesJSON, stackJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Title,
		&project.Description,
		&imagesJSON,
		&stackJSON,
		&project.LiveURL,
		&project.RepoURL,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}

	if err := decodeJSONColumn("image_urls", imagesJSON, &project.ImageURLs); err != nil {
		return types.Project{}, err
	}
	if err := decodeJSONColumn("tech_stack", stackJSON, &project.TechStack); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	imagesJSON, err := json.Marshal(project.ImageURLs)
	if err != nil {
		return types.Project{}, err
	}
	stackJSON, err := json.Marshal(project.TechStack)
	if err != nil {
		return types.Project{}, err
	}

	const query = `
		INSERT INTO projects (id, title, description, image_urls, tech_stack, live_url, repo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		project.ID,
		project.Title,
		project.Description,
		imagesJSON,
		stackJSON,
		project.LiveURL,
		project.RepoURL,
		project.CreatedAt,
		project.UpdatedAt,
	); err != nil {
		return types.Project{}, err
	}

	return project, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project types.Project) (types.Project, error) {
	project.UpdatedAt = time.Now()

	imagesJSON, err := json.Marshal(project.ImageURLs)
	if err != nil {
		return types.Project{}, err
	}
	stackJSON, err := json.Marshal(project.TechStack)
	if err != nil {
		return types.Project{}, err
	}

	const query = `
		UPDATE projects
		SET title = $1,
			description = $2,
			image_urls = $3,
			tech_stack = $4,
			live_url = $5,
			repo_url = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		project.Title,
		project.Description,
		imagesJSON,
		stackJSON,
		project.LiveURL,
		project.RepoURL,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return types.Project{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Project{}, err
	}
	if affected == 0 {
		return types.Project{}, ErrNotFound
	}

	return project, nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM projects WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
