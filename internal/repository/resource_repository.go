package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campushq/classroom-api/internal/models"
)

// ResourceRepository handles persistence of course resources.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

const resourceColumns = `id, course_code, title, description, kind, content, url, tags, topic, lecture_ids, contributor_id, contributor_role, access_level, active, created_at, updated_at`

// Create persists a new resource record.
func (r *ResourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	now := time.Now().UTC()
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = now
	}
	resource.UpdatedAt = now
	const query = `INSERT INTO resources (id, course_code, title, description, kind, content, url, tags, topic, lecture_ids, contributor_id, contributor_role, access_level, active, created_at, updated_at)
        VALUES (:id, :course_code, :title, :description, :kind, :content, :url, :tags, :topic, :lecture_ids, :contributor_id, :contributor_role, :access_level, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, resource); err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

// FindByID returns a resource by id. Soft-deleted rows remain addressable
// here for audit.
func (r *ResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	query := fmt.Sprintf(`SELECT %s FROM resources WHERE id = $1`, resourceColumns)
	var resource models.Resource
	if err := r.db.GetContext(ctx, &resource, query, id); err != nil {
		return nil, err
	}
	return &resource, nil
}

// FindByIDs returns the active resources matching the given ids.
func (r *ResourceRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM resources WHERE id = ANY($1) AND active = TRUE`, resourceColumns)
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find resources by ids: %w", err)
	}
	return resources, nil
}

// ListActiveByCourse returns the course's active resources ordered by id,
// which is stable within a course by construction of the sequence.
func (r *ResourceRepository) ListActiveByCourse(ctx context.Context, courseCode string) ([]models.Resource, error) {
	query := fmt.Sprintf(`SELECT %s FROM resources WHERE course_code = $1 AND active = TRUE ORDER BY id`, resourceColumns)
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, courseCode); err != nil {
		return nil, fmt.Errorf("list course resources: %w", err)
	}
	return resources, nil
}

// ListActiveByLecture returns the course's active resources associated with
// the given lecture.
func (r *ResourceRepository) ListActiveByLecture(ctx context.Context, courseCode, lectureID string) ([]models.Resource, error) {
	query := fmt.Sprintf(`SELECT %s FROM resources WHERE course_code = $1 AND active = TRUE AND $2 = ANY(lecture_ids) ORDER BY id`, resourceColumns)
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, courseCode, lectureID); err != nil {
		return nil, fmt.Errorf("list lecture resources: %w", err)
	}
	return resources, nil
}

// Update stores mutable resource fields and stamps updated_at.
func (r *ResourceRepository) Update(ctx context.Context, resource *models.Resource) error {
	resource.UpdatedAt = time.Now().UTC()
	const query = `UPDATE resources SET title = :title, description = :description, kind = :kind, content = :content,
        url = :url, tags = :tags, topic = :topic, lecture_ids = :lecture_ids, access_level = :access_level, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, resource); err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	return nil
}

// SoftDelete marks the resource inactive and stamps updated_at. The row is
// preserved for lookup by id.
func (r *ResourceRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	const query = `UPDATE resources SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, deletedAt); err != nil {
		return fmt.Errorf("soft delete resource: %w", err)
	}
	return nil
}

// Search filters the course's active resources. Filters combine
// conjunctively; absent filters are no-ops.
func (r *ResourceRepository) Search(ctx context.Context, courseCode string, filter models.ResourceFilter) ([]models.Resource, error) {
	conditions := []string{"course_code = $1", "active = TRUE"}
	args := []interface{}{courseCode}

	if filter.Query != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR content ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+filter.Query+"%")
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.Topic != "" {
		conditions = append(conditions, fmt.Sprintf("topic = $%d", len(args)+1))
		args = append(args, filter.Topic)
	}
	if len(filter.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags && $%d", len(args)+1))
		args = append(args, pq.Array(filter.Tags))
	}

	query := fmt.Sprintf(`SELECT %s FROM resources WHERE %s ORDER BY id`, resourceColumns, strings.Join(conditions, " AND "))
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, args...); err != nil {
		return nil, fmt.Errorf("search resources: %w", err)
	}
	return resources, nil
}
