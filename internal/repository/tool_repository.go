package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/e-projects/platform-api/internal/models"
)

const toolColumns = `id, name, category, access_level, link_type, link, custom_html, restricted_cpfs, average_rating, total_ratings, created_at, updated_at`

// ToolRepository provides database access for the tool catalog and ratings.
type ToolRepository struct {
	db *sqlx.DB
}

// NewToolRepository creates a new instance of ToolRepository.
func NewToolRepository(db *sqlx.DB) *ToolRepository {
	return &ToolRepository{db: db}
}

// List returns tools, optionally filtered by category, ordered by name.
func (r *ToolRepository) List(ctx context.Context, category string) ([]models.Tool, error) {
	query := fmt.Sprintf(`SELECT %s FROM tools`, toolColumns)
	var args []interface{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY name ASC`

	var tools []models.Tool
	if err := r.db.SelectContext(ctx, &tools, query, args...); err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return tools, nil
}

// FindByID returns a tool by identifier.
func (r *ToolRepository) FindByID(ctx context.Context, id string) (*models.Tool, error) {
	query := fmt.Sprintf(`SELECT %s FROM tools WHERE id = $1 LIMIT 1`, toolColumns)
	var tool models.Tool
	if err := r.db.GetContext(ctx, &tool, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tool by id: %w", err)
	}
	return &tool, nil
}

// Create inserts a new tool.
func (r *ToolRepository) Create(ctx context.Context, tool *models.Tool) error {
	if tool.ID == "" {
		tool.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tool.CreatedAt.IsZero() {
		tool.CreatedAt = now
	}
	tool.UpdatedAt = now

	const query = `INSERT INTO tools (id, name, category, access_level, link_type, link, custom_html, restricted_cpfs, average_rating, total_ratings, created_at, updated_at) VALUES (:id, :name, :category, :access_level, :link_type, :link, :custom_html, :restricted_cpfs, :average_rating, :total_ratings, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tool); err != nil {
		return fmt.Errorf("create tool: %w", err)
	}
	return nil
}

// Update updates mutable fields of a tool. Rating aggregates are only
// changed by UpsertRating.
func (r *ToolRepository) Update(ctx context.Context, tool *models.Tool) error {
	tool.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tools SET name = :name, category = :category, access_level = :access_level, link_type = :link_type, link = :link, custom_html = :custom_html, restricted_cpfs = :restricted_cpfs, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, tool); err != nil {
		return fmt.Errorf("update tool: %w", err)
	}
	return nil
}

// Delete removes a tool and its ratings.
func (r *ToolRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tools WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}
	return nil
}

// UpsertRating writes a user's rating (insert or edit) and recomputes the
// tool's aggregates in the same transaction.
func (r *ToolRepository) UpsertRating(ctx context.Context, rating *models.ToolRating) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = now
	}
	rating.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rating tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const upsert = `INSERT INTO tool_ratings (id, tool_id, user_id, rating, comment, created_at, updated_at)
		VALUES (:id, :tool_id, :user_id, :rating, :comment, :created_at, :updated_at)
		ON CONFLICT (tool_id, user_id) DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at`
	if _, err := tx.NamedExecContext(ctx, upsert, rating); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}

	const aggregate = `UPDATE tools SET
			average_rating = COALESCE((SELECT AVG(rating)::float8 FROM tool_ratings WHERE tool_id = $1), 0),
			total_ratings = (SELECT COUNT(*) FROM tool_ratings WHERE tool_id = $1),
			updated_at = $2
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, aggregate, rating.ToolID, now); err != nil {
		return fmt.Errorf("recompute rating aggregates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rating tx: %w", err)
	}
	return nil
}

// ListRatings returns all ratings for a tool, newest first.
func (r *ToolRepository) ListRatings(ctx context.Context, toolID string) ([]models.ToolRating, error) {
	const query = `SELECT id, tool_id, user_id, rating, comment, created_at, updated_at FROM tool_ratings WHERE tool_id = $1 ORDER BY updated_at DESC`
	var ratings []models.ToolRating
	if err := r.db.SelectContext(ctx, &ratings, query, toolID); err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return ratings, nil
}
