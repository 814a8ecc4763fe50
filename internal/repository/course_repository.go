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

// CourseRepository provides database access for courses, lessons, materials,
// and purchases.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new instance of CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ListCourses returns active courses; includeInactive widens to all (admin).
func (r *CourseRepository) ListCourses(ctx context.Context, includeInactive bool) ([]models.Course, error) {
	query := `SELECT id, title, description, access_days, price_cents, is_active, created_at, updated_at FROM courses`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY title ASC`

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindCourseByID returns a course by identifier.
func (r *CourseRepository) FindCourseByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, description, access_days, price_cents, is_active, created_at, updated_at FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// CreateCourse inserts a new course.
func (r *CourseRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, title, description, access_days, price_cents, is_active, created_at, updated_at) VALUES (:id, :title, :description, :access_days, :price_cents, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// UpdateCourse updates mutable fields of a course.
func (r *CourseRepository) UpdateCourse(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, access_days = :access_days, price_cents = :price_cents, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// DeleteCourse removes a course and its children.
func (r *CourseRepository) DeleteCourse(ctx context.Context, id string) error {
	const query = `DELETE FROM courses WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// ListLessons returns the lessons of a course in display order.
func (r *CourseRepository) ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error) {
	const query = `SELECT id, course_id, title, video_url, position, created_at, updated_at FROM lessons WHERE course_id = $1 ORDER BY position ASC, created_at ASC`
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, courseID); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// FindLessonByID returns a lesson scoped to its course.
func (r *CourseRepository) FindLessonByID(ctx context.Context, courseID, lessonID string) (*models.Lesson, error) {
	const query = `SELECT id, course_id, title, video_url, position, created_at, updated_at FROM lessons WHERE id = $1 AND course_id = $2 LIMIT 1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, lessonID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lesson by id: %w", err)
	}
	return &lesson, nil
}

// CreateLesson inserts a new lesson.
func (r *CourseRepository) CreateLesson(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	const query = `INSERT INTO lessons (id, course_id, title, video_url, position, created_at, updated_at) VALUES (:id, :course_id, :title, :video_url, :position, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// UpdateLesson updates mutable fields of a lesson.
func (r *CourseRepository) UpdateLesson(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET title = :title, video_url = :video_url, position = :position, updated_at = :updated_at WHERE id = :id AND course_id = :course_id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// DeleteLesson removes a lesson from its course.
func (r *CourseRepository) DeleteLesson(ctx context.Context, courseID, lessonID string) error {
	const query = `DELETE FROM lessons WHERE id = $1 AND course_id = $2`
	if _, err := r.db.ExecContext(ctx, query, lessonID, courseID); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}

// ListMaterials returns the materials of a course, including those attached
// directly without a lesson.
func (r *CourseRepository) ListMaterials(ctx context.Context, courseID string) ([]models.Material, error) {
	const query = `SELECT id, course_id, lesson_id, title, url, created_at, updated_at FROM materials WHERE course_id = $1 ORDER BY created_at ASC`
	var materials []models.Material
	if err := r.db.SelectContext(ctx, &materials, query, courseID); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return materials, nil
}

// CreateMaterial inserts a new material.
func (r *CourseRepository) CreateMaterial(ctx context.Context, material *models.Material) error {
	if material.ID == "" {
		material.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if material.CreatedAt.IsZero() {
		material.CreatedAt = now
	}
	material.UpdatedAt = now

	const query = `INSERT INTO materials (id, course_id, lesson_id, title, url, created_at, updated_at) VALUES (:id, :course_id, :lesson_id, :title, :url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, material); err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// UpdateMaterial updates mutable fields of a material.
func (r *CourseRepository) UpdateMaterial(ctx context.Context, material *models.Material) error {
	material.UpdatedAt = time.Now().UTC()
	const query = `UPDATE materials SET lesson_id = :lesson_id, title = :title, url = :url, updated_at = :updated_at WHERE id = :id AND course_id = :course_id`
	if _, err := r.db.NamedExecContext(ctx, query, material); err != nil {
		return fmt.Errorf("update material: %w", err)
	}
	return nil
}

// DeleteMaterial removes a material from its course.
func (r *CourseRepository) DeleteMaterial(ctx context.Context, courseID, materialID string) error {
	const query = `DELETE FROM materials WHERE id = $1 AND course_id = $2`
	if _, err := r.db.ExecContext(ctx, query, materialID, courseID); err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	return nil
}

// FindPurchase returns the purchase row for a user and course.
func (r *CourseRepository) FindPurchase(ctx context.Context, userID, courseID string) (*models.CoursePurchase, error) {
	const query = `SELECT id, user_id, course_id, expires_at, active, created_at, updated_at FROM course_purchases WHERE user_id = $1 AND course_id = $2 LIMIT 1`
	var purchase models.CoursePurchase
	if err := r.db.GetContext(ctx, &purchase, query, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find purchase: %w", err)
	}
	return &purchase, nil
}

// UpsertPurchase grants or extends a course access window.
func (r *CourseRepository) UpsertPurchase(ctx context.Context, purchase *models.CoursePurchase) error {
	if purchase.ID == "" {
		purchase.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = now
	}
	purchase.UpdatedAt = now

	const query = `INSERT INTO course_purchases (id, user_id, course_id, expires_at, active, created_at, updated_at)
		VALUES (:id, :user_id, :course_id, :expires_at, :active, :created_at, :updated_at)
		ON CONFLICT (user_id, course_id) DO UPDATE SET expires_at = EXCLUDED.expires_at, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, purchase); err != nil {
		return fmt.Errorf("upsert purchase: %w", err)
	}
	return nil
}

// ListPurchasesForUser returns a user's purchases, newest first.
func (r *CourseRepository) ListPurchasesForUser(ctx context.Context, userID string) ([]models.CoursePurchase, error) {
	const query = `SELECT id, user_id, course_id, expires_at, active, created_at, updated_at FROM course_purchases WHERE user_id = $1 ORDER BY created_at DESC`
	var purchases []models.CoursePurchase
	if err := r.db.SelectContext(ctx, &purchases, query, userID); err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, nil
}

// DeactivateExpiredPurchases flips active off for purchases past their
// window and returns how many were touched.
func (r *CourseRepository) DeactivateExpiredPurchases(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE course_purchases SET active = FALSE, updated_at = $1 WHERE active = TRUE AND expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired purchases: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate expired purchases: %w", err)
	}
	return affected, nil
}
