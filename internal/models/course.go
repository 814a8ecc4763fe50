package models

import "time"

// Course is the root of the course/lesson/material hierarchy.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	AccessDays  int       `db:"access_days" json:"access_days"`
	PriceCents  int       `db:"price_cents" json:"price_cents"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Lesson belongs to a course.
type Lesson struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	VideoURL  *string   `db:"video_url" json:"video_url,omitempty"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Material attaches to a lesson or, when LessonID is nil, directly to the
// course.
type Material struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	LessonID  *string   `db:"lesson_id" json:"lesson_id,omitempty"`
	Title     string    `db:"title" json:"title"`
	URL       string    `db:"url" json:"url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CourseContent bundles a course with its lessons and materials for users
// holding a valid access window.
type CourseContent struct {
	Course    Course     `json:"course"`
	Lessons   []Lesson   `json:"lessons"`
	Materials []Material `json:"materials"`
}

// CourseCreateRequest is the admin payload for adding a course.
type CourseCreateRequest struct {
	Title       string `json:"title" validate:"required,min=2,max=160"`
	Description string `json:"description" validate:"max=2000"`
	AccessDays  int    `json:"access_days" validate:"required,min=1"`
	PriceCents  int    `json:"price_cents" validate:"min=0"`
}

// CourseUpdateRequest is the admin payload for editing a course.
type CourseUpdateRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=2,max=160"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	AccessDays  *int    `json:"access_days,omitempty" validate:"omitempty,min=1"`
	PriceCents  *int    `json:"price_cents,omitempty" validate:"omitempty,min=0"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// LessonCreateRequest is the admin payload for adding a lesson.
type LessonCreateRequest struct {
	Title    string  `json:"title" validate:"required,min=2,max=160"`
	VideoURL *string `json:"video_url,omitempty" validate:"omitempty,url"`
	Position int     `json:"position" validate:"min=0"`
}

// LessonUpdateRequest is the admin payload for editing a lesson.
type LessonUpdateRequest struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,min=2,max=160"`
	VideoURL *string `json:"video_url,omitempty" validate:"omitempty,url"`
	Position *int    `json:"position,omitempty" validate:"omitempty,min=0"`
}

// MaterialCreateRequest is the admin payload for attaching a material.
type MaterialCreateRequest struct {
	LessonID *string `json:"lesson_id,omitempty"`
	Title    string  `json:"title" validate:"required,min=2,max=160"`
	URL      string  `json:"url" validate:"required,url"`
}

// MaterialUpdateRequest is the admin payload for editing a material.
type MaterialUpdateRequest struct {
	LessonID *string `json:"lesson_id,omitempty"`
	Title    *string `json:"title,omitempty" validate:"omitempty,min=2,max=160"`
	URL      *string `json:"url,omitempty" validate:"omitempty,url"`
}

// GrantPurchaseRequest is the admin payload for granting course access
// manually. Days defaults to the course's access window when zero.
type GrantPurchaseRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Days   int    `json:"days" validate:"min=0"`
}

// CoursePurchase grants a fixed-duration access window to a course.
type CoursePurchase struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Valid reports whether the purchase currently grants access.
func (p *CoursePurchase) Valid(now time.Time) bool {
	return p.Active && now.Before(p.ExpiresAt)
}
