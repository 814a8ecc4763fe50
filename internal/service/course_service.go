package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
)

type courseRepository interface {
	ListCourses(ctx context.Context, includeInactive bool) ([]models.Course, error)
	FindCourseByID(ctx context.Context, id string) (*models.Course, error)
	CreateCourse(ctx context.Context, course *models.Course) error
	UpdateCourse(ctx context.Context, course *models.Course) error
	DeleteCourse(ctx context.Context, id string) error
	ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error)
	FindLessonByID(ctx context.Context, courseID, lessonID string) (*models.Lesson, error)
	CreateLesson(ctx context.Context, lesson *models.Lesson) error
	UpdateLesson(ctx context.Context, lesson *models.Lesson) error
	DeleteLesson(ctx context.Context, courseID, lessonID string) error
	ListMaterials(ctx context.Context, courseID string) ([]models.Material, error)
	CreateMaterial(ctx context.Context, material *models.Material) error
	UpdateMaterial(ctx context.Context, material *models.Material) error
	DeleteMaterial(ctx context.Context, courseID, materialID string) error
	FindPurchase(ctx context.Context, userID, courseID string) (*models.CoursePurchase, error)
	UpsertPurchase(ctx context.Context, purchase *models.CoursePurchase) error
	ListPurchasesForUser(ctx context.Context, userID string) ([]models.CoursePurchase, error)
}

// CourseService serves the course catalog and its purchase-gated content.
// Course metadata is public to any authenticated user; lessons and materials
// require an unexpired purchase (or admin).
type CourseService struct {
	courses   courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService instance.
func NewCourseService(courses courseRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{courses: courses, validator: validate, logger: logger}
}

// ListCourses returns the catalog. Admins also see inactive courses.
func (s *CourseService) ListCourses(ctx context.Context, includeInactive bool) ([]models.Course, error) {
	courses, err := s.courses.ListCourses(ctx, includeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// GetCourse returns course metadata.
func (s *CourseService) GetCourse(ctx context.Context, id string, includeInactive bool) (*models.Course, error) {
	course, err := s.findCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if !course.IsActive && !includeInactive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}

// GetContent returns the lessons and materials of a course for a caller with
// a valid access window.
func (s *CourseService) GetContent(ctx context.Context, user *models.UserInfo, courseID string) (*models.CourseContent, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if !user.Access.IsAdmin {
		if !course.IsActive {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		purchase, err := s.courses.FindPurchase(ctx, user.ID, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "course access requires a purchase")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch purchase")
		}
		if !purchase.Valid(time.Now().UTC()) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "course access has expired")
		}
	}

	lessons, err := s.courses.ListLessons(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	materials, err := s.courses.ListMaterials(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}

	return &models.CourseContent{Course: *course, Lessons: lessons, Materials: materials}, nil
}

// ListMyPurchases returns the caller's purchases.
func (s *CourseService) ListMyPurchases(ctx context.Context, userID string) ([]models.CoursePurchase, error) {
	purchases, err := s.courses.ListPurchasesForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list purchases")
	}
	return purchases, nil
}

// CreateCourse adds a course (admin only).
func (s *CourseService) CreateCourse(ctx context.Context, req models.CourseCreateRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		AccessDays:  req.AccessDays,
		PriceCents:  req.PriceCents,
		IsActive:    true,
	}
	if err := s.courses.CreateCourse(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// UpdateCourse edits a course (admin only).
func (s *CourseService) UpdateCourse(ctx context.Context, id string, req models.CourseUpdateRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.findCourse(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.AccessDays != nil {
		course.AccessDays = *req.AccessDays
	}
	if req.PriceCents != nil {
		course.PriceCents = *req.PriceCents
	}
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}

	if err := s.courses.UpdateCourse(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// DeleteCourse removes a course and its children (admin only).
func (s *CourseService) DeleteCourse(ctx context.Context, id string) error {
	if _, err := s.findCourse(ctx, id); err != nil {
		return err
	}
	if err := s.courses.DeleteCourse(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// CreateLesson adds a lesson to a course (admin only).
func (s *CourseService) CreateLesson(ctx context.Context, courseID string, req models.LessonCreateRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if _, err := s.findCourse(ctx, courseID); err != nil {
		return nil, err
	}

	lesson := &models.Lesson{
		CourseID: courseID,
		Title:    req.Title,
		VideoURL: req.VideoURL,
		Position: req.Position,
	}
	if err := s.courses.CreateLesson(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	return lesson, nil
}

// UpdateLesson edits a lesson (admin only).
func (s *CourseService) UpdateLesson(ctx context.Context, courseID, lessonID string, req models.LessonUpdateRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	lesson, err := s.courses.FindLessonByID(ctx, courseID, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch lesson")
	}

	if req.Title != nil {
		lesson.Title = *req.Title
	}
	if req.VideoURL != nil {
		lesson.VideoURL = req.VideoURL
	}
	if req.Position != nil {
		lesson.Position = *req.Position
	}

	if err := s.courses.UpdateLesson(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	return lesson, nil
}

// DeleteLesson removes a lesson (admin only).
func (s *CourseService) DeleteLesson(ctx context.Context, courseID, lessonID string) error {
	if _, err := s.courses.FindLessonByID(ctx, courseID, lessonID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch lesson")
	}
	if err := s.courses.DeleteLesson(ctx, courseID, lessonID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	return nil
}

// CreateMaterial attaches a material to a course or one of its lessons
// (admin only).
func (s *CourseService) CreateMaterial(ctx context.Context, courseID string, req models.MaterialCreateRequest) (*models.Material, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}
	if _, err := s.findCourse(ctx, courseID); err != nil {
		return nil, err
	}
	if req.LessonID != nil {
		if _, err := s.courses.FindLessonByID(ctx, courseID, *req.LessonID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "lesson does not belong to course")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch lesson")
		}
	}

	material := &models.Material{
		CourseID: courseID,
		LessonID: req.LessonID,
		Title:    req.Title,
		URL:      req.URL,
	}
	if err := s.courses.CreateMaterial(ctx, material); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create material")
	}
	return material, nil
}

// UpdateMaterial edits a material (admin only).
func (s *CourseService) UpdateMaterial(ctx context.Context, courseID, materialID string, req models.MaterialUpdateRequest) (*models.Material, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}

	materials, err := s.courses.ListMaterials(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	var material *models.Material
	for i := range materials {
		if materials[i].ID == materialID {
			material = &materials[i]
			break
		}
	}
	if material == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
	}

	if req.LessonID != nil {
		if _, err := s.courses.FindLessonByID(ctx, courseID, *req.LessonID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "lesson does not belong to course")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch lesson")
		}
		material.LessonID = req.LessonID
	}
	if req.Title != nil {
		material.Title = *req.Title
	}
	if req.URL != nil {
		material.URL = *req.URL
	}

	if err := s.courses.UpdateMaterial(ctx, material); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update material")
	}
	return material, nil
}

// DeleteMaterial removes a material (admin only).
func (s *CourseService) DeleteMaterial(ctx context.Context, courseID, materialID string) error {
	if err := s.courses.DeleteMaterial(ctx, courseID, materialID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete material")
	}
	return nil
}

// GrantPurchase opens or extends a course access window (admin only).
func (s *CourseService) GrantPurchase(ctx context.Context, courseID string, req models.GrantPurchaseRequest) (*models.CoursePurchase, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid purchase payload")
	}

	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	days := req.Days
	if days == 0 {
		days = course.AccessDays
	}

	purchase := &models.CoursePurchase{
		UserID:    req.UserID,
		CourseID:  courseID,
		ExpiresAt: time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour),
		Active:    true,
	}
	if err := s.courses.UpsertPurchase(ctx, purchase); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant purchase")
	}

	s.logger.Info("course access granted",
		zap.String("user_id", req.UserID),
		zap.String("course_id", courseID),
		zap.Time("expires_at", purchase.ExpiresAt))
	return purchase, nil
}

func (s *CourseService) findCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindCourseByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	return course, nil
}
