package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusware/atp-api/internal/models"
	"github.com/campusware/atp-api/internal/repository"
	appErrors "github.com/campusware/atp-api/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, e *models.Enrollment) error
	Delete(ctx context.Context, e *models.Enrollment) error
	Exists(ctx context.Context, studentID, courseID, teacherID string) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID, teacherID string) ([]models.Enrollment, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AssignEnrollmentRequest describes the (student, course, teacher) triple
// to create or remove.
type AssignEnrollmentRequest struct {
	StudentID string `json:"stud_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	TeacherID string `json:"t_id" validate:"required"`
}

// EnrollmentService administers the enrollment triples backing scheduling
// and attendance.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseReader
	users     userReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseReader, users userReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, courses: courses, users: users, validator: validate, logger: logger}
}

// Assign enrolls a student into a teacher's offering of a course.
func (s *EnrollmentService) Assign(ctx context.Context, req AssignEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if err := s.checkUser(ctx, req.StudentID, models.RoleStudent, "student"); err != nil {
		return nil, err
	}
	if err := s.checkUser(ctx, req.TeacherID, models.RoleTeacher, "teacher"); err != nil {
		return nil, err
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	enrollment := &models.Enrollment{StudentID: req.StudentID, CourseID: req.CourseID, TeacherID: req.TeacherID}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicateEnrollment) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("enrollment created",
		zap.String("stud_id", req.StudentID),
		zap.String("course_id", req.CourseID),
		zap.String("t_id", req.TeacherID))
	return enrollment, nil
}

// Unassign removes an enrollment triple.
func (s *EnrollmentService) Unassign(ctx context.Context, req AssignEnrollmentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	enrollment := &models.Enrollment{StudentID: req.StudentID, CourseID: req.CourseID, TeacherID: req.TeacherID}
	if err := s.repo.Delete(ctx, enrollment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}

// ListByStudent returns a student's enrollments.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// ListByCourse returns the roster of a teacher's offering of a course.
func (s *EnrollmentService) ListByCourse(ctx context.Context, courseID, teacherID string) ([]models.Enrollment, error) {
	enrollments, err := s.repo.ListByCourse(ctx, courseID, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

func (s *EnrollmentService) checkUser(ctx context.Context, id string, role models.UserRole, label string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, label+" not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+label)
	}
	if user.Role != role {
		return appErrors.Clone(appErrors.ErrValidation, label+" id does not refer to a "+label)
	}
	if !user.Active {
		return appErrors.Clone(appErrors.ErrValidation, label+" account is inactive")
	}
	return nil
}
