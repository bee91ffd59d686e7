package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusware/atp-api/internal/models"
)

// ErrDuplicateEnrollment reports an already existing student_course triple.
var ErrDuplicateEnrollment = errors.New("enrollment already exists")

// EnrollmentRepository handles persistence for student enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts an enrollment triple.
func (r *EnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	const query = `INSERT INTO student_course (stud_id, course_id, t_id) VALUES (:stud_id, :course_id, :t_id)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateEnrollment
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment triple. Returns sql.ErrNoRows when nothing
// matched.
func (r *EnrollmentRepository) Delete(ctx context.Context, e *models.Enrollment) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM student_course WHERE stud_id = $1 AND course_id = $2 AND t_id = $3",
		e.StudentID, e.CourseID, e.TeacherID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Exists reports whether the student is enrolled in the teacher's offering
// of the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID, teacherID string) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one,
		"SELECT 1 FROM student_course WHERE stud_id = $1 AND course_id = $2 AND t_id = $3",
		studentID, courseID, teacherID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// ListByStudent returns the student's enrollments.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	const query = `SELECT stud_id, course_id, t_id FROM student_course WHERE stud_id = $1 ORDER BY course_id`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollments by student: %w", err)
	}
	return enrollments, nil
}

// ListByCourse returns the roster for a teacher's offering of a course.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID, teacherID string) ([]models.Enrollment, error) {
	const query = `SELECT stud_id, course_id, t_id FROM student_course WHERE course_id = $1 AND t_id = $2 ORDER BY stud_id`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID, teacherID); err != nil {
		return nil, fmt.Errorf("list enrollments by course: %w", err)
	}
	return enrollments, nil
}
