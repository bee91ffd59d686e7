package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusware/atp-api/internal/models"
)

// ErrDuplicateAttendance reports a second attendance record for the same
// (student, lecture) pair.
var ErrDuplicateAttendance = errors.New("attendance already recorded")

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Insert writes an attendance record. The composite primary key makes the
// store the arbiter of uniqueness; a duplicate surfaces as
// ErrDuplicateAttendance regardless of which concurrent request won.
func (r *AttendanceRepository) Insert(ctx context.Context, att *models.Attendance) error {
	const query = `INSERT INTO attendance (stud_id, l_id, date_recorded, time_recorded, lattitude, longitude)
        VALUES (:stud_id, :l_id, :date_recorded, :time_recorded, :lattitude, :longitude)`
	if _, err := r.db.NamedExecContext(ctx, query, att); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateAttendance
		}
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// Exists reports whether the student already has a record for the lecture.
func (r *AttendanceRepository) Exists(ctx context.Context, studentID, lectureID string) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one, "SELECT 1 FROM attendance WHERE stud_id = $1 AND l_id = $2", studentID, lectureID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return true, nil
}

// SummaryByCourse counts, per enrolled course, the lectures dated on or
// before the as-of day and how many of them the student attended. The
// whole as-of day counts, including lectures scheduled later that day.
// Courses with no lectures yet still produce a row.
func (r *AttendanceRepository) SummaryByCourse(ctx context.Context, studentID string, asOf time.Time) ([]models.AttendanceSummary, error) {
	const query = `SELECT c.course_id, c.course_name,
        COUNT(l.l_id) FILTER (WHERE l.l_date <= $2::date) AS total_lectures,
        COUNT(a.l_id) FILTER (WHERE l.l_date <= $2::date) AS attended
        FROM student_course sc
        JOIN course c ON c.course_id = sc.course_id
        LEFT JOIN lecture l ON l.course_id = sc.course_id AND l.t_id = sc.t_id
        LEFT JOIN attendance a ON a.l_id = l.l_id AND a.stud_id = sc.stud_id
        WHERE sc.stud_id = $1
        GROUP BY c.course_id, c.course_name
        ORDER BY c.course_id`
	var rows []models.AttendanceSummary
	if err := r.db.SelectContext(ctx, &rows, query, studentID, asOf); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	return rows, nil
}

// ListByLecture returns all attendance records for one lecture, ordered by
// recording time.
func (r *AttendanceRepository) ListByLecture(ctx context.Context, lectureID string) ([]models.Attendance, error) {
	const query = `SELECT stud_id, l_id, date_recorded, time_recorded, lattitude, longitude
        FROM attendance WHERE l_id = $1 ORDER BY time_recorded`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, lectureID); err != nil {
		return nil, fmt.Errorf("list attendance by lecture: %w", err)
	}
	return records, nil
}
