package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campusware/atp-api/internal/models"
)

const lectureColumns = "l_id, s_time, e_time, l_date, t_id, course_id, lattitude, longitude"

// LectureRepository handles persistence for lectures.
type LectureRepository struct {
	db *sqlx.DB
}

// NewLectureRepository constructs the repository.
func NewLectureRepository(db *sqlx.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

// FindByID loads a lecture by id.
func (r *LectureRepository) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	query := fmt.Sprintf("SELECT %s FROM lecture WHERE l_id = $1", lectureColumns)
	var lecture models.Lecture
	if err := r.db.GetContext(ctx, &lecture, query, id); err != nil {
		return nil, err
	}
	return &lecture, nil
}

// FindOverlapping returns the teacher's lectures on the given date whose
// time windows intersect [start, end). Touching endpoints do not count
// as overlap. A lecture matching excludeID is never reported.
func (r *LectureRepository) FindOverlapping(ctx context.Context, teacherID string, date time.Time, start, end time.Time, excludeID string) ([]models.Lecture, error) {
	query := fmt.Sprintf("SELECT %s FROM lecture WHERE t_id = $1 AND l_date = $2 AND NOT (e_time <= $3 OR s_time >= $4)", lectureColumns)
	args := []interface{}{teacherID, date, start, end}
	if excludeID != "" {
		query += " AND l_id <> $5"
		args = append(args, excludeID)
	}
	query += " ORDER BY s_time"

	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping lectures: %w", err)
	}
	return lectures, nil
}

// Create inserts a lecture after re-checking for overlaps inside a
// transaction serialized per teacher, so two concurrent schedulers for
// the same teacher cannot both pass the conflict check against a stale
// snapshot. On conflict the colliding lectures are returned and nothing
// is written. The lecture id is issued from the store sequence and set
// on the passed record.
func (r *LectureRepository) Create(ctx context.Context, lecture *models.Lecture) (conflicts []models.Lecture, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create lecture: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockTeacherSchedule(ctx, tx, lecture.TeacherID); err != nil {
		return nil, err
	}

	conflicts, err = findOverlappingTx(ctx, tx, lecture.TeacherID, lecture.Date, lecture.StartTime, lecture.EndTime, "")
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		_ = tx.Rollback()
		return conflicts, nil
	}

	var seq int64
	if err = tx.GetContext(ctx, &seq, "SELECT nextval('lecture_id_seq')"); err != nil {
		return nil, fmt.Errorf("issue lecture id: %w", err)
	}
	lecture.ID = fmt.Sprintf("L%03d", seq)

	const insert = `INSERT INTO lecture (l_id, s_time, e_time, l_date, t_id, course_id, lattitude, longitude)
        VALUES (:l_id, :s_time, :e_time, :l_date, :t_id, :course_id, :lattitude, :longitude)`
	if _, err = tx.NamedExecContext(ctx, insert, lecture); err != nil {
		return nil, fmt.Errorf("insert lecture: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create lecture: %w", err)
	}
	return nil, nil
}

// Update rewrites a lecture's time window and location under the same
// per-teacher serialization as Create, excluding the lecture itself from
// the overlap scan. Returns sql.ErrNoRows when the lecture vanished.
func (r *LectureRepository) Update(ctx context.Context, lecture *models.Lecture) (conflicts []models.Lecture, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update lecture: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockTeacherSchedule(ctx, tx, lecture.TeacherID); err != nil {
		return nil, err
	}

	conflicts, err = findOverlappingTx(ctx, tx, lecture.TeacherID, lecture.Date, lecture.StartTime, lecture.EndTime, lecture.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		_ = tx.Rollback()
		return conflicts, nil
	}

	const update = `UPDATE lecture SET s_time = :s_time, e_time = :e_time, l_date = :l_date,
        lattitude = :lattitude, longitude = :longitude WHERE l_id = :l_id`
	result, err := tx.NamedExecContext(ctx, update, lecture)
	if err != nil {
		return nil, fmt.Errorf("update lecture: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update lecture rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update lecture: %w", err)
	}
	return nil, nil
}

// Delete removes a lecture by id. Returns sql.ErrNoRows when no row matched.
func (r *LectureRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM lecture WHERE l_id = $1", id)
	if err != nil {
		return fmt.Errorf("delete lecture: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete lecture rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByTeacher returns all of a teacher's lectures with course and
// lecturer names, ordered chronologically.
func (r *LectureRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.LectureDetail, error) {
	const query = `SELECT l.l_id, l.s_time, l.e_time, l.l_date, l.t_id, l.course_id, l.lattitude, l.longitude,
        c.course_name, u.full_name AS lecturer
        FROM lecture l
        JOIN course c ON c.course_id = l.course_id
        JOIN users u ON u.id = l.t_id
        WHERE l.t_id = $1
        ORDER BY l.l_date, l.s_time`
	var lectures []models.LectureDetail
	if err := r.db.SelectContext(ctx, &lectures, query, teacherID); err != nil {
		return nil, fmt.Errorf("list lectures by teacher: %w", err)
	}
	return lectures, nil
}

// ListForStudent returns the lectures an enrolled student can see on a
// date. With unmarkedOnly set, lectures the student has already recorded
// attendance for are filtered out.
func (r *LectureRepository) ListForStudent(ctx context.Context, studentID string, date time.Time, unmarkedOnly bool) ([]models.StudentLecture, error) {
	query := `SELECT l.l_id, c.course_name, u.full_name AS lecturer, l.s_time, l.e_time, l.l_date
        FROM student_course sc
        JOIN lecture l ON l.course_id = sc.course_id AND l.t_id = sc.t_id
        JOIN course c ON c.course_id = l.course_id
        JOIN users u ON u.id = l.t_id
        WHERE sc.stud_id = $1 AND l.l_date = $2`
	if unmarkedOnly {
		query += ` AND NOT EXISTS (SELECT 1 FROM attendance a WHERE a.stud_id = sc.stud_id AND a.l_id = l.l_id)`
	}
	query += " ORDER BY l.s_time"

	var lectures []models.StudentLecture
	if err := r.db.SelectContext(ctx, &lectures, query, studentID, date); err != nil {
		return nil, fmt.Errorf("list lectures for student: %w", err)
	}
	return lectures, nil
}

// CourseProgress summarises held versus scheduled lectures per course
// taught by the teacher, as of the given instant.
func (r *LectureRepository) CourseProgress(ctx context.Context, teacherID string, now time.Time) ([]models.CourseProgress, error) {
	const query = `SELECT c.course_id, c.course_name,
        COUNT(l.l_id) AS total_lectures,
        COUNT(l.l_id) FILTER (WHERE l.e_time <= $2) AS lectures_taken
        FROM course c
        JOIN lecture l ON l.course_id = c.course_id AND l.t_id = $1
        GROUP BY c.course_id, c.course_name
        ORDER BY c.course_id`
	var progress []models.CourseProgress
	if err := r.db.SelectContext(ctx, &progress, query, teacherID, now); err != nil {
		return nil, fmt.Errorf("course progress: %w", err)
	}
	for i := range progress {
		progress[i].LecturesLeft = progress[i].TotalLectures - progress[i].LecturesTaken
	}
	return progress, nil
}

// lockTeacherSchedule serializes schedule writes per teacher for the
// duration of the transaction.
func lockTeacherSchedule(ctx context.Context, tx *sqlx.Tx, teacherID string) error {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", teacherID); err != nil {
		return fmt.Errorf("lock teacher schedule: %w", err)
	}
	return nil
}

func findOverlappingTx(ctx context.Context, tx *sqlx.Tx, teacherID string, date time.Time, start, end time.Time, excludeID string) ([]models.Lecture, error) {
	query := fmt.Sprintf("SELECT %s FROM lecture WHERE t_id = $1 AND l_date = $2 AND NOT (e_time <= $3 OR s_time >= $4)", lectureColumns)
	args := []interface{}{teacherID, date, start, end}
	if excludeID != "" {
		query += " AND l_id <> $5"
		args = append(args, excludeID)
	}
	query += " ORDER BY s_time"

	var lectures []models.Lecture
	if err := tx.SelectContext(ctx, &lectures, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping lectures: %w", err)
	}
	return lectures, nil
}
