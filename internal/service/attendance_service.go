package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusware/atp-api/internal/models"
	"github.com/campusware/atp-api/internal/repository"
	appErrors "github.com/campusware/atp-api/pkg/errors"
	"github.com/campusware/atp-api/pkg/export"
)

// DefaultGeofenceTolerance is the per-axis geofence half-width in degrees.
const DefaultGeofenceTolerance = 0.0005

type attendanceRepository interface {
	Insert(ctx context.Context, att *models.Attendance) error
	Exists(ctx context.Context, studentID, lectureID string) (bool, error)
	SummaryByCourse(ctx context.Context, studentID string, asOf time.Time) ([]models.AttendanceSummary, error)
	ListByLecture(ctx context.Context, lectureID string) ([]models.Attendance, error)
}

type lectureReader interface {
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
}

type enrollmentChecker interface {
	Exists(ctx context.Context, studentID, courseID, teacherID string) (bool, error)
}

// RecordAttendanceRequest is a student's self-reported presence at a lecture.
type RecordAttendanceRequest struct {
	LectureID string  `json:"l_id" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// AttendanceService owns attendance capture and the per-course summary.
type AttendanceService struct {
	attendance  attendanceRepository
	lectures    lectureReader
	enrollments enrollmentChecker
	cache       *CacheService
	tolerance   float64
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAttendanceService constructs AttendanceService. A non-positive
// tolerance falls back to DefaultGeofenceTolerance.
func NewAttendanceService(attendance attendanceRepository, lectures lectureReader, enrollments enrollmentChecker, cache *CacheService, tolerance float64, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if tolerance <= 0 {
		tolerance = DefaultGeofenceTolerance
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		attendance:  attendance,
		lectures:    lectures,
		enrollments: enrollments,
		cache:       cache,
		tolerance:   tolerance,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Record captures attendance for the student at a lecture. The student must
// be enrolled in the lecture's offering, the report must arrive on the
// lecture's calendar date, and the reported position must fall inside the
// lecture's geofence. Duplicates are rejected up front; the store's
// uniqueness guarantee backstops concurrent submissions.
func (s *AttendanceService) Record(ctx context.Context, studentID string, req RecordAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	lecture, err := s.lectures.FindByID(ctx, req.LectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
	}

	enrolled, err := s.enrollments.Exists(ctx, studentID, lecture.CourseID, lecture.TeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student not enrolled in this lecture's course")
	}

	now := s.wallClock()
	if now.Format(dateLayout) != lecture.Date.Format(dateLayout) {
		return nil, appErrors.Clone(appErrors.ErrAttendanceClosed, "")
	}

	recorded, err := s.attendance.Exists(ctx, studentID, lecture.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if recorded {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRecorded, "")
	}

	if !s.withinGeofence(lecture, req.Latitude, req.Longitude) {
		return nil, appErrors.Clone(appErrors.ErrOutOfRange, "")
	}

	att := &models.Attendance{
		StudentID:    studentID,
		LectureID:    lecture.ID,
		DateRecorded: truncateToDate(now),
		TimeRecorded: now,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	}
	if err := s.attendance.Insert(ctx, att); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttendance) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyRecorded, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	if err := s.cache.Invalidate(ctx, summaryCachePattern(studentID)); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.String("stud_id", studentID), zap.Error(err))
	}

	s.logger.Info("attendance recorded",
		zap.String("stud_id", studentID),
		zap.String("l_id", lecture.ID))
	return att, nil
}

// Summary returns the student's per-course attendance as of today. The
// percentage is computed here and rounded to two decimals; a course with
// no lectures dated yet reports zero.
func (s *AttendanceService) Summary(ctx context.Context, studentID string) ([]models.AttendanceSummary, error) {
	key := summaryCacheKey(studentID, s.wallClock())
	var cached []models.AttendanceSummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.attendance.SummaryByCourse(ctx, studentID, s.wallClock())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance summary")
	}
	for i := range rows {
		rows[i].Percentage = percentage(rows[i].Attended, rows[i].TotalLectures)
	}

	if err := s.cache.Set(ctx, key, rows, 0); err != nil {
		s.logger.Warn("summary cache write failed", zap.String("stud_id", studentID), zap.Error(err))
	}
	return rows, nil
}

// SummaryCSV renders the student's summary as CSV bytes.
func (s *AttendanceService) SummaryCSV(ctx context.Context, studentID string) ([]byte, error) {
	rows, err := s.Summary(ctx, studentID)
	if err != nil {
		return nil, err
	}
	data, err := export.SummaryCSV(rows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export summary")
	}
	return data, nil
}

// SummaryPDF renders the student's summary as a PDF document.
func (s *AttendanceService) SummaryPDF(ctx context.Context, studentID string) ([]byte, error) {
	rows, err := s.Summary(ctx, studentID)
	if err != nil {
		return nil, err
	}
	data, err := export.SummaryPDF(rows, "Attendance Summary")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export summary")
	}
	return data, nil
}

// LectureRoster lists who recorded attendance at a lecture. Teachers can
// only inspect their own lectures; admins see any.
func (s *AttendanceService) LectureRoster(ctx context.Context, actorID string, role models.UserRole, lectureID string) ([]models.Attendance, error) {
	lecture, err := s.lectures.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
	}
	if role != models.RoleAdmin && lecture.TeacherID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lecture belongs to another teacher")
	}
	records, err := s.attendance.ListByLecture(ctx, lectureID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// withinGeofence applies the per-axis tolerance around the lecture location.
func (s *AttendanceService) withinGeofence(lecture *models.Lecture, lat, lon float64) bool {
	return math.Abs(lat-lecture.Latitude) <= s.tolerance &&
		math.Abs(lon-lecture.Longitude) <= s.tolerance
}

func (s *AttendanceService) wallClock() time.Time {
	n := s.now()
	return time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), n.Minute(), n.Second(), 0, time.UTC)
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func percentage(attended, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(total)*100*100) / 100
}

func summaryCacheKey(studentID string, asOf time.Time) string {
	return fmt.Sprintf("summary:%s:%s", studentID, asOf.Format(dateLayout))
}

func summaryCachePattern(studentID string) string {
	return fmt.Sprintf("summary:%s:*", studentID)
}
