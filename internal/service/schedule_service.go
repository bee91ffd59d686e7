package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusware/atp-api/internal/models"
	appErrors "github.com/campusware/atp-api/pkg/errors"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

type lectureRepository interface {
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
	FindOverlapping(ctx context.Context, teacherID string, date time.Time, start, end time.Time, excludeID string) ([]models.Lecture, error)
	Create(ctx context.Context, lecture *models.Lecture) ([]models.Lecture, error)
	Update(ctx context.Context, lecture *models.Lecture) ([]models.Lecture, error)
	Delete(ctx context.Context, id string) error
	ListByTeacher(ctx context.Context, teacherID string) ([]models.LectureDetail, error)
	ListForStudent(ctx context.Context, studentID string, date time.Time, unmarkedOnly bool) ([]models.StudentLecture, error)
	CourseProgress(ctx context.Context, teacherID string, now time.Time) ([]models.CourseProgress, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
}

// CheckConflictRequest probes a teacher's schedule for collisions without
// writing anything.
type CheckConflictRequest struct {
	Date             string `json:"l_date" validate:"required"`
	StartTime        string `json:"s_time" validate:"required"`
	EndTime          string `json:"e_time" validate:"required"`
	ExcludeLectureID string `json:"exclude_l_id"`
}

// CreateLectureRequest describes a new lecture.
type CreateLectureRequest struct {
	CourseID  string  `json:"course_id" validate:"required"`
	Date      string  `json:"l_date" validate:"required"`
	StartTime string  `json:"s_time" validate:"required"`
	EndTime   string  `json:"e_time" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// UpdateLectureRequest reschedules or relocates an existing lecture. The
// course binding is immutable.
type UpdateLectureRequest struct {
	Date      string  `json:"l_date" validate:"required"`
	StartTime string  `json:"s_time" validate:"required"`
	EndTime   string  `json:"e_time" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// ScheduleService owns lecture scheduling: conflict detection, lecture
// lifecycle and the teacher-facing listings.
type ScheduleService struct {
	lectures  lectureRepository
	courses   courseReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(lectures lectureRepository, courses courseReader, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{lectures: lectures, courses: courses, validator: validate, logger: logger, now: time.Now}
}

// CheckConflict reports the lectures of the teacher colliding with the
// candidate window. Windows are half open: a lecture ending exactly when
// the candidate starts does not collide.
func (s *ScheduleService) CheckConflict(ctx context.Context, teacherID string, req CheckConflictRequest) ([]models.ConflictingLecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict check payload")
	}
	date, start, end, err := parseWindow(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	overlapping, err := s.lectures.FindOverlapping(ctx, teacherID, date, start, end, req.ExcludeLectureID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule")
	}
	return conflictDetails(overlapping), nil
}

// CreateLecture schedules a new lecture for the teacher. The store issues
// the lecture id and re-verifies the schedule under a per-teacher lock, so
// a clean pre-check here cannot be invalidated by a concurrent writer.
func (s *ScheduleService) CreateLecture(ctx context.Context, teacherID string, req CreateLectureRequest) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	date, start, end, err := parseWindow(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	overlapping, err := s.lectures.FindOverlapping(ctx, teacherID, date, start, end, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule")
	}
	if len(overlapping) > 0 {
		return nil, scheduleConflict(overlapping)
	}
	if err := s.validateWindow(date, start, end); err != nil {
		return nil, err
	}

	lecture := &models.Lecture{
		StartTime: start,
		EndTime:   end,
		Date:      date,
		TeacherID: teacherID,
		CourseID:  req.CourseID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	conflicts, err := s.lectures.Create(ctx, lecture)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lecture")
	}
	if len(conflicts) > 0 {
		return nil, scheduleConflict(conflicts)
	}

	s.logger.Info("lecture scheduled",
		zap.String("l_id", lecture.ID),
		zap.String("t_id", teacherID),
		zap.String("course_id", req.CourseID))
	return lecture, nil
}

// UpdateLecture reschedules a lecture that has not started yet, applying
// the creation checks with the lecture excluded from its own conflict scan.
func (s *ScheduleService) UpdateLecture(ctx context.Context, actorID string, role models.UserRole, lectureID string, req UpdateLectureRequest) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	lecture, err := s.loadOwnedLecture(ctx, actorID, role, lectureID)
	if err != nil {
		return nil, err
	}
	if ok, reason := s.CanMutate(lecture); !ok {
		return nil, appErrors.Clone(appErrors.ErrMutationForbidden, reason)
	}

	date, start, end, err := parseWindow(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	overlapping, err := s.lectures.FindOverlapping(ctx, lecture.TeacherID, date, start, end, lecture.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule")
	}
	if len(overlapping) > 0 {
		return nil, scheduleConflict(overlapping)
	}
	if err := s.validateWindow(date, start, end); err != nil {
		return nil, err
	}

	lecture.Date = date
	lecture.StartTime = start
	lecture.EndTime = end
	lecture.Latitude = req.Latitude
	lecture.Longitude = req.Longitude

	conflicts, err := s.lectures.Update(ctx, lecture)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lecture")
	}
	if len(conflicts) > 0 {
		return nil, scheduleConflict(conflicts)
	}
	return lecture, nil
}

// DeleteLecture removes a lecture that has not started yet. A missing
// lecture is reported as not found, never as already started.
func (s *ScheduleService) DeleteLecture(ctx context.Context, actorID string, role models.UserRole, lectureID string) error {
	lecture, err := s.loadOwnedLecture(ctx, actorID, role, lectureID)
	if err != nil {
		return err
	}
	if ok, reason := s.CanMutate(lecture); !ok {
		return appErrors.Clone(appErrors.ErrMutationForbidden, reason)
	}
	if err := s.lectures.Delete(ctx, lectureID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lecture")
	}
	return nil
}

// GetLecture loads a single lecture, enforcing ownership for teachers.
func (s *ScheduleService) GetLecture(ctx context.Context, actorID string, role models.UserRole, lectureID string) (*models.Lecture, error) {
	return s.loadOwnedLecture(ctx, actorID, role, lectureID)
}

// CanMutate reports whether the lecture can still be rescheduled or
// deleted, with a human-readable reason when it cannot.
func (s *ScheduleService) CanMutate(lecture *models.Lecture) (bool, string) {
	now := s.wallClock()
	if !now.Before(lecture.EndTime) {
		return false, "lecture already completed"
	}
	if !now.Before(lecture.StartTime) {
		return false, "lecture already started"
	}
	return true, ""
}

// LectureBoard groups the teacher's lectures into past, today and future
// relative to the current date.
func (s *ScheduleService) LectureBoard(ctx context.Context, teacherID string) (*models.LectureBoard, error) {
	lectures, err := s.lectures.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lectures")
	}
	board := &models.LectureBoard{
		Past:   []models.LectureDetail{},
		Today:  []models.LectureDetail{},
		Future: []models.LectureDetail{},
	}
	today := s.now().Format(dateLayout)
	for _, lecture := range lectures {
		switch day := lecture.Date.Format(dateLayout); {
		case day < today:
			board.Past = append(board.Past, lecture)
		case day > today:
			board.Future = append(board.Future, lecture)
		default:
			board.Today = append(board.Today, lecture)
		}
	}
	return board, nil
}

// CourseProgress summarises held versus remaining lectures per course the
// teacher teaches.
func (s *ScheduleService) CourseProgress(ctx context.Context, teacherID string) ([]models.CourseProgress, error) {
	progress, err := s.lectures.CourseProgress(ctx, teacherID, s.wallClock())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course progress")
	}
	return progress, nil
}

// Courses lists every course available for scheduling.
func (s *ScheduleService) Courses(ctx context.Context) ([]models.Course, error) {
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// TodaysLectures lists the student's lectures for the current date,
// optionally restricted to lectures without an attendance record yet.
func (s *ScheduleService) TodaysLectures(ctx context.Context, studentID string, unmarkedOnly bool) ([]models.StudentLecture, error) {
	today, err := time.ParseInLocation(dateLayout, s.now().Format(dateLayout), time.UTC)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve current date")
	}
	lectures, err := s.lectures.ListForStudent(ctx, studentID, today, unmarkedOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lectures")
	}
	return lectures, nil
}

// wallClock maps the current instant onto the naive timeline the legacy
// schema stores: local calendar date and clock time rendered in UTC.
func (s *ScheduleService) wallClock() time.Time {
	n := s.now()
	return time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), n.Minute(), n.Second(), 0, time.UTC)
}

func (s *ScheduleService) loadOwnedLecture(ctx context.Context, actorID string, role models.UserRole, lectureID string) (*models.Lecture, error) {
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
	return lecture, nil
}

// validateWindow enforces the scheduling rules that do not depend on other
// lectures: the date must not be in the past, a same-day lecture must not
// start before now, and the session must be positive and at most five hours.
func (s *ScheduleService) validateWindow(date, start, end time.Time) error {
	now := s.wallClock()
	today := now.Format(dateLayout)
	day := date.Format(dateLayout)
	if day < today {
		return appErrors.Clone(appErrors.ErrValidation, "lecture date is in the past")
	}
	if day == today && start.Before(now) {
		return appErrors.Clone(appErrors.ErrValidation, "lecture start is in the past")
	}
	duration := end.Sub(start)
	if duration <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "lecture must end after it starts")
	}
	if duration > models.MaxLectureDuration {
		return appErrors.Clone(appErrors.ErrValidation, "lecture exceeds the five hour limit")
	}
	return nil
}

// parseWindow builds the lecture date and its start and end timestamps on
// that date. Malformed values surface as validation failures.
func parseWindow(dateStr, startStr, endStr string) (date, start, end time.Time, err error) {
	date, err = time.ParseInLocation(dateLayout, dateStr, time.UTC)
	if err != nil {
		return date, start, end, appErrors.Clone(appErrors.ErrValidation, "invalid lecture date, expected YYYY-MM-DD")
	}
	startClock, err := parseClock(startStr)
	if err != nil {
		return date, start, end, appErrors.Clone(appErrors.ErrValidation, "invalid start time, expected HH:MM")
	}
	endClock, err := parseClock(endStr)
	if err != nil {
		return date, start, end, appErrors.Clone(appErrors.ErrValidation, "invalid end time, expected HH:MM")
	}
	start = date.Add(startClock)
	end = date.Add(endClock)
	return date, start, end, nil
}

func parseClock(value string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, value)
	if err != nil {
		t, err = time.Parse("15:04:05", value)
		if err != nil {
			return 0, err
		}
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

func scheduleConflict(lectures []models.Lecture) *appErrors.Error {
	return appErrors.WithDetails(appErrors.ErrScheduleConflict, "", conflictDetails(lectures))
}

func conflictDetails(lectures []models.Lecture) []models.ConflictingLecture {
	details := make([]models.ConflictingLecture, 0, len(lectures))
	for _, l := range lectures {
		details = append(details, models.ConflictingLecture{
			LectureID: l.ID,
			StartTime: l.StartTime.Format(clockLayout),
			EndTime:   l.EndTime.Format(clockLayout),
		})
	}
	return details
}
