package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campusware/atp-api/internal/models"
	appErrors "github.com/campusware/atp-api/pkg/errors"
)

// fakeLectureRepo implements the store contract in memory, including the
// half-open overlap predicate the real store evaluates in SQL.
type fakeLectureRepo struct {
	lectures map[string]models.Lecture
	nextSeq  int64
	details  []models.LectureDetail
	students []models.StudentLecture
	progress []models.CourseProgress
}

func newFakeLectureRepo(lectures ...models.Lecture) *fakeLectureRepo {
	repo := &fakeLectureRepo{lectures: map[string]models.Lecture{}, nextSeq: 1}
	for _, l := range lectures {
		repo.lectures[l.ID] = l
	}
	return repo
}

func (f *fakeLectureRepo) FindByID(_ context.Context, id string) (*models.Lecture, error) {
	l, ok := f.lectures[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &l, nil
}

func (f *fakeLectureRepo) FindOverlapping(_ context.Context, teacherID string, date time.Time, start, end time.Time, excludeID string) ([]models.Lecture, error) {
	var out []models.Lecture
	for _, l := range f.lectures {
		if l.TeacherID != teacherID || !l.Date.Equal(date) || l.ID == excludeID {
			continue
		}
		if l.EndTime.After(start) && l.StartTime.Before(end) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLectureRepo) Create(ctx context.Context, lecture *models.Lecture) ([]models.Lecture, error) {
	conflicts, _ := f.FindOverlapping(ctx, lecture.TeacherID, lecture.Date, lecture.StartTime, lecture.EndTime, "")
	if len(conflicts) > 0 {
		return conflicts, nil
	}
	lecture.ID = formatLectureID(f.nextSeq)
	f.nextSeq++
	f.lectures[lecture.ID] = *lecture
	return nil, nil
}

func (f *fakeLectureRepo) Update(ctx context.Context, lecture *models.Lecture) ([]models.Lecture, error) {
	if _, ok := f.lectures[lecture.ID]; !ok {
		return nil, sql.ErrNoRows
	}
	conflicts, _ := f.FindOverlapping(ctx, lecture.TeacherID, lecture.Date, lecture.StartTime, lecture.EndTime, lecture.ID)
	if len(conflicts) > 0 {
		return conflicts, nil
	}
	f.lectures[lecture.ID] = *lecture
	return nil, nil
}

func (f *fakeLectureRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.lectures[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.lectures, id)
	return nil
}

func (f *fakeLectureRepo) ListByTeacher(_ context.Context, teacherID string) ([]models.LectureDetail, error) {
	return f.details, nil
}

func (f *fakeLectureRepo) ListForStudent(_ context.Context, studentID string, date time.Time, unmarkedOnly bool) ([]models.StudentLecture, error) {
	return f.students, nil
}

func (f *fakeLectureRepo) CourseProgress(_ context.Context, teacherID string, now time.Time) ([]models.CourseProgress, error) {
	return f.progress, nil
}

func formatLectureID(seq int64) string {
	return fmt.Sprintf("L%03d", seq)
}

type fakeCourseRepo struct {
	courses map[string]models.Course
}

func (f *fakeCourseRepo) FindByID(_ context.Context, id string) (*models.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f *fakeCourseRepo) List(_ context.Context) ([]models.Course, error) {
	var courses []models.Course
	for _, c := range f.courses {
		courses = append(courses, c)
	}
	return courses, nil
}

func requireErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}

var scheduleNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func lectureAt(id, teacherID string, day time.Time, startHour, endHour int) models.Lecture {
	return models.Lecture{
		ID:        id,
		StartTime: day.Add(time.Duration(startHour) * time.Hour),
		EndTime:   day.Add(time.Duration(endHour) * time.Hour),
		Date:      day,
		TeacherID: teacherID,
		CourseID:  "C001",
	}
}

func newScheduleService(repo *fakeLectureRepo) *ScheduleService {
	svc := NewScheduleService(repo, &fakeCourseRepo{courses: map[string]models.Course{
		"C001": {ID: "C001", Name: "Algorithms"},
	}}, nil, nil)
	svc.now = func() time.Time { return scheduleNow }
	return svc
}

func TestCheckConflictTouchingWindowsDoNotCollide(t *testing.T) {
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	repo := newFakeLectureRepo(lectureAt("L001", "T001", day, 9, 11))
	svc := newScheduleService(repo)

	conflicts, err := svc.CheckConflict(context.Background(), "T001", CheckConflictRequest{
		Date: "2026-03-03", StartTime: "11:00", EndTime: "13:00",
	})
	require.NoError(t, err)
	require.Empty(t, conflicts)

	conflicts, err = svc.CheckConflict(context.Background(), "T001", CheckConflictRequest{
		Date: "2026-03-03", StartTime: "07:00", EndTime: "09:00",
	})
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestCheckConflictReportsOverlap(t *testing.T) {
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	repo := newFakeLectureRepo(lectureAt("L001", "T001", day, 9, 11))
	svc := newScheduleService(repo)

	conflicts, err := svc.CheckConflict(context.Background(), "T001", CheckConflictRequest{
		Date: "2026-03-03", StartTime: "10:00", EndTime: "12:00",
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, "L001", conflicts[0].LectureID)
	require.Equal(t, "09:00", conflicts[0].StartTime)
	require.Equal(t, "11:00", conflicts[0].EndTime)
}

func TestCheckConflictExcludesGivenLecture(t *testing.T) {
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	repo := newFakeLectureRepo(lectureAt("L001", "T001", day, 9, 11))
	svc := newScheduleService(repo)

	conflicts, err := svc.CheckConflict(context.Background(), "T001", CheckConflictRequest{
		Date: "2026-03-03", StartTime: "09:30", EndTime: "10:30", ExcludeLectureID: "L001",
	})
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestCheckConflictMalformedTime(t *testing.T) {
	svc := newScheduleService(newFakeLectureRepo())
	_, err := svc.CheckConflict(context.Background(), "T001", CheckConflictRequest{
		Date: "2026-03-03", StartTime: "25:99", EndTime: "11:00",
	})
	requireErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestCreateLecture(t *testing.T) {
	repo := newFakeLectureRepo()
	svc := newScheduleService(repo)

	lecture, err := svc.CreateLecture(context.Background(), "T001", CreateLectureRequest{
		CourseID: "C001", Date: "2026-03-03", StartTime: "09:00", EndTime: "11:00",
		Latitude: 6.5244, Longitude: 3.3792,
	})
	require.NoError(t, err)
	require.Equal(t, "L001", lecture.ID)
	require.Equal(t, "T001", lecture.TeacherID)
	require.Equal(t, 2*time.Hour, lecture.Duration())
}

func TestCreateLectureConflictCarriesDetails(t *testing.T) {
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	repo := newFakeLectureRepo(lectureAt("L001", "T001", day, 9, 11))
	svc := newScheduleService(repo)

	_, err := svc.CreateLecture(context.Background(), "T001", CreateLectureRequest{
		CourseID: "C001", Date: "2026-03-03", StartTime: "10:00", EndTime: "12:00",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrScheduleConflict.Code, appErr.Code)
	details, ok := appErr.Details.([]models.ConflictingLecture)
	require.True(t, ok)
	require.Len(t, details, 1)
	require.Equal(t, "L001", details[0].LectureID)
}

func TestCreateLectureConflictCheckedBeforeWindowRules(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeLectureRepo(lectureAt("L001", "T001", day, 9, 11))
	svc := newScheduleService(repo)

	// Past date AND overlapping: the conflict wins.
	_, err := svc.CreateLecture(context.Background(), "T001", CreateLectureRequest{
		CourseID: "C001", Date: "2026-03-01", StartTime: "10:00", EndTime: "12:00",
	})
	requireErrorCode(t, err, appErrors.ErrScheduleConflict.Code)
}

func TestCreateLectureWindowRules(t *testing.T) {
	cases := []struct {
		name  string
		date  string
		start string
		end   string
	}{
		{"past date", "2026-03-01", "09:00", "11:00"},
		{"same day earlier start", "2026-03-02", "07:00", "09:00"},
		{"zero duration", "2026-03-03", "09:00", "09:00"},
		{"negative duration", "2026-03-03", "11:00", "09:00"},
		{"over five hours", "2026-03-03", "09:00", "14:30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newScheduleService(newFakeLectureRepo())
			_, err := svc.CreateLecture(context.Background(), "T001", CreateLectureRequest{
				CourseID: "C001", Date: tc.date, StartTime: tc.start, EndTime: tc.end,
			})
			requireErrorCode(t, err, appErrors.ErrValidation.Code)
		})
	}
}

func TestCreateLectureFiveHoursExactlyAllowed(t *testing.T) {
	svc := newScheduleService(newFakeLectureRepo())
	lecture, err := svc.CreateLecture(context.Background(), "T001", CreateLectureRequest{
		CourseID: "C001", Date: "2026-03-03", StartTime: "09:00", EndTime: "14:00",
	})
	require.NoError(t, err)
	require.Equal(t, 5*time.Hour, lecture.Duration())
}

func TestCreateLectureUnknownCourse(t *testing.T) {
	svc := newScheduleService(newFakeLectureRepo())
	_, err := svc.CreateLecture(context.Background(), "T001", CreateLectureRequest{
		CourseID: "C404", Date: "2026-03-03", StartTime: "09:00", EndTime: "11:00",
	})
	requireErrorCode(t, err, appErrors.ErrNotFound.Code)
}

func TestUpdateLectureWithinOwnSlot(t *testing.T) {
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	repo := newFakeLectureRepo(lectureAt("L001", "T001", day, 9, 11))
	svc := newScheduleService(repo)

	lecture, err := svc.UpdateLecture(context.Background(), "T001", models.RoleTeacher, "L001", UpdateLectureRequest{
		Date: "2026-03-03", StartTime: "09:30", EndTime: "10:30",
	})
	require.NoError(t, err)
	require.Equal(t, "09:30", lecture.StartTime.Format("15:04"))
}

func TestUpdateLectureAlreadyStarted(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	repo := newFakeLectureRepo(lectureAt("L001", "T001", day, 7, 10))
	svc := newScheduleService(repo)

	_, err := svc.UpdateLecture(context.Background(), "T001", models.RoleTeacher, "L001", UpdateLectureRequest{
		Date: "2026-03-03", StartTime: "09:00", EndTime: "11:00",
	})
	requireErrorCode(t, err, appErrors.ErrMutationForbidden.Code)
}

func TestUpdateLectureOwnership(t *testing.T) {
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	repo := newFakeLectureRepo(lectureAt("L001", "T001", day, 9, 11))
	svc := newScheduleService(repo)

	_, err := svc.UpdateLecture(context.Background(), "T002", models.RoleTeacher, "L001", UpdateLectureRequest{
		Date: "2026-03-03", StartTime: "09:00", EndTime: "11:00",
	})
	requireErrorCode(t, err, appErrors.ErrForbidden.Code)

	// Admins bypass ownership.
	_, err = svc.UpdateLecture(context.Background(), "A001", models.RoleAdmin, "L001", UpdateLectureRequest{
		Date: "2026-03-03", StartTime: "12:00", EndTime: "14:00",
	})
	require.NoError(t, err)
}

func TestDeleteLecture(t *testing.T) {
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	repo := newFakeLectureRepo(lectureAt("L001", "T001", day, 9, 11))
	svc := newScheduleService(repo)

	require.NoError(t, svc.DeleteLecture(context.Background(), "T001", models.RoleTeacher, "L001"))

	err := svc.DeleteLecture(context.Background(), "T001", models.RoleTeacher, "L001")
	requireErrorCode(t, err, appErrors.ErrNotFound.Code)
}

func TestDeleteLectureAlreadyCompleted(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	repo := newFakeLectureRepo(lectureAt("L001", "T001", day, 5, 7))
	svc := newScheduleService(repo)

	err := svc.DeleteLecture(context.Background(), "T001", models.RoleTeacher, "L001")
	requireErrorCode(t, err, appErrors.ErrMutationForbidden.Code)
}

func TestLectureBoardPartitions(t *testing.T) {
	repo := newFakeLectureRepo()
	yesterday := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	repo.details = []models.LectureDetail{
		{Lecture: lectureAt("L001", "T001", yesterday, 9, 11)},
		{Lecture: lectureAt("L002", "T001", today, 9, 11)},
		{Lecture: lectureAt("L003", "T001", tomorrow, 9, 11)},
	}
	svc := newScheduleService(repo)

	board, err := svc.LectureBoard(context.Background(), "T001")
	require.NoError(t, err)
	require.Len(t, board.Past, 1)
	require.Len(t, board.Today, 1)
	require.Len(t, board.Future, 1)
	require.Equal(t, "L002", board.Today[0].ID)
}
