package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campusware/atp-api/internal/models"
	"github.com/campusware/atp-api/internal/repository"
	appErrors "github.com/campusware/atp-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	records map[string]models.Attendance
	summary []models.AttendanceSummary
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{records: map[string]models.Attendance{}}
}

func attendanceKey(studentID, lectureID string) string {
	return studentID + "/" + lectureID
}

func (f *fakeAttendanceRepo) Insert(_ context.Context, att *models.Attendance) error {
	key := attendanceKey(att.StudentID, att.LectureID)
	if _, ok := f.records[key]; ok {
		return repository.ErrDuplicateAttendance
	}
	f.records[key] = *att
	return nil
}

func (f *fakeAttendanceRepo) Exists(_ context.Context, studentID, lectureID string) (bool, error) {
	_, ok := f.records[attendanceKey(studentID, lectureID)]
	return ok, nil
}

func (f *fakeAttendanceRepo) SummaryByCourse(_ context.Context, studentID string, asOf time.Time) ([]models.AttendanceSummary, error) {
	return f.summary, nil
}

func (f *fakeAttendanceRepo) ListByLecture(_ context.Context, lectureID string) ([]models.Attendance, error) {
	var records []models.Attendance
	for _, att := range f.records {
		if att.LectureID == lectureID {
			records = append(records, att)
		}
	}
	return records, nil
}

type fakeEnrollmentChecker struct {
	enrolled map[string]bool
}

func (f *fakeEnrollmentChecker) Exists(_ context.Context, studentID, courseID, teacherID string) (bool, error) {
	return f.enrolled[studentID+"/"+courseID+"/"+teacherID], nil
}

var attendanceNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// The lecture sits at the origin so the tolerance arithmetic is exact in
// floating point.
func originLecture() models.Lecture {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return models.Lecture{
		ID:        "L001",
		StartTime: day.Add(9 * time.Hour),
		EndTime:   day.Add(11 * time.Hour),
		Date:      day,
		TeacherID: "T001",
		CourseID:  "C001",
		Latitude:  0,
		Longitude: 0,
	}
}

func newAttendanceService(attendance *fakeAttendanceRepo, lectures *fakeLectureRepo) *AttendanceService {
	enrollments := &fakeEnrollmentChecker{enrolled: map[string]bool{"S001/C001/T001": true}}
	svc := NewAttendanceService(attendance, lectures, enrollments, nil, 0, nil, nil)
	svc.now = func() time.Time { return attendanceNow }
	return svc
}

func TestRecordAttendance(t *testing.T) {
	attendance := newFakeAttendanceRepo()
	svc := newAttendanceService(attendance, newFakeLectureRepo(originLecture()))

	att, err := svc.Record(context.Background(), "S001", RecordAttendanceRequest{
		LectureID: "L001", Latitude: 0.0001, Longitude: -0.0002,
	})
	require.NoError(t, err)
	require.Equal(t, "S001", att.StudentID)
	require.Equal(t, "L001", att.LectureID)
	require.Equal(t, attendanceNow, att.TimeRecorded)
	require.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), att.DateRecorded)
}

func TestRecordAttendanceGeofenceBoundary(t *testing.T) {
	// Exactly on the fence is inside, on either axis or both at once.
	cases := []struct {
		name string
		lat  float64
		lon  float64
	}{
		{"latitude on the fence", 0.0005, 0},
		{"longitude on the fence", 0, 0.0005},
		{"both axes on the fence", 0.0005, 0.0005},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newAttendanceService(newFakeAttendanceRepo(), newFakeLectureRepo(originLecture()))
			_, err := svc.Record(context.Background(), "S001", RecordAttendanceRequest{
				LectureID: "L001", Latitude: tc.lat, Longitude: tc.lon,
			})
			require.NoError(t, err)
		})
	}
}

func TestRecordAttendanceOutOfRange(t *testing.T) {
	cases := []struct {
		name string
		lat  float64
		lon  float64
	}{
		{"latitude out", 0.00051, 0},
		{"longitude out", 0, 0.00051},
		{"both axes out", 0.001, 0.001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newAttendanceService(newFakeAttendanceRepo(), newFakeLectureRepo(originLecture()))
			_, err := svc.Record(context.Background(), "S001", RecordAttendanceRequest{
				LectureID: "L001", Latitude: tc.lat, Longitude: tc.lon,
			})
			requireErrorCode(t, err, appErrors.ErrOutOfRange.Code)
		})
	}
}

func TestRecordAttendanceLectureNotFound(t *testing.T) {
	svc := newAttendanceService(newFakeAttendanceRepo(), newFakeLectureRepo())
	_, err := svc.Record(context.Background(), "S001", RecordAttendanceRequest{LectureID: "L404"})
	requireErrorCode(t, err, appErrors.ErrNotFound.Code)
}

func TestRecordAttendanceNotEnrolled(t *testing.T) {
	svc := newAttendanceService(newFakeAttendanceRepo(), newFakeLectureRepo(originLecture()))
	_, err := svc.Record(context.Background(), "S999", RecordAttendanceRequest{LectureID: "L001"})
	requireErrorCode(t, err, appErrors.ErrForbidden.Code)
}

func TestRecordAttendanceWrongDay(t *testing.T) {
	lecture := originLecture()
	lecture.Date = time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	svc := newAttendanceService(newFakeAttendanceRepo(), newFakeLectureRepo(lecture))

	_, err := svc.Record(context.Background(), "S001", RecordAttendanceRequest{LectureID: "L001"})
	requireErrorCode(t, err, appErrors.ErrAttendanceClosed.Code)
}

func TestRecordAttendanceDuplicate(t *testing.T) {
	attendance := newFakeAttendanceRepo()
	svc := newAttendanceService(attendance, newFakeLectureRepo(originLecture()))

	_, err := svc.Record(context.Background(), "S001", RecordAttendanceRequest{LectureID: "L001"})
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), "S001", RecordAttendanceRequest{LectureID: "L001"})
	requireErrorCode(t, err, appErrors.ErrAlreadyRecorded.Code)
}

func TestSummaryPercentages(t *testing.T) {
	attendance := newFakeAttendanceRepo()
	attendance.summary = []models.AttendanceSummary{
		{CourseID: "C001", CourseName: "Algorithms", TotalLectures: 3, Attended: 2},
		{CourseID: "C002", CourseName: "Databases", TotalLectures: 0, Attended: 0},
		{CourseID: "C003", CourseName: "Networks", TotalLectures: 8, Attended: 8},
	}
	svc := newAttendanceService(attendance, newFakeLectureRepo())

	rows, err := svc.Summary(context.Background(), "S001")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.InDelta(t, 66.67, rows[0].Percentage, 0.0001)
	require.Zero(t, rows[1].Percentage)
	require.InDelta(t, 100.0, rows[2].Percentage, 0.0001)
}

func TestSummaryCSVExport(t *testing.T) {
	attendance := newFakeAttendanceRepo()
	attendance.summary = []models.AttendanceSummary{
		{CourseID: "C001", CourseName: "Algorithms", TotalLectures: 4, Attended: 3},
	}
	svc := newAttendanceService(attendance, newFakeLectureRepo())

	data, err := svc.SummaryCSV(context.Background(), "S001")
	require.NoError(t, err)
	require.Contains(t, string(data), "Algorithms")
	require.Contains(t, string(data), "75.00")
}

func TestLectureRoster(t *testing.T) {
	attendance := newFakeAttendanceRepo()
	svc := newAttendanceService(attendance, newFakeLectureRepo(originLecture()))

	_, err := svc.Record(context.Background(), "S001", RecordAttendanceRequest{LectureID: "L001"})
	require.NoError(t, err)

	records, err := svc.LectureRoster(context.Background(), "T001", models.RoleTeacher, "L001")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "S001", records[0].StudentID)
}

func TestLectureRosterOtherTeacher(t *testing.T) {
	svc := newAttendanceService(newFakeAttendanceRepo(), newFakeLectureRepo(originLecture()))

	_, err := svc.LectureRoster(context.Background(), "T999", models.RoleTeacher, "L001")
	requireErrorCode(t, err, appErrors.ErrForbidden.Code)

	// Admins bypass ownership.
	_, err = svc.LectureRoster(context.Background(), "A001", models.RoleAdmin, "L001")
	require.NoError(t, err)
}

func TestRecordAttendanceMissingLectureBeatsEnrollment(t *testing.T) {
	// Unknown lecture for an unenrolled student: existence is checked first.
	svc := newAttendanceService(newFakeAttendanceRepo(), newFakeLectureRepo())
	_, err := svc.Record(context.Background(), "S999", RecordAttendanceRequest{LectureID: "L404"})
	requireErrorCode(t, err, appErrors.ErrNotFound.Code)
}
