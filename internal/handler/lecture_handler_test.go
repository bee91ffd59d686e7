package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusware/atp-api/internal/middleware"
	"github.com/campusware/atp-api/internal/models"
	"github.com/campusware/atp-api/internal/service"
	"github.com/campusware/atp-api/pkg/response"
)

type lectureRepoStub struct {
	lectures map[string]models.Lecture
}

func newLectureRepoStub(lectures ...models.Lecture) *lectureRepoStub {
	stub := &lectureRepoStub{lectures: map[string]models.Lecture{}}
	for _, l := range lectures {
		stub.lectures[l.ID] = l
	}
	return stub
}

func (s *lectureRepoStub) FindByID(_ context.Context, id string) (*models.Lecture, error) {
	l, ok := s.lectures[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &l, nil
}

func (s *lectureRepoStub) FindOverlapping(_ context.Context, teacherID string, date time.Time, start, end time.Time, excludeID string) ([]models.Lecture, error) {
	var out []models.Lecture
	for _, l := range s.lectures {
		if l.TeacherID != teacherID || !l.Date.Equal(date) || l.ID == excludeID {
			continue
		}
		if l.EndTime.After(start) && l.StartTime.Before(end) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *lectureRepoStub) Create(_ context.Context, lecture *models.Lecture) ([]models.Lecture, error) {
	lecture.ID = "L001"
	s.lectures[lecture.ID] = *lecture
	return nil, nil
}

func (s *lectureRepoStub) Update(_ context.Context, lecture *models.Lecture) ([]models.Lecture, error) {
	if _, ok := s.lectures[lecture.ID]; !ok {
		return nil, sql.ErrNoRows
	}
	s.lectures[lecture.ID] = *lecture
	return nil, nil
}

func (s *lectureRepoStub) Delete(_ context.Context, id string) error {
	if _, ok := s.lectures[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.lectures, id)
	return nil
}

func (s *lectureRepoStub) ListByTeacher(_ context.Context, teacherID string) ([]models.LectureDetail, error) {
	return nil, nil
}

func (s *lectureRepoStub) ListForStudent(_ context.Context, studentID string, date time.Time, unmarkedOnly bool) ([]models.StudentLecture, error) {
	return nil, nil
}

func (s *lectureRepoStub) CourseProgress(_ context.Context, teacherID string, now time.Time) ([]models.CourseProgress, error) {
	return nil, nil
}

type courseRepoStub struct{}

func (courseRepoStub) FindByID(_ context.Context, id string) (*models.Course, error) {
	return &models.Course{ID: id, Name: "Algorithms"}, nil
}

func (courseRepoStub) List(_ context.Context) ([]models.Course, error) {
	return []models.Course{{ID: "C001", Name: "Algorithms"}}, nil
}

func teacherContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "T001", Role: models.RoleTeacher})
	return c, w
}

func TestLectureHandlerCheckConflict(t *testing.T) {
	day := time.Date(2100, 5, 10, 0, 0, 0, 0, time.UTC)
	repo := newLectureRepoStub(models.Lecture{
		ID:        "L001",
		StartTime: day.Add(9 * time.Hour),
		EndTime:   day.Add(11 * time.Hour),
		Date:      day,
		TeacherID: "T001",
		CourseID:  "C001",
	})
	handler := NewLectureHandler(service.NewScheduleService(repo, courseRepoStub{}, nil, nil))

	payload, _ := json.Marshal(service.CheckConflictRequest{
		Date: "2100-05-10", StartTime: "10:00", EndTime: "12:00",
	})
	c, w := teacherContext(t, http.MethodPost, "/lectures/conflicts", payload)

	handler.CheckConflict(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	conflicts, ok := data["conflicts"].([]interface{})
	require.True(t, ok)
	assert.Len(t, conflicts, 1)
}

func TestLectureHandlerCreateInvalidBody(t *testing.T) {
	handler := NewLectureHandler(service.NewScheduleService(newLectureRepoStub(), courseRepoStub{}, nil, nil))
	c, w := teacherContext(t, http.MethodPost, "/lectures", []byte(`{"course_id":`))

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLectureHandlerCreateConflict(t *testing.T) {
	day := time.Date(2100, 5, 10, 0, 0, 0, 0, time.UTC)
	repo := newLectureRepoStub(models.Lecture{
		ID:        "L001",
		StartTime: day.Add(9 * time.Hour),
		EndTime:   day.Add(11 * time.Hour),
		Date:      day,
		TeacherID: "T001",
		CourseID:  "C001",
	})
	handler := NewLectureHandler(service.NewScheduleService(repo, courseRepoStub{}, nil, nil))

	payload, _ := json.Marshal(service.CreateLectureRequest{
		CourseID: "C001", Date: "2100-05-10", StartTime: "10:00", EndTime: "12:00",
	})
	c, w := teacherContext(t, http.MethodPost, "/lectures", payload)

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "SCHEDULE_CONFLICT", envelope.Error.Code)
	assert.NotNil(t, envelope.Error.Details)
}

func TestLectureHandlerDeleteNotFound(t *testing.T) {
	handler := NewLectureHandler(service.NewScheduleService(newLectureRepoStub(), courseRepoStub{}, nil, nil))
	c, w := teacherContext(t, http.MethodDelete, "/lectures/L404", nil)
	c.Params = gin.Params{{Key: "id", Value: "L404"}}

	handler.Delete(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLectureHandlerUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewLectureHandler(service.NewScheduleService(newLectureRepoStub(), courseRepoStub{}, nil, nil))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/lectures/board", nil)
	c.Request = req

	handler.Board(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
