package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusware/atp-api/internal/service"
	appErrors "github.com/campusware/atp-api/pkg/errors"
	"github.com/campusware/atp-api/pkg/response"
)

// LectureHandler exposes scheduling endpoints.
type LectureHandler struct {
	schedule *service.ScheduleService
}

// NewLectureHandler constructs LectureHandler.
func NewLectureHandler(schedule *service.ScheduleService) *LectureHandler {
	return &LectureHandler{schedule: schedule}
}

// CheckConflict godoc
// @Summary Probe the teacher's schedule for collisions
// @Tags Lectures
// @Accept json
// @Produce json
// @Param payload body service.CheckConflictRequest true "Candidate window"
// @Success 200 {object} response.Envelope
// @Router /lectures/conflicts [post]
func (h *LectureHandler) CheckConflict(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CheckConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	conflicts, err := h.schedule.CheckConflict(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"conflicts": conflicts}, nil)
}

// Create godoc
// @Summary Schedule a lecture
// @Tags Lectures
// @Accept json
// @Produce json
// @Param payload body service.CreateLectureRequest true "Lecture payload"
// @Success 201 {object} response.Envelope
// @Router /lectures [post]
func (h *LectureHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lecture, err := h.schedule.CreateLecture(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lecture)
}

// Get godoc
// @Summary Load a lecture
// @Tags Lectures
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id} [get]
func (h *LectureHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	lecture, err := h.schedule.GetLecture(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecture, nil)
}

// Update godoc
// @Summary Reschedule or relocate a lecture
// @Tags Lectures
// @Accept json
// @Produce json
// @Param id path string true "Lecture ID"
// @Param payload body service.UpdateLectureRequest true "Lecture payload"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id} [put]
func (h *LectureHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lecture, err := h.schedule.UpdateLecture(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecture, nil)
}

// Delete godoc
// @Summary Delete a lecture that has not started
// @Tags Lectures
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 204
// @Router /lectures/{id} [delete]
func (h *LectureHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.schedule.DeleteLecture(c.Request.Context(), claims.UserID, claims.Role, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Board godoc
// @Summary Teacher's lectures grouped past, today and future
// @Tags Lectures
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lectures/board [get]
func (h *LectureHandler) Board(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	board, err := h.schedule.LectureBoard(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}

// Courses godoc
// @Summary List courses available for scheduling
// @Tags Lectures
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *LectureHandler) Courses(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	courses, err := h.schedule.Courses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// CourseProgress godoc
// @Summary Held versus remaining lectures per taught course
// @Tags Lectures
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses/progress [get]
func (h *LectureHandler) CourseProgress(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	progress, err := h.schedule.CourseProgress(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// TodaysLectures godoc
// @Summary Student's lectures for today
// @Tags Lectures
// @Produce json
// @Param unmarked query bool false "Only lectures without an attendance record"
// @Success 200 {object} response.Envelope
// @Router /lectures/today [get]
func (h *LectureHandler) TodaysLectures(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	unmarkedOnly := c.Query("unmarked") == "true"
	lectures, err := h.schedule.TodaysLectures(c.Request.Context(), claims.UserID, unmarkedOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lectures, nil)
}
