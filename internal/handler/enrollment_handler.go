package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusware/atp-api/internal/service"
	appErrors "github.com/campusware/atp-api/pkg/errors"
	"github.com/campusware/atp-api/pkg/response"
)

// EnrollmentHandler exposes enrollment administration endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Assign godoc
// @Summary Enroll a student into a teacher's course offering
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.AssignEnrollmentRequest true "Enrollment triple"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Assign(c *gin.Context) {
	var req service.AssignEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Unassign godoc
// @Summary Remove an enrollment triple
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.AssignEnrollmentRequest true "Enrollment triple"
// @Success 204
// @Router /enrollments [delete]
func (h *EnrollmentHandler) Unassign(c *gin.Context) {
	var req service.AssignEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.enrollments.Unassign(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByStudent godoc
// @Summary List a student's enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/students/{studentId} [get]
func (h *EnrollmentHandler) ListByStudent(c *gin.Context) {
	enrollments, err := h.enrollments.ListByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// ListByCourse godoc
// @Summary List the roster of a teacher's course offering
// @Tags Enrollments
// @Produce json
// @Param courseId path string true "Course ID"
// @Param teacherId query string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/courses/{courseId} [get]
func (h *EnrollmentHandler) ListByCourse(c *gin.Context) {
	enrollments, err := h.enrollments.ListByCourse(c.Request.Context(), c.Param("courseId"), c.Query("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}
