package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusware/atp-api/internal/models"
)

func sampleSummary() []models.AttendanceSummary {
	return []models.AttendanceSummary{
		{CourseID: "C001", CourseName: "Algorithms", TotalLectures: 4, Attended: 3, Percentage: 75},
		{CourseID: "C002", CourseName: "Databases", TotalLectures: 0, Attended: 0, Percentage: 0},
	}
}

func TestSummaryCSV(t *testing.T) {
	out, err := SummaryCSV(sampleSummary())
	require.NoError(t, err)

	csv := string(out)
	assert.Contains(t, csv, "Course,Total Lectures,Attended,Percentage")
	assert.Contains(t, csv, "Algorithms,4,3,75.00")
	assert.Contains(t, csv, "Databases,0,0,0.00")
}

func TestSummaryPDF(t *testing.T) {
	out, err := SummaryPDF(sampleSummary(), "Attendance Summary")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}
