package models

import "time"

// MaxLectureDuration caps a single teaching session.
const MaxLectureDuration = 5 * time.Hour

// Lecture is a scheduled teaching session stored in the legacy lecture
// table. Column names, including the lattitude spelling, are inherited
// from the production schema.
type Lecture struct {
	ID        string    `db:"l_id" json:"l_id"`
	StartTime time.Time `db:"s_time" json:"s_time"`
	EndTime   time.Time `db:"e_time" json:"e_time"`
	Date      time.Time `db:"l_date" json:"l_date"`
	TeacherID string    `db:"t_id" json:"t_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Latitude  float64   `db:"lattitude" json:"latitude"`
	Longitude float64   `db:"longitude" json:"longitude"`
}

// Duration returns the length of the session.
func (l Lecture) Duration() time.Duration {
	return l.EndTime.Sub(l.StartTime)
}

// ConflictingLecture identifies a colliding session in conflict responses.
type ConflictingLecture struct {
	LectureID string `json:"l_id"`
	StartTime string `json:"s_time"`
	EndTime   string `json:"e_time"`
}

// LectureDetail joins course and lecturer names for listings.
type LectureDetail struct {
	Lecture
	CourseName string `db:"course_name" json:"course_name"`
	Lecturer   string `db:"lecturer" json:"lecturer"`
}

// LectureBoard groups a teacher's lectures around a reference date.
type LectureBoard struct {
	Past   []LectureDetail `json:"past"`
	Today  []LectureDetail `json:"today"`
	Future []LectureDetail `json:"future"`
}

// CourseProgress summarises held versus scheduled lectures per course
// for a teacher.
type CourseProgress struct {
	CourseID      string `db:"course_id" json:"course_id"`
	CourseName    string `db:"course_name" json:"course_name"`
	TotalLectures int    `db:"total_lectures" json:"total_lectures"`
	LecturesTaken int    `db:"lectures_taken" json:"lectures_taken"`
	LecturesLeft  int    `json:"lectures_left"`
}
