package models

import "time"

// Attendance is a self-reported presence record. The (stud_id, l_id)
// pair is the primary key; a student can hold at most one record per
// lecture.
type Attendance struct {
	StudentID    string    `db:"stud_id" json:"stud_id"`
	LectureID    string    `db:"l_id" json:"l_id"`
	DateRecorded time.Time `db:"date_recorded" json:"date_recorded"`
	TimeRecorded time.Time `db:"time_recorded" json:"time_recorded"`
	Latitude     float64   `db:"lattitude" json:"latitude"`
	Longitude    float64   `db:"longitude" json:"longitude"`
}

// AttendanceSummary is a per-course attendance row for a student.
// Percentage is computed in the service layer, never in SQL.
type AttendanceSummary struct {
	CourseID      string  `db:"course_id" json:"course_id"`
	CourseName    string  `db:"course_name" json:"course_name"`
	TotalLectures int     `db:"total_lectures" json:"total_lectures"`
	Attended      int     `db:"attended" json:"attended"`
	Percentage    float64 `json:"percentage"`
}

// StudentLecture is a lecture row as seen by an enrolled student.
type StudentLecture struct {
	LectureID  string    `db:"l_id" json:"l_id"`
	CourseName string    `db:"course_name" json:"course_name"`
	Lecturer   string    `db:"lecturer" json:"lecturer"`
	StartTime  time.Time `db:"s_time" json:"s_time"`
	EndTime    time.Time `db:"e_time" json:"e_time"`
	Date       time.Time `db:"l_date" json:"l_date"`
}
