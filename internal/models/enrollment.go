package models

// Enrollment links a student to a specific teacher's offering of a
// course (the student_course triple). Reference data for the scheduling
// and attendance core; maintained by administrators.
type Enrollment struct {
	StudentID string `db:"stud_id" json:"stud_id"`
	CourseID  string `db:"course_id" json:"course_id"`
	TeacherID string `db:"t_id" json:"t_id"`
}

// Course is a taught subject referenced by lectures and enrollments.
type Course struct {
	ID   string `db:"course_id" json:"course_id"`
	Name string `db:"course_name" json:"course_name"`
}
