package dashboard

import (
	"time"

	"portal/internal/account"
)

// Attendance request states.
const (
	AttendancePending  = "pending"
	AttendanceApproved = "approved"
)

// Homework states.
const (
	HomeworkSubmitted = "submitted"
	HomeworkGraded    = "graded"
)

// Resource file types.
const (
	FileTypeNote     = "note"
	FileTypeHomework = "homework"
)

// MaxPointsAward bounds a single award so totals stay within the points column.
const MaxPointsAward = 100000

// DefaultAttendanceNote is stored when a student leaves the note empty.
const DefaultAttendanceNote = "no notes"

// AttendanceRequest is a student's claim to have attended a session.
type AttendanceRequest struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"studentId"`
	StudentName string     `json:"studentName"`
	Date        string     `json:"date"`
	Note        string     `json:"note"`
	Status      string     `json:"status"`
	ApprovedBy  string     `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Homework is a submitted assignment.
type Homework struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"studentId"`
	StudentName string     `json:"studentName"`
	FileTitle   string     `json:"fileTitle"`
	FileName    string     `json:"fileName"`
	FileURL     string     `json:"fileUrl"`
	Status      string     `json:"status"`
	Grade       string     `json:"grade,omitempty"`
	AdminNote   string     `json:"adminNote,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
	GradedAt    *time.Time `json:"gradedAt,omitempty"`
}

// File is a published note or homework sheet.
type File struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// Quiz is a published quiz link.
type Quiz struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdminStats feeds the administrator's counters.
type AdminStats struct {
	TotalStudents int `json:"totalStudents"`
	PendingUsers  int `json:"pendingUsers"`
	TotalPoints   int `json:"totalPoints"`
	PresentToday  int `json:"presentToday"`
}

// SecretaryStats feeds the secretary's counters.
type SecretaryStats struct {
	StudentsToday     int `json:"studentsToday"`
	PendingAttendance int `json:"pendingAttendance"`
}

// Me is a student's own view of their profile.
type Me struct {
	account.Profile
	Rank string `json:"rank"`
}

// Rank names the tier a points total earns.
func Rank(points int) string {
	switch {
	case points > 500:
		return "school legend"
	case points > 100:
		return "distinguished hero"
	}
	return "diligent student"
}
