// Package models provides the entity types shared by the state store, the persistence
// adapters, the HTTP API and pkg/client. JSON field names are the wire format of the
// backend contract and of export/import documents.
package models

import "time"

// Entity is implemented by every root entity kind.
type Entity interface {
	EntityID() string
}

// AssignmentPeriod is the span a staff member is assigned to a client. A nil End means ongoing.
type AssignmentPeriod struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end"`
}

// Contact holds optional contact details.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Staff is a staff member and their current client assignment.
type Staff struct {
	ID                     string           `json:"id"`
	Name                   string           `json:"name"`
	CurrentClient          string           `json:"currentClient"`
	AssignmentPeriod       AssignmentPeriod `json:"assignmentPeriod"`
	Contact                Contact          `json:"contact"`
	ProfileImage           *string          `json:"profileImage"`
	DailyReportURL         string           `json:"dailyReportUrl"`
	DailyReportLastUpdated *time.Time       `json:"dailyReportLastUpdated"`
	CreatedAt              time.Time        `json:"createdAt"`
	UpdatedAt              time.Time        `json:"updatedAt"`
}

func (s Staff) EntityID() string { return s.ID }

// Active reports whether the assignment is ongoing or ends after now.
func (s Staff) Active(now time.Time) bool {
	return s.AssignmentPeriod.End == nil || s.AssignmentPeriod.End.After(now)
}

// Task is a unit of client work owned by a staff member.
type Task struct {
	ID                    string     `json:"id"`
	TaskName              string     `json:"taskName"`
	ProjectName           string     `json:"projectName"`
	ClientName            string     `json:"clientName"`
	StaffID               string     `json:"staffId"`
	StartDate             *time.Time `json:"startDate"`
	Deadline              time.Time  `json:"deadline"`
	CompletionRate        int        `json:"completionRate"`
	Status                TaskStatus `json:"status"`
	Overview              string     `json:"overview"`
	Achievements          string     `json:"achievements"`
	Results               string     `json:"results"`
	Technologies          []string   `json:"technologies"`
	Notes                 string     `json:"notes"`
	CreatedFromMeetingID  *string    `json:"createdFromMeetingId"`
	CreatedFromDecisionID *string    `json:"createdFromDecisionId,omitempty"`
	ReportToMeetingID     *string    `json:"reportToMeetingId"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

func (t Task) EntityID() string { return t.ID }

// Overdue reports whether the deadline has passed and the task is not completed.
func (t Task) Overdue(now time.Time) bool {
	return t.Status != TaskCompleted && t.Deadline.Before(now)
}

// Decision is a recorded meeting outcome that can be promoted into a Task.
// TaskID, once set, is never reassigned.
type Decision struct {
	ID            string  `json:"id"`
	Content       string  `json:"content"`
	TaskID        *string `json:"taskId"`
	IsTaskCreated bool    `json:"isTaskCreated"`
}

// PendingPromotion reports whether the decision asks for a task that does not exist yet.
func (d Decision) PendingPromotion() bool {
	return d.IsTaskCreated && d.TaskID == nil
}

// Meeting is a client meeting record.
type Meeting struct {
	ID              string     `json:"id"`
	Date            time.Time  `json:"date"`
	Title           string     `json:"title"`
	ClientName      string     `json:"clientName"`
	StaffIDs        []string   `json:"staffIds"`
	Participants    []string   `json:"participants"`
	Agenda          string     `json:"agenda"`
	Decisions       []Decision `json:"decisions"`
	Actions         string     `json:"actions"`
	Notes           string     `json:"notes"`
	NextMeetingDate *time.Time `json:"nextMeetingDate"`
	NextAgenda      string     `json:"nextAgenda"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (m Meeting) EntityID() string { return m.ID }

// ReportTaskSnapshot is a task copied into a monthly report at generation time.
type ReportTaskSnapshot struct {
	ProjectName    string   `json:"projectName"`
	Overview       string   `json:"overview"`
	Achievements   string   `json:"achievements"`
	Results        string   `json:"results"`
	Technologies   []string `json:"technologies"`
	CompletionRate int      `json:"completionRate"`
}

// UpcomingTaskEntry is a planned item listed in a monthly report.
type UpcomingTaskEntry struct {
	TaskName string `json:"taskName"`
	Details  string `json:"details"`
}

// MonthlyReport is an immutable point-in-time report for one client and staff member.
type MonthlyReport struct {
	ID            string               `json:"id"`
	ClientName    string               `json:"clientName"`
	StaffName     string               `json:"staffName"`
	Year          int                  `json:"year"`
	Month         int                  `json:"month"`
	StartDate     time.Time            `json:"startDate"`
	EndDate       time.Time            `json:"endDate"`
	Tasks         []ReportTaskSnapshot `json:"tasks"`
	Comments      string               `json:"comments"`
	Issues        string               `json:"issues"`
	NextMonthPlan string               `json:"nextMonthPlan"`
	UpcomingTasks []UpcomingTaskEntry  `json:"upcomingTasks"`
	GeneratedAt   time.Time            `json:"generatedAt"`
	ImageURL      *string              `json:"imageUrl"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

func (r MonthlyReport) EntityID() string { return r.ID }

// Shift is one scheduled working day. StaffID is free text, not necessarily a Staff id.
type Shift struct {
	ID         string    `json:"id"`
	ClientName string    `json:"clientName"`
	StaffID    string    `json:"staffId"`
	Date       time.Time `json:"date"`
	StartTime  string    `json:"startTime"`
	EndTime    string    `json:"endTime"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (s Shift) EntityID() string { return s.ID }

// Memo is a free-text note.
type Memo struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m Memo) EntityID() string { return m.ID }
