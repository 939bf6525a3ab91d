package models

import "time"

// SyncStatus is the process-wide sync status: the last failed operation, quota mode and
// the per-collection version stamps (bumped on every applied change).
type SyncStatus struct {
	LastError     string          `json:"lastError,omitempty"`
	LastErrorAt   *time.Time      `json:"lastErrorAt,omitempty"`
	LastErrorKind Kind            `json:"lastErrorKind,omitempty"`
	QuotaExceeded bool            `json:"quotaExceeded"`
	Versions      map[Kind]uint64 `json:"versions"`
	Counts        map[Kind]int    `json:"counts"`
}

// ReportRequest selects the period and subject of a monthly report and carries the
// free-text sections entered by the user.
type ReportRequest struct {
	ClientName    string              `json:"clientName"`
	StaffName     string              `json:"staffName"`
	Year          int                 `json:"year"`
	Month         int                 `json:"month"`
	Comments      string              `json:"comments"`
	Issues        string              `json:"issues"`
	NextMonthPlan string              `json:"nextMonthPlan"`
	UpcomingTasks []UpcomingTaskEntry `json:"upcomingTasks"`
	ImageURL      *string             `json:"imageUrl,omitempty"`
}

// ShiftBulkRequest creates one copy of Shift per date.
type ShiftBulkRequest struct {
	Shift Shift       `json:"shift"`
	Dates []time.Time `json:"dates"`
}

// BackupStatus summarizes whether a backup export is due.
type BackupStatus struct {
	LastBackup     *time.Time `json:"lastBackup,omitempty"`
	DaysSince      int        `json:"daysSince"`
	Recommended    bool       `json:"recommended"`
	SizeBytes      int        `json:"sizeBytes"`
	BudgetBytes    int        `json:"budgetBytes"`
	OverBudget     bool       `json:"overBudget"`
	UsedPercentage float64    `json:"usedPercentage"`
}

// StreamEvent is one server-sent event from /stream.
type StreamEvent struct {
	Type     string    `json:"type"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Reminder *Reminder `json:"reminder,omitempty"`
}

// Reminder is the periodic digest published as a "reminder" event: tasks due in
// DueSoonDays, overdue tasks and backup advice.
type Reminder struct {
	At      time.Time    `json:"at"`
	DueSoon []Task       `json:"dueSoon"`
	Overdue []Task       `json:"overdue"`
	Backup  BackupStatus `json:"backup"`
}
