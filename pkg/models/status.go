package models

// TaskStatus is the progress state of a Task.
type TaskStatus string

// Task statuses.
const (
	TaskNotStarted TaskStatus = "not_started"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskDelayed    TaskStatus = "delayed"
)

// Valid reports whether s is one of the four task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskNotStarted, TaskInProgress, TaskCompleted, TaskDelayed:
		return true
	}
	return false
}

// Kind names a collection. It is the unit of persistence.
type Kind string

// Collection kinds.
const (
	KindStaff    Kind = "staff"
	KindTasks    Kind = "tasks"
	KindMeetings Kind = "meetings"
	KindReports  Kind = "reports"
	KindShifts   Kind = "shifts"
	KindMemos    Kind = "memos"
)

// Kinds lists every collection kind in persistence order.
var Kinds = []Kind{KindStaff, KindTasks, KindMeetings, KindReports, KindShifts, KindMemos}

// RequiredImportKinds must be present in an import document.
var RequiredImportKinds = []Kind{KindStaff, KindTasks, KindMeetings, KindReports}

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Completion rate bounds (inclusive).
const (
	MinCompletionRate = 0
	MaxCompletionRate = 100
)

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 8 << 20 // import documents can be large
	DefaultSSEChannelBuffer    = 64
	BackupBudgetBytes          = 5 << 20
	BackupRecommendAfterDays   = 7
	DueSoonDays                = 7
	DefaultPort                = 3548
	DefaultReminderIntervalSec = 300
)
