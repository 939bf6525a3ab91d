package models

import "time"

// Patches carry only the fields to change. A nil pointer leaves the field untouched.
// Nested objects (assignmentPeriod, contact) merge at the child level so siblings survive.

// AssignmentPeriodPatch changes part of an AssignmentPeriod. Ongoing clears End.
type AssignmentPeriodPatch struct {
	Start   *time.Time `json:"start,omitempty"`
	End     *time.Time `json:"end,omitempty"`
	Ongoing bool       `json:"ongoing,omitempty"`
}

// ContactPatch changes part of a Contact.
type ContactPatch struct {
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// StaffPatch is a partial update of a Staff member.
type StaffPatch struct {
	Name                   *string                `json:"name,omitempty"`
	CurrentClient          *string                `json:"currentClient,omitempty"`
	AssignmentPeriod       *AssignmentPeriodPatch `json:"assignmentPeriod,omitempty"`
	Contact                *ContactPatch          `json:"contact,omitempty"`
	ProfileImage           *string                `json:"profileImage,omitempty"`
	DailyReportURL         *string                `json:"dailyReportUrl,omitempty"`
	DailyReportLastUpdated *time.Time             `json:"dailyReportLastUpdated,omitempty"`
}

// Apply returns s with the patch merged over it.
func (p StaffPatch) Apply(s Staff) Staff {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.CurrentClient != nil {
		s.CurrentClient = *p.CurrentClient
	}
	if ap := p.AssignmentPeriod; ap != nil {
		if ap.Start != nil {
			s.AssignmentPeriod.Start = *ap.Start
		}
		if ap.End != nil {
			end := *ap.End
			s.AssignmentPeriod.End = &end
		}
		if ap.Ongoing {
			s.AssignmentPeriod.End = nil
		}
	}
	if c := p.Contact; c != nil {
		if c.Email != nil {
			s.Contact.Email = *c.Email
		}
		if c.Phone != nil {
			s.Contact.Phone = *c.Phone
		}
	}
	if p.ProfileImage != nil {
		s.ProfileImage = emptyToNil(*p.ProfileImage)
	}
	if p.DailyReportURL != nil {
		s.DailyReportURL = *p.DailyReportURL
	}
	if p.DailyReportLastUpdated != nil {
		t := *p.DailyReportLastUpdated
		s.DailyReportLastUpdated = &t
	}
	return s
}

// TaskPatch is a partial update of a Task. ClearStartDate removes the start date;
// an empty ReportToMeetingID clears the back-reference.
type TaskPatch struct {
	TaskName          *string     `json:"taskName,omitempty"`
	ProjectName       *string     `json:"projectName,omitempty"`
	ClientName        *string     `json:"clientName,omitempty"`
	StaffID           *string     `json:"staffId,omitempty"`
	StartDate         *time.Time  `json:"startDate,omitempty"`
	ClearStartDate    bool        `json:"clearStartDate,omitempty"`
	Deadline          *time.Time  `json:"deadline,omitempty"`
	CompletionRate    *int        `json:"completionRate,omitempty"`
	Status            *TaskStatus `json:"status,omitempty"`
	Overview          *string     `json:"overview,omitempty"`
	Achievements      *string     `json:"achievements,omitempty"`
	Results           *string     `json:"results,omitempty"`
	Technologies      *[]string   `json:"technologies,omitempty"`
	Notes             *string     `json:"notes,omitempty"`
	ReportToMeetingID *string     `json:"reportToMeetingId,omitempty"`
}

// Apply returns t with the patch merged over it.
func (p TaskPatch) Apply(t Task) Task {
	if p.TaskName != nil {
		t.TaskName = *p.TaskName
	}
	if p.ProjectName != nil {
		t.ProjectName = *p.ProjectName
	}
	if p.ClientName != nil {
		t.ClientName = *p.ClientName
	}
	if p.StaffID != nil {
		t.StaffID = *p.StaffID
	}
	if p.StartDate != nil {
		sd := *p.StartDate
		t.StartDate = &sd
	}
	if p.ClearStartDate {
		t.StartDate = nil
	}
	if p.Deadline != nil {
		t.Deadline = *p.Deadline
	}
	if p.CompletionRate != nil {
		t.CompletionRate = *p.CompletionRate
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Overview != nil {
		t.Overview = *p.Overview
	}
	if p.Achievements != nil {
		t.Achievements = *p.Achievements
	}
	if p.Results != nil {
		t.Results = *p.Results
	}
	if p.Technologies != nil {
		t.Technologies = append([]string(nil), (*p.Technologies)...)
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.ReportToMeetingID != nil {
		t.ReportToMeetingID = emptyToNil(*p.ReportToMeetingID)
	}
	return t
}

// MeetingPatch is a partial update of a Meeting. Decisions replaces the whole list;
// task links already recorded on a decision are kept regardless of the incoming value.
type MeetingPatch struct {
	Date                 *time.Time  `json:"date,omitempty"`
	Title                *string     `json:"title,omitempty"`
	ClientName           *string     `json:"clientName,omitempty"`
	StaffIDs             *[]string   `json:"staffIds,omitempty"`
	Participants         *[]string   `json:"participants,omitempty"`
	Agenda               *string     `json:"agenda,omitempty"`
	Decisions            *[]Decision `json:"decisions,omitempty"`
	Actions              *string     `json:"actions,omitempty"`
	Notes                *string     `json:"notes,omitempty"`
	NextMeetingDate      *time.Time  `json:"nextMeetingDate,omitempty"`
	ClearNextMeetingDate bool        `json:"clearNextMeetingDate,omitempty"`
	NextAgenda           *string     `json:"nextAgenda,omitempty"`
}

// Apply returns m with the patch merged over it.
func (p MeetingPatch) Apply(m Meeting) Meeting {
	if p.Date != nil {
		m.Date = *p.Date
	}
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.ClientName != nil {
		m.ClientName = *p.ClientName
	}
	if p.StaffIDs != nil {
		m.StaffIDs = append([]string(nil), (*p.StaffIDs)...)
	}
	if p.Participants != nil {
		m.Participants = append([]string(nil), (*p.Participants)...)
	}
	if p.Agenda != nil {
		m.Agenda = *p.Agenda
	}
	if p.Decisions != nil {
		m.Decisions = mergeDecisions(m.Decisions, *p.Decisions)
	}
	if p.Actions != nil {
		m.Actions = *p.Actions
	}
	if p.Notes != nil {
		m.Notes = *p.Notes
	}
	if p.NextMeetingDate != nil {
		nd := *p.NextMeetingDate
		m.NextMeetingDate = &nd
	}
	if p.ClearNextMeetingDate {
		m.NextMeetingDate = nil
	}
	if p.NextAgenda != nil {
		m.NextAgenda = *p.NextAgenda
	}
	return m
}

func mergeDecisions(existing, incoming []Decision) []Decision {
	linked := make(map[string]*string, len(existing))
	for _, d := range existing {
		if d.TaskID != nil {
			linked[d.ID] = d.TaskID
		}
	}
	out := make([]Decision, len(incoming))
	for i, d := range incoming {
		if id, ok := linked[d.ID]; ok {
			d.TaskID = id
		}
		out[i] = d
	}
	return out
}

// ReportPatch is a partial update of a MonthlyReport. Only the free-text commentary and the
// rendered image reference may change; the task snapshot and period are fixed at generation.
type ReportPatch struct {
	Comments      *string              `json:"comments,omitempty"`
	Issues        *string              `json:"issues,omitempty"`
	NextMonthPlan *string              `json:"nextMonthPlan,omitempty"`
	UpcomingTasks *[]UpcomingTaskEntry `json:"upcomingTasks,omitempty"`
	ImageURL      *string              `json:"imageUrl,omitempty"`
}

// Apply returns r with the patch merged over it.
func (p ReportPatch) Apply(r MonthlyReport) MonthlyReport {
	if p.Comments != nil {
		r.Comments = *p.Comments
	}
	if p.Issues != nil {
		r.Issues = *p.Issues
	}
	if p.NextMonthPlan != nil {
		r.NextMonthPlan = *p.NextMonthPlan
	}
	if p.UpcomingTasks != nil {
		r.UpcomingTasks = append([]UpcomingTaskEntry(nil), (*p.UpcomingTasks)...)
	}
	if p.ImageURL != nil {
		r.ImageURL = emptyToNil(*p.ImageURL)
	}
	return r
}

// ShiftPatch is a partial update of a Shift.
type ShiftPatch struct {
	ClientName *string    `json:"clientName,omitempty"`
	StaffID    *string    `json:"staffId,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	StartTime  *string    `json:"startTime,omitempty"`
	EndTime    *string    `json:"endTime,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// Apply returns s with the patch merged over it.
func (p ShiftPatch) Apply(s Shift) Shift {
	if p.ClientName != nil {
		s.ClientName = *p.ClientName
	}
	if p.StaffID != nil {
		s.StaffID = *p.StaffID
	}
	if p.Date != nil {
		s.Date = *p.Date
	}
	if p.StartTime != nil {
		s.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		s.EndTime = *p.EndTime
	}
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
	return s
}

// MemoPatch is a partial update of a Memo.
type MemoPatch struct {
	Content *string `json:"content,omitempty"`
}

// Apply returns m with the patch merged over it.
func (p MemoPatch) Apply(m Memo) Memo {
	if p.Content != nil {
		m.Content = *p.Content
	}
	return m
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
