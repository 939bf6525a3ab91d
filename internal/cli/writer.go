package cli

import (
	"context"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/pkg/client"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
	"github.com/spf13/cobra"
)

// entityWriter is the write side the entity commands use. A local state store writes
// directly; daemonWriter hands each write to the running daemon's entity routes so it
// queues behind the daemon's other writes instead of replacing whole collections.
type entityWriter interface {
	AddStaff(ctx context.Context, draft models.Staff) (models.Staff, error)
	UpdateStaff(ctx context.Context, id string, patch models.StaffPatch) (models.Staff, error)
	DeleteStaff(ctx context.Context, id string) error
	AddTask(ctx context.Context, draft models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	AddMeeting(ctx context.Context, draft models.Meeting) (models.Meeting, error)
	UpdateMeeting(ctx context.Context, id string, patch models.MeetingPatch) (models.Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error
	GenerateMonthlyReport(ctx context.Context, req models.ReportRequest) (models.MonthlyReport, error)
	DeleteReport(ctx context.Context, id string) error
	AddShifts(ctx context.Context, template models.Shift, dates []time.Time) ([]models.Shift, error)
	DeleteShift(ctx context.Context, id string) error
	AddMemo(ctx context.Context, content string) (models.Memo, error)
	DeleteMemo(ctx context.Context, id string) error
	Import(ctx context.Context, doc []byte) error
}

var (
	_ entityWriter = (*state.Store)(nil)
	_ entityWriter = daemonWriter{}
)

// withWriter is withState for commands that write. Reads come from st; writes go to w,
// which is the daemon's API while one is running and st otherwise.
func withWriter(cmd *cobra.Command, ro *rootOptions, fn func(st *state.Store, w entityWriter) error) error {
	cfg, viaDaemon, err := resolveConfig(cmd, ro)
	if err != nil {
		return err
	}
	st, err := loadState(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	var w entityWriter = st
	if viaDaemon {
		w = daemonWriter{c: client.New(cfg.URL, cfg.APIKey)}
	}
	return fn(st, w)
}

type daemonWriter struct {
	c *client.Client
}

func (d daemonWriter) AddStaff(ctx context.Context, draft models.Staff) (models.Staff, error) {
	return d.c.CreateStaff(ctx, draft)
}

func (d daemonWriter) UpdateStaff(ctx context.Context, id string, patch models.StaffPatch) (models.Staff, error) {
	return d.c.UpdateStaff(ctx, id, patch)
}

func (d daemonWriter) DeleteStaff(ctx context.Context, id string) error {
	return d.c.DeleteStaff(ctx, id)
}

func (d daemonWriter) AddTask(ctx context.Context, draft models.Task) (models.Task, error) {
	return d.c.CreateTask(ctx, draft)
}

func (d daemonWriter) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	return d.c.UpdateTask(ctx, id, patch)
}

func (d daemonWriter) DeleteTask(ctx context.Context, id string) error {
	return d.c.DeleteTask(ctx, id)
}

func (d daemonWriter) AddMeeting(ctx context.Context, draft models.Meeting) (models.Meeting, error) {
	return d.c.CreateMeeting(ctx, draft)
}

func (d daemonWriter) UpdateMeeting(ctx context.Context, id string, patch models.MeetingPatch) (models.Meeting, error) {
	return d.c.UpdateMeeting(ctx, id, patch)
}

func (d daemonWriter) DeleteMeeting(ctx context.Context, id string) error {
	return d.c.DeleteMeeting(ctx, id)
}

func (d daemonWriter) GenerateMonthlyReport(ctx context.Context, req models.ReportRequest) (models.MonthlyReport, error) {
	return d.c.GenerateReport(ctx, req)
}

func (d daemonWriter) DeleteReport(ctx context.Context, id string) error {
	return d.c.DeleteReport(ctx, id)
}

func (d daemonWriter) AddShifts(ctx context.Context, template models.Shift, dates []time.Time) ([]models.Shift, error) {
	return d.c.CreateShifts(ctx, models.ShiftBulkRequest{Shift: template, Dates: dates})
}

func (d daemonWriter) DeleteShift(ctx context.Context, id string) error {
	return d.c.DeleteShift(ctx, id)
}

func (d daemonWriter) AddMemo(ctx context.Context, content string) (models.Memo, error) {
	return d.c.CreateMemo(ctx, content)
}

func (d daemonWriter) DeleteMemo(ctx context.Context, id string) error {
	return d.c.DeleteMemo(ctx, id)
}

func (d daemonWriter) Import(ctx context.Context, doc []byte) error {
	return d.c.Import(ctx, doc)
}
