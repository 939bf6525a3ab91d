package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

func list[T any](ctx context.Context, c *Client, kind models.Kind) ([]T, error) {
	var out []T
	err := c.call(ctx, http.MethodGet, "/"+string(kind), nil, &out)
	return out, err
}

func get[T any](ctx context.Context, c *Client, kind models.Kind, id string) (T, error) {
	var out T
	err := c.call(ctx, http.MethodGet, "/"+string(kind)+"/"+url.PathEscape(id), nil, &out)
	return out, err
}

func create[T any](ctx context.Context, c *Client, kind models.Kind, draft any) (T, error) {
	var out T
	err := c.call(ctx, http.MethodPost, "/"+string(kind), draft, &out)
	return out, err
}

func update[T any](ctx context.Context, c *Client, kind models.Kind, id string, patch any) (T, error) {
	var out T
	err := c.call(ctx, http.MethodPatch, "/"+string(kind)+"/"+url.PathEscape(id), patch, &out)
	return out, err
}

func (c *Client) remove(ctx context.Context, kind models.Kind, id string) error {
	return c.call(ctx, http.MethodDelete, "/"+string(kind)+"/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListStaff(ctx context.Context) ([]models.Staff, error) {
	return list[models.Staff](ctx, c, models.KindStaff)
}

func (c *Client) GetStaff(ctx context.Context, id string) (models.Staff, error) {
	return get[models.Staff](ctx, c, models.KindStaff, id)
}

func (c *Client) CreateStaff(ctx context.Context, draft models.Staff) (models.Staff, error) {
	return create[models.Staff](ctx, c, models.KindStaff, draft)
}

func (c *Client) UpdateStaff(ctx context.Context, id string, patch models.StaffPatch) (models.Staff, error) {
	return update[models.Staff](ctx, c, models.KindStaff, id, patch)
}

func (c *Client) DeleteStaff(ctx context.Context, id string) error {
	return c.remove(ctx, models.KindStaff, id)
}

func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	return list[models.Task](ctx, c, models.KindTasks)
}

func (c *Client) GetTask(ctx context.Context, id string) (models.Task, error) {
	return get[models.Task](ctx, c, models.KindTasks, id)
}

func (c *Client) CreateTask(ctx context.Context, draft models.Task) (models.Task, error) {
	return create[models.Task](ctx, c, models.KindTasks, draft)
}

func (c *Client) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	return update[models.Task](ctx, c, models.KindTasks, id, patch)
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.remove(ctx, models.KindTasks, id)
}

// DueSoon returns unfinished tasks due exactly models.DueSoonDays from today.
func (c *Client) DueSoon(ctx context.Context) ([]models.Task, error) {
	var out []models.Task
	err := c.call(ctx, http.MethodGet, "/tasks/due-soon", nil, &out)
	return out, err
}

func (c *Client) ListMeetings(ctx context.Context) ([]models.Meeting, error) {
	return list[models.Meeting](ctx, c, models.KindMeetings)
}

func (c *Client) GetMeeting(ctx context.Context, id string) (models.Meeting, error) {
	return get[models.Meeting](ctx, c, models.KindMeetings, id)
}

// CreateMeeting stores a meeting; decisions flagged isTaskCreated are promoted to tasks.
func (c *Client) CreateMeeting(ctx context.Context, draft models.Meeting) (models.Meeting, error) {
	return create[models.Meeting](ctx, c, models.KindMeetings, draft)
}

func (c *Client) UpdateMeeting(ctx context.Context, id string, patch models.MeetingPatch) (models.Meeting, error) {
	return update[models.Meeting](ctx, c, models.KindMeetings, id, patch)
}

func (c *Client) DeleteMeeting(ctx context.Context, id string) error {
	return c.remove(ctx, models.KindMeetings, id)
}

func (c *Client) ListReports(ctx context.Context) ([]models.MonthlyReport, error) {
	return list[models.MonthlyReport](ctx, c, models.KindReports)
}

func (c *Client) GetReport(ctx context.Context, id string) (models.MonthlyReport, error) {
	return get[models.MonthlyReport](ctx, c, models.KindReports, id)
}

// GenerateReport builds and stores a monthly report from the matching tasks.
func (c *Client) GenerateReport(ctx context.Context, req models.ReportRequest) (models.MonthlyReport, error) {
	var out models.MonthlyReport
	err := c.call(ctx, http.MethodPost, "/reports/generate", req, &out)
	return out, err
}

func (c *Client) UpdateReport(ctx context.Context, id string, patch models.ReportPatch) (models.MonthlyReport, error) {
	return update[models.MonthlyReport](ctx, c, models.KindReports, id, patch)
}

func (c *Client) DeleteReport(ctx context.Context, id string) error {
	return c.remove(ctx, models.KindReports, id)
}

func (c *Client) ListShifts(ctx context.Context) ([]models.Shift, error) {
	return list[models.Shift](ctx, c, models.KindShifts)
}

func (c *Client) CreateShift(ctx context.Context, draft models.Shift) (models.Shift, error) {
	return create[models.Shift](ctx, c, models.KindShifts, draft)
}

// CreateShifts stores one copy of req.Shift per date in a single write.
func (c *Client) CreateShifts(ctx context.Context, req models.ShiftBulkRequest) ([]models.Shift, error) {
	var out []models.Shift
	err := c.call(ctx, http.MethodPost, "/shifts/bulk", req, &out)
	return out, err
}

func (c *Client) UpdateShift(ctx context.Context, id string, patch models.ShiftPatch) (models.Shift, error) {
	return update[models.Shift](ctx, c, models.KindShifts, id, patch)
}

func (c *Client) DeleteShift(ctx context.Context, id string) error {
	return c.remove(ctx, models.KindShifts, id)
}

func (c *Client) ListMemos(ctx context.Context) ([]models.Memo, error) {
	return list[models.Memo](ctx, c, models.KindMemos)
}

func (c *Client) CreateMemo(ctx context.Context, content string) (models.Memo, error) {
	return create[models.Memo](ctx, c, models.KindMemos, map[string]string{"content": content})
}

func (c *Client) UpdateMemo(ctx context.Context, id string, patch models.MemoPatch) (models.Memo, error) {
	return update[models.Memo](ctx, c, models.KindMemos, id, patch)
}

func (c *Client) DeleteMemo(ctx context.Context, id string) error {
	return c.remove(ctx, models.KindMemos, id)
}
