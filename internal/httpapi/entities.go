package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// entityRoutes wires GET|POST /{kind} and GET|PATCH|DELETE /{kind}/{id} for one collection.
type entityRoutes[T models.Entity, P any] struct {
	kind   models.Kind
	list   func(r *http.Request) ([]T, error)
	get    func(id string) (T, bool)
	create func(ctx context.Context, draft T) (T, error)
	update func(ctx context.Context, id string, patch P) (T, error)
	remove func(ctx context.Context, id string) error
}

func (e entityRoutes[T, P]) register(mux *http.ServeMux) {
	base := "/" + string(e.kind)
	mux.HandleFunc("GET "+base, func(w http.ResponseWriter, r *http.Request) {
		items, err := e.list(r)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, nonNil(items))
	})
	mux.HandleFunc("POST "+base, func(w http.ResponseWriter, r *http.Request) {
		var draft T
		if !decodeJSON(w, r, &draft) {
			return
		}
		out, err := e.create(r.Context(), draft)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, out)
	})
	mux.HandleFunc("GET "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		item, ok := e.get(id)
		if !ok {
			writeStoreError(w, &store.NotFoundError{Kind: e.kind, ID: id})
			return
		}
		writeJSON(w, item)
	})
	mux.HandleFunc("PATCH "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch P
		if !decodeJSON(w, r, &patch) {
			return
		}
		out, err := e.update(r.Context(), r.PathValue("id"), patch)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, out)
	})
	mux.HandleFunc("DELETE "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := e.remove(r.Context(), r.PathValue("id")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (a *App) registerEntities(mux *http.ServeMux) {
	st := a.State

	entityRoutes[models.Staff, models.StaffPatch]{
		kind: models.KindStaff,
		list: func(r *http.Request) ([]models.Staff, error) {
			if r.URL.Query().Get("active") == "true" {
				return st.ActiveStaff(), nil
			}
			return st.Staff(), nil
		},
		get:    st.GetStaff,
		create: st.AddStaff,
		update: st.UpdateStaff,
		remove: st.DeleteStaff,
	}.register(mux)

	entityRoutes[models.Task, models.TaskPatch]{
		kind: models.KindTasks,
		list: func(r *http.Request) ([]models.Task, error) {
			q := r.URL.Query()
			status := models.TaskStatus(q.Get("status"))
			if status != "" && !status.Valid() {
				return nil, store.Invalid("status", "unknown task status %q", status)
			}
			return st.ListTasks(state.TaskFilter{
				StaffID:    q.Get("staffId"),
				ClientName: q.Get("clientName"),
				Status:     status,
			}), nil
		},
		get:    st.GetTask,
		create: st.AddTask,
		update: st.UpdateTask,
		remove: st.DeleteTask,
	}.register(mux)

	entityRoutes[models.Meeting, models.MeetingPatch]{
		kind:   models.KindMeetings,
		list:   func(*http.Request) ([]models.Meeting, error) { return st.Meetings(), nil },
		get:    st.GetMeeting,
		create: st.AddMeeting,
		update: st.UpdateMeeting,
		remove: st.DeleteMeeting,
	}.register(mux)

	entityRoutes[models.MonthlyReport, models.ReportPatch]{
		kind:   models.KindReports,
		list:   func(*http.Request) ([]models.MonthlyReport, error) { return st.Reports(), nil },
		get:    st.GetReport,
		create: st.AddReport,
		update: st.UpdateReport,
		remove: st.DeleteReport,
	}.register(mux)

	entityRoutes[models.Shift, models.ShiftPatch]{
		kind: models.KindShifts,
		list: func(r *http.Request) ([]models.Shift, error) {
			q := r.URL.Query()
			if q.Get("from") == "" && q.Get("to") == "" {
				return st.Shifts(), nil
			}
			from, err := parseDay("from", q.Get("from"))
			if err != nil {
				return nil, err
			}
			to, err := parseDay("to", q.Get("to"))
			if err != nil {
				return nil, err
			}
			return st.ShiftsBetween(from, to), nil
		},
		get:    st.GetShift,
		create: st.AddShift,
		update: st.UpdateShift,
		remove: st.DeleteShift,
	}.register(mux)

	entityRoutes[models.Memo, models.MemoPatch]{
		kind: models.KindMemos,
		list: func(*http.Request) ([]models.Memo, error) { return st.Memos(), nil },
		get: func(id string) (models.Memo, bool) {
			for _, m := range st.Memos() {
				if m.ID == id {
					return m, true
				}
			}
			return models.Memo{}, false
		},
		create: func(ctx context.Context, draft models.Memo) (models.Memo, error) {
			return st.AddMemo(ctx, draft.Content)
		},
		update: st.UpdateMemo,
		remove: st.DeleteMemo,
	}.register(mux)
}

// registerWorkflow wires the operations that are not plain CRUD.
func (a *App) registerWorkflow(mux *http.ServeMux) {
	st := a.State
	mux.HandleFunc("GET /tasks/due-soon", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, nonNil(st.DueSoon()))
	})
	mux.HandleFunc("GET /tasks/overdue", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, nonNil(st.Overdue()))
	})
	mux.HandleFunc("POST /reports/generate", func(w http.ResponseWriter, r *http.Request) {
		var req models.ReportRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		report, err := st.GenerateMonthlyReport(r.Context(), req)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, report)
	})
	mux.HandleFunc("POST /shifts/bulk", func(w http.ResponseWriter, r *http.Request) {
		var req models.ShiftBulkRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		shifts, err := st.AddShifts(r.Context(), req.Shift, req.Dates)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, shifts)
	})
}

// parseDay accepts an RFC 3339 timestamp or a YYYY-MM-DD date (UTC midnight).
func parseDay(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, store.Invalid(field, "required")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, store.Invalid(field, "want YYYY-MM-DD or RFC 3339, got %q", v)
	}
	return t, nil
}
