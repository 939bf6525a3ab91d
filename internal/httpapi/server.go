package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Home           string       // data directory; backup bookkeeping lives under it
	Addr           string
	Dev            bool         // allow cross-origin requests from DevOrigin
	DevOrigin      string       // default "*"
	APIKey         string       // if set, every route but /health and /metrics needs it
	State          *state.Store // loaded state store; required
	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics
	MaxBodyBytes   int64        // default models.DefaultMaxRequestBodyBytes
	Now            func() time.Time
}

// App holds the HTTP server, SSE hub, state store and home path.
type App struct {
	Server *http.Server
	Hub    *SSEHub
	State  *state.Store
	Home   string

	now       func() time.Time
	stopWatch func()
}

// NewApp creates the HTTP app and registers all routes. Every change applied to the
// state store, local or pushed, is published on /stream as a snapshot event.
func NewApp(opts ServerOptions) (*App, error) {
	if opts.State == nil {
		return nil, errors.New("httpapi: state store required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = models.DefaultMaxRequestBodyBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	st := opts.State
	app := &App{Hub: NewSSEHub(), State: st, Home: opts.Home, now: opts.Now}
	app.Hub.Initial = app.snapshotEvent
	app.stopWatch = st.Watch(func(models.Snapshot) {
		app.Hub.PublishFunc(app.snapshotEvent)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}
	mux.HandleFunc("GET /stream", app.Hub.Handler())

	app.registerData(mux, opts.MaxBodyBytes)
	app.registerEntities(mux)
	app.registerWorkflow(mux)

	var handler http.Handler = limitBodies(opts.MaxBodyBytes, mux)
	if opts.APIKey != "" {
		handler = requireAPIKey(opts.APIKey, handler)
	}
	if opts.Dev {
		handler = allowOrigin(opts.DevOrigin, handler)
	}
	handler = logRequests(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "vexum")
	}
	app.Server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Streams run until the client leaves; handlers bound their own work.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	app.Server.RegisterOnShutdown(app.Close)
	return app, nil
}

// Close stops publishing state changes. The state store itself belongs to the caller.
func (a *App) Close() {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	a.Hub.Close()
}

func (a *App) snapshotEvent() any {
	snap := a.State.Snapshot()
	return models.StreamEvent{Type: "snapshot", Snapshot: &snap}
}

// BackupStatus reports the last export time recorded under Home and whether a new
// backup is due.
func (a *App) BackupStatus() (models.BackupStatus, error) {
	var last *time.Time
	if a.Home != "" {
		l, err := config.ReadLastBackup(a.Home)
		if err != nil {
			return models.BackupStatus{}, err
		}
		last = l
	}
	doc, err := a.State.Export()
	if err != nil {
		return models.BackupStatus{}, err
	}
	return state.AdviseBackup(last, a.now(), len(doc)), nil
}

// Reminder builds the current due-soon/overdue/backup digest.
func (a *App) Reminder() (models.Reminder, error) {
	backup, err := a.BackupStatus()
	if err != nil {
		return models.Reminder{}, err
	}
	return models.Reminder{
		At:      a.now().UTC(),
		DueSoon: nonNil(a.State.DueSoon()),
		Overdue: nonNil(a.State.Overdue()),
		Backup:  backup,
	}, nil
}

// PublishReminder sends rem to every /stream subscriber as a "reminder" event.
func (a *App) PublishReminder(rem models.Reminder) {
	a.Hub.PublishJSON(models.StreamEvent{Type: "reminder", Reminder: &rem})
}

// registerData wires the backend contract (GET /data, PUT /data/{kind}) plus export,
// import, backup advice and sync status.
func (a *App) registerData(mux *http.ServeMux, maxBody int64) {
	st := a.State
	mux.HandleFunc("GET /data", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, st.Snapshot())
	})
	mux.HandleFunc("PUT /data/{kind}", func(w http.ResponseWriter, r *http.Request) {
		kind, ok := models.ParseKind(r.PathValue("kind"))
		if !ok {
			writeJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown collection %q", r.PathValue("kind")))
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		if err := st.ReplaceCollection(r.Context(), kind, body); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /export", func(w http.ResponseWriter, r *http.Request) {
		doc, err := st.Export()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		now := a.now()
		if a.Home != "" {
			if err := config.WriteLastBackup(a.Home, now); err != nil {
				slog.Warn("record backup time failed", "err", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="vexum-backup-%s.json"`, now.Format("2006-01-02")))
		_, _ = w.Write(doc)
	})
	mux.HandleFunc("POST /import", func(w http.ResponseWriter, r *http.Request) {
		doc, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("import document exceeds %d bytes", maxBody))
			return
		}
		if err := st.Import(r.Context(), doc); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /backup", func(w http.ResponseWriter, r *http.Request) {
		advice, err := a.BackupStatus()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, advice)
	})
	mux.HandleFunc("GET /reminders", func(w http.ResponseWriter, r *http.Request) {
		rem, err := a.Reminder()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, rem)
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, st.Status())
	})
	mux.HandleFunc("DELETE /status/quota", func(w http.ResponseWriter, r *http.Request) {
		st.ClearQuota()
		writeJSON(w, st.Status())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}

// writeStoreError maps the store error taxonomy onto status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, store.ErrPersistence):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
