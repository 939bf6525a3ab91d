package otel

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Gauges supplies point-in-time counts read on every scrape. Nil funcs are skipped.
type Gauges struct {
	Collections func() map[string]int // items per collection kind
	TaskStatus  func() map[string]int // tasks per status
}

type instruments struct {
	mutations   metric.Int64Counter
	writeLat    metric.Float64Histogram
	pushes      metric.Int64Counter
	sseEvents   metric.Int64Counter
	sseDropped  metric.Int64Counter
	callbackReg metric.Registration
}

var (
	active         atomic.Pointer[instruments]
	sseConnections atomic.Int64
	quotaExceeded  atomic.Bool
)

// Instrument creates the instruments on t's provider and makes them the target of the
// Record helpers. Calling it again, on this or another Telemetry, replaces them.
func (t *Telemetry) Instrument(g Gauges) error {
	if t == nil || t.provider == nil {
		return errors.New("otel: telemetry not set up")
	}
	m := t.provider.Meter(meterName)
	var (
		ins  instruments
		errs []error
		err  error
	)
	ins.mutations, err = m.Int64Counter("vexum_mutations_total",
		metric.WithDescription("State store mutations by collection, operation and outcome"))
	errs = append(errs, err)
	ins.writeLat, err = m.Float64Histogram("vexum_backend_write_seconds",
		metric.WithDescription("Latency of persistence adapter writes"), metric.WithUnit("s"))
	errs = append(errs, err)
	ins.pushes, err = m.Int64Counter("vexum_push_snapshots_total",
		metric.WithDescription("Snapshots delivered by the backend subscription"))
	errs = append(errs, err)
	ins.sseEvents, err = m.Int64Counter("vexum_sse_events_total",
		metric.WithDescription("Events published to /stream"))
	errs = append(errs, err)
	ins.sseDropped, err = m.Int64Counter("vexum_sse_dropped_total",
		metric.WithDescription("Events discarded for slow /stream subscribers"))
	errs = append(errs, err)
	conns, err := m.Int64ObservableGauge("vexum_sse_connections",
		metric.WithDescription("Open /stream subscriptions"))
	errs = append(errs, err)
	quota, err := m.Int64ObservableGauge("vexum_quota_exceeded",
		metric.WithDescription("1 while writes are blocked by a backend quota"))
	errs = append(errs, err)
	items, err := m.Int64ObservableGauge("vexum_collection_items",
		metric.WithDescription("Items per collection"))
	errs = append(errs, err)
	tasks, err := m.Int64ObservableGauge("vexum_tasks",
		metric.WithDescription("Tasks by status"))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return err
	}

	ins.callbackReg, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(conns, sseConnections.Load())
		var q int64
		if quotaExceeded.Load() {
			q = 1
		}
		o.ObserveInt64(quota, q)
		if g.Collections != nil {
			for kind, n := range g.Collections() {
				o.ObserveInt64(items, int64(n), metric.WithAttributes(AttrKind.String(kind)))
			}
		}
		if g.TaskStatus != nil {
			for status, n := range g.TaskStatus() {
				o.ObserveInt64(tasks, int64(n), metric.WithAttributes(AttrStatus.String(status)))
			}
		}
		return nil
	}, conns, quota, items, tasks)
	if err != nil {
		return err
	}
	if prev := active.Swap(&ins); prev != nil {
		_ = prev.callbackReg.Unregister()
	}
	return nil
}

// RecordMutation counts one state store mutation.
func RecordMutation(ctx context.Context, kind, op, outcome string) {
	if ins := active.Load(); ins != nil {
		ins.mutations.Add(ctx, 1, metric.WithAttributes(
			AttrKind.String(kind), AttrOperation.String(op), AttrOutcome.String(outcome)))
	}
}

// RecordBackendWrite records the latency of one adapter write.
func RecordBackendWrite(ctx context.Context, kind string, d time.Duration, ok bool) {
	ins := active.Load()
	if ins == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	ins.writeLat.Record(ctx, d.Seconds(), metric.WithAttributes(AttrKind.String(kind), AttrOutcome.String(outcome)))
}

// RecordPushSnapshot counts one pushed snapshot. changed is false for echoes of our
// own writes.
func RecordPushSnapshot(ctx context.Context, changed bool) {
	if ins := active.Load(); ins != nil {
		ins.pushes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("changed", changed)))
	}
}

// RecordSSEEvent counts one published event and the copies dropped for slow readers.
func RecordSSEEvent(ctx context.Context, dropped int) {
	ins := active.Load()
	if ins == nil {
		return
	}
	ins.sseEvents.Add(ctx, 1)
	if dropped > 0 {
		ins.sseDropped.Add(ctx, int64(dropped))
	}
}

// SSEConnected moves the open-subscription gauge by delta. It never goes below zero.
func SSEConnected(delta int64) {
	if sseConnections.Add(delta) < 0 {
		sseConnections.Store(0)
	}
}

func SetQuotaExceeded(on bool) { quotaExceeded.Store(on) }
