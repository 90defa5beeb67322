package executor

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/orchestrator/dag"
	"github.com/kbukum/orchestrator/history"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/observability"
	"github.com/kbukum/orchestrator/pipeline"
)

// run is the state of one executing pipeline run.
type run struct {
	exec    *Executor
	id      string
	p       *pipeline.Pipeline
	req     Request
	root    scope
	started time.Time
	log     *logger.Logger
	handle  *Handle

	// ctx is cancelled by Cancel and Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	// interrupted is set once cancellation skipped or cut short any work.
	interrupted atomic.Bool
}

// scope is the variable and key context of one DAG: the pipeline itself or
// a single ForEach item.
type scope struct {
	bound     pipeline.Bound
	prefix    string
	parent    string
	itemIndex *int
	item      string
	// items holds pre-evaluated ForEach items of the top-level DAG.
	items map[string][]string
}

func (s scope) forItem(parentKey string, index int, item string) scope {
	i := index
	return scope{
		bound: s.bound.With(map[string]string{
			pipeline.VarItem:      item,
			pipeline.VarItemIndex: strconv.Itoa(index),
		}),
		prefix:    fmt.Sprintf("%s[%d].", parentKey, index),
		parent:    parentKey,
		itemIndex: &i,
		item:      item,
	}
}

func (s scope) ref(a *pipeline.Activity) history.ActivityRef {
	return history.ActivityRef{
		Key:       s.prefix + a.Name,
		Name:      a.Name,
		Parent:    s.parent,
		ItemIndex: s.itemIndex,
		Item:      s.item,
	}
}

// result is the terminal state of one activity.
type result struct {
	name       string
	status     history.ActivityStatus
	httpStatus *int
	err        string
	partial    bool
	// sub summarizes nested ForEach items.
	sub outcome
}

// outcome summarizes a finished DAG.
type outcome struct {
	// failure describes the first unabsorbed failed activity.
	failure   string
	absorbed  bool
	partial   bool
	succeeded bool
}

func (o *outcome) merge(sub outcome) {
	o.absorbed = o.absorbed || sub.absorbed
	o.partial = o.partial || sub.partial
	o.succeeded = o.succeeded || sub.succeeded
}

func (r *run) execute() {
	defer r.exec.finish(r)
	defer r.cancel()

	ctx, span := observability.StartSpan(r.ctx, "run "+r.p.Name, runAttrs(r)...)
	out := r.runGraph(ctx, r.root, r.p.Activities)
	status, msg := r.status(out)

	ended := r.exec.now().UTC()
	r.record(r.exec.history.RecordRunEnd(context.WithoutCancel(ctx), r.id, status, msg, ended))

	span.SetAttributes(attribute.String(observability.AttrStatus, string(status)))
	if status == history.RunFailed {
		observability.SetSpanError(span, fmt.Errorf("%s", msg))
	}
	span.End()

	d := ended.Sub(r.started)
	r.exec.metrics.RunFinished(context.WithoutCancel(ctx), r.p.Name, string(status), d)
	fields := logger.Fields(logger.FieldStatus, string(status), logger.FieldDuration, d.Milliseconds())
	if msg != "" {
		fields[logger.FieldError] = msg
	}
	if status == history.RunFailed {
		r.log.Warn("run finished", fields)
	} else {
		r.log.Info("run finished", fields)
	}

	r.handle.result = &Result{RunID: r.id, Status: status, Error: msg, StartedAt: r.started, EndedAt: ended}
	close(r.handle.done)
}

func (r *run) status(out outcome) (history.RunStatus, string) {
	interrupted := r.interrupted.Load()
	switch {
	case out.failure != "":
		return history.RunFailed, out.failure
	case interrupted && !out.succeeded:
		return history.RunFailed, "run cancelled"
	case interrupted:
		return history.RunPartialSuccess, "run cancelled"
	case out.absorbed || out.partial:
		return history.RunPartialSuccess, ""
	default:
		return history.RunSucceeded, ""
	}
}

// runGraph executes acts until every activity is terminal. Activities are
// visited in topological order, so a single pass resolves skip cascades.
func (r *run) runGraph(ctx context.Context, s scope, acts []pipeline.Activity) outcome {
	order, err := dag.TopoOrder(pipeline.Graph(acts))
	if err != nil {
		return outcome{failure: err.Error()}
	}
	byName := make(map[string]*pipeline.Activity, len(acts))
	for i := range acts {
		byName[acts[i].Name] = &acts[i]
	}

	var out outcome
	results := make(map[string]result, len(acts))
	done := make(chan result, len(acts))
	pending := order
	running := 0

	for {
		next := pending[:0:0]
		for _, name := range pending {
			a := byName[name]
			if r.ctx.Err() != nil {
				r.interrupted.Store(true)
				results[name] = r.skip(ctx, s, a)
				continue
			}
			ready, waiting := gate(a, results)
			switch {
			case waiting:
				next = append(next, name)
			case ready:
				running++
				r.dispatch(ctx, s, a, errorVars(a, results), done)
			default:
				results[name] = r.skip(ctx, s, a)
			}
		}
		pending = next
		if running == 0 {
			break
		}
		res := <-done
		running--
		results[res.name] = res
		out.merge(res.sub)
	}

	absorbed := make(map[string]bool)
	for i := range acts {
		if results[acts[i].Name].status != history.ActivitySucceeded {
			continue
		}
		for _, d := range acts[i].DependsOn {
			if d.Condition == pipeline.Failed {
				absorbed[d.Activity] = true
			}
		}
	}
	for i := range acts {
		res := results[acts[i].Name]
		switch res.status {
		case history.ActivitySucceeded:
			out.succeeded = true
			out.partial = out.partial || res.partial
		case history.ActivityFailed:
			if absorbed[res.name] {
				out.absorbed = true
			} else if out.failure == "" {
				out.failure = fmt.Sprintf("activity %s failed: %s", s.prefix+res.name, res.err)
			}
		}
	}
	return out
}

// gate reports whether a is ready to run, or still waiting on a prerequisite
// that is not terminal. Neither means it must be skipped.
func gate(a *pipeline.Activity, results map[string]result) (ready, waiting bool) {
	for _, d := range a.DependsOn {
		if _, ok := results[d.Activity]; !ok {
			return false, true
		}
	}
	for _, d := range a.DependsOn {
		if !satisfied(d.Condition, results[d.Activity].status) {
			return false, false
		}
	}
	return true, false
}

func satisfied(c pipeline.Condition, s history.ActivityStatus) bool {
	switch c {
	case pipeline.Succeeded:
		return s == history.ActivitySucceeded
	case pipeline.Failed:
		return s == history.ActivityFailed
	case pipeline.Completed:
		return s == history.ActivitySucceeded || s == history.ActivityFailed
	}
	return false
}

// errorVars binds error_message and failed_activity from the first satisfied
// Failed dependency in declaration order.
func errorVars(a *pipeline.Activity, results map[string]result) map[string]string {
	for _, d := range a.DependsOn {
		if d.Condition != pipeline.Failed {
			continue
		}
		if res := results[d.Activity]; res.status == history.ActivityFailed {
			return map[string]string{
				pipeline.VarErrorMessage:   res.err,
				pipeline.VarFailedActivity: d.Activity,
			}
		}
	}
	return nil
}

func (r *run) skip(ctx context.Context, s scope, a *pipeline.Activity) result {
	ref := s.ref(a)
	r.record(r.exec.history.RecordActivityEnd(ctx, r.id, ref, history.ActivityEnd{
		Status: history.ActivitySkipped,
		At:     r.exec.now(),
	}))
	r.log.Debug("activity skipped", logger.Fields(logger.FieldActivity, ref.Key))
	return result{name: a.Name, status: history.ActivitySkipped}
}

// dispatch records the start synchronously and runs a in the background,
// delivering its result on done.
func (r *run) dispatch(ctx context.Context, s scope, a *pipeline.Activity, extra map[string]string, done chan<- result) {
	ref := s.ref(a)
	started := r.exec.now()
	r.record(r.exec.history.RecordActivityStart(ctx, r.id, ref, started))

	go func() {
		attrs := []attribute.KeyValue{attribute.String(observability.AttrActivity, ref.Key)}
		if ref.ItemIndex != nil {
			attrs = append(attrs, attribute.Int(observability.AttrItemIndex, *ref.ItemIndex))
		}
		actx, span := observability.StartSpan(ctx, "activity "+a.Name, attrs...)

		if extra != nil {
			s.bound = s.bound.With(extra)
		}
		var res result
		switch a.Kind {
		case pipeline.KindForEach:
			res = r.forEach(actx, s, ref, a)
		default:
			res = r.httpCall(actx, ref, a, s.bound.Vars)
		}
		res.name = a.Name

		span.SetAttributes(attribute.String(observability.AttrStatus, string(res.status)))
		if res.status == history.ActivityFailed {
			observability.SetSpanError(span, fmt.Errorf("%s", res.err))
		}
		span.End()

		ended := r.exec.now()
		r.record(r.exec.history.RecordActivityEnd(context.WithoutCancel(ctx), r.id, ref, history.ActivityEnd{
			Status:     res.status,
			HTTPStatus: res.httpStatus,
			Error:      res.err,
			Partial:    res.partial,
			At:         ended,
		}))
		d := ended.Sub(started)
		r.exec.metrics.ActivityFinished(context.WithoutCancel(ctx), r.p.Name, a.Name, string(res.status), d)
		r.log.Debug("activity finished", logger.Fields(
			logger.FieldActivity, ref.Key, logger.FieldStatus, string(res.status), logger.FieldDuration, d.Milliseconds()))

		done <- res
	}()
}

// record logs a history write failure; the run carries on.
func (r *run) record(err error) {
	if err != nil {
		r.log.Error("history write failed", logger.MergeWithError(nil, err))
	}
}
