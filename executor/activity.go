package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/orchestrator/history"
	"github.com/kbukum/orchestrator/httpclient"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/pipeline"
	"github.com/kbukum/orchestrator/resilience"
)

// errInterrupted marks an attempt that never started because the run was
// cancelled while waiting for a slot.
var errInterrupted = errors.New("run cancelled")

// Attempt outcomes reported to metrics.
const (
	outcomeSuccess        = "success"
	outcomeHTTPError      = "http_error"
	outcomeTransportError = "transport_error"
)

func buildRequest(a *pipeline.Activity, vars map[string]string) (httpclient.Request, error) {
	u, err := pipeline.ResolveURL(a.URL, vars)
	if err != nil {
		return httpclient.Request{}, fmt.Errorf("url: %w", err)
	}
	req := httpclient.Request{Method: a.Method, URL: u}

	hasContentType := false
	for _, h := range a.Headers {
		v, err := pipeline.Resolve(h.Value, vars)
		if err != nil {
			return httpclient.Request{}, fmt.Errorf("header %s: %w", h.Name, err)
		}
		req.Headers = append(req.Headers, httpclient.Header{Name: h.Name, Value: v})
		hasContentType = hasContentType || strings.EqualFold(h.Name, "Content-Type")
	}

	if a.Body != "" {
		body, err := pipeline.Resolve(a.Body, vars)
		if err != nil {
			return httpclient.Request{}, fmt.Errorf("body: %w", err)
		}
		if !hasContentType && json.Valid([]byte(body)) {
			req.Headers = append(req.Headers, httpclient.Header{Name: "Content-Type", Value: "application/json"})
		}
		req.Body = []byte(body)
	}
	return req, nil
}

// httpCall performs a with fixed-interval retries. Success is the first 2xx
// response; every attempt is recorded.
func (r *run) httpCall(ctx context.Context, ref history.ActivityRef, a *pipeline.Activity, vars map[string]string) result {
	req, err := buildRequest(a, vars)
	if err != nil {
		return result{status: history.ActivityFailed, err: err.Error()}
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = r.exec.cfg.DefaultTimeout
	}

	var (
		number  int
		last    history.Attempt
		retries = resilience.FixedRetryConfig(a.Retry.Attempts(), a.Retry.Interval)
	)
	retries.RetryIf = func(err error) bool { return !errors.Is(err, errInterrupted) }
	retries.OnRetry = func(attempt int, err error, wait time.Duration) {
		r.log.Debug("activity attempt failed, retrying", logger.Fields(
			logger.FieldActivity, ref.Key, logger.FieldAttempt, attempt, "wait_ms", wait.Milliseconds(), logger.FieldError, err.Error()))
	}

	_, err = resilience.Retry(r.ctx, retries, func() (*httpclient.Response, error) {
		release, err := r.exec.bulkhead.Acquire(r.ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInterrupted, err)
		}
		defer release()
		number++
		resp, err := r.attempt(ctx, ref, req, number, timeout)
		last = attemptRecord(number, resp, err)
		return resp, err
	})
	if err == nil {
		return result{status: history.ActivitySucceeded, httpStatus: last.HTTPStatus}
	}

	if r.ctx.Err() != nil && number < a.Retry.Attempts() {
		r.interrupted.Store(true)
	}
	msg := last.Error
	if number == 0 {
		msg = errInterrupted.Error()
	}
	return result{status: history.ActivityFailed, httpStatus: last.HTTPStatus, err: msg}
}

// attempt sends one request under its own timeout. The context is detached
// from run cancellation so an in-flight request is never aborted by Cancel.
func (r *run) attempt(ctx context.Context, ref history.ActivityRef, req httpclient.Request, number int, timeout time.Duration) (*httpclient.Response, error) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	started := r.exec.now()
	resp, err := r.exec.client.Do(actx, req)
	if err != nil && httpclient.IsTimeout(err) {
		err = fmt.Errorf("timed out after %s: %w", timeout, err)
	}

	rec := attemptRecord(number, resp, err)
	rec.StartedAt, rec.EndedAt = started, r.exec.now()
	r.record(r.exec.history.RecordActivityAttempt(context.WithoutCancel(ctx), r.id, ref, rec))

	outcome := outcomeSuccess
	switch {
	case err != nil && resp != nil:
		outcome = outcomeHTTPError
	case err != nil:
		outcome = outcomeTransportError
	}
	r.exec.metrics.Attempt(context.WithoutCancel(ctx), r.p.Name, ref.Name, outcome)
	return resp, err
}

func attemptRecord(number int, resp *httpclient.Response, err error) history.Attempt {
	rec := history.Attempt{Number: number}
	if resp != nil {
		code := resp.StatusCode
		rec.HTTPStatus = &code
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// forEach runs the nested DAG once per item in batches. Batch N+1 starts only
// after batch N is terminal; items not run because of cancellation count as
// failed.
func (r *run) forEach(ctx context.Context, s scope, ref history.ActivityRef, a *pipeline.Activity) result {
	items, ok := s.items[a.Name]
	if !ok {
		var err error
		if items, err = pipeline.EvaluateItems(a.Items, s.bound); err != nil {
			return result{status: history.ActivityFailed, err: err.Error()}
		}
	}

	var (
		mu        sync.Mutex
		succeeded int
		sub       outcome
		firstErr  string
	)
	size := a.BatchSize()
	for start := 0; start < len(items); start += size {
		if r.ctx.Err() != nil {
			r.interrupted.Store(true)
			break
		}
		end := min(start+size, len(items))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				o := r.runGraph(ctx, s.forItem(ref.Key, i, items[i]), a.Activities)
				mu.Lock()
				defer mu.Unlock()
				sub.merge(o)
				switch {
				case o.failure == "" && o.succeeded:
					succeeded++
				case o.failure != "" && firstErr == "":
					firstErr = o.failure
				}
			}(i)
		}
		wg.Wait()
	}

	failed := len(items) - succeeded
	res := result{sub: sub}
	switch {
	case failed == 0:
		res.status = history.ActivitySucceeded
	case succeeded > 0:
		res.status = history.ActivitySucceeded
		res.partial = true
		res.err = fmt.Sprintf("%d of %d items failed", failed, len(items))
	default:
		res.status = history.ActivityFailed
		res.err = fmt.Sprintf("all %d items failed", len(items))
		if firstErr != "" {
			res.err += ": " + firstErr
		}
	}
	return res
}
