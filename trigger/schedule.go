package trigger

import (
	"fmt"
	"sort"
	"time"

	"github.com/kbukum/orchestrator/validation"
)

// Schedule kinds.
const (
	KindInterval       = "Interval"
	KindTumblingWindow = "TumblingWindow"
	KindDailyAt        = "DailyAt"
)

// Schedule computes trigger boundaries relative to an anchor. The anchor is
// the trigger start time expressed in the trigger's time zone.
type Schedule interface {
	Kind() string
	// Latest returns the most recent boundary <= now, or false when no
	// boundary has been reached yet.
	Latest(anchor, now time.Time) (time.Time, bool)
	// Next returns the first boundary strictly after t.
	Next(anchor, after time.Time) time.Time
	validate(v *validation.Validator)
}

// Unit is an Interval granularity.
type Unit string

const (
	Minute Unit = "minute"
	Hour   Unit = "hour"
	Day    Unit = "day"
	Week   Unit = "week"
	Month  Unit = "month"
)

// Interval fires every Every units since the anchor. Day, week and month
// steps use calendar arithmetic in the anchor's location, so a daily
// interval keeps its wall-clock time across DST changes.
type Interval struct {
	Unit  Unit `json:"unit" validate:"required,oneof=minute hour day week month"`
	Every int  `json:"every" validate:"gte=1"`
}

func (Interval) Kind() string { return KindInterval }

func (i Interval) validate(v *validation.Validator) {
	v.Merge("schedule", validation.Check(i))
}

// step returns boundary k.
func (i Interval) step(anchor time.Time, k int) time.Time {
	n := k * i.Every
	switch i.Unit {
	case Minute:
		return anchor.Add(time.Duration(n) * time.Minute)
	case Hour:
		return anchor.Add(time.Duration(n) * time.Hour)
	case Day:
		return anchor.AddDate(0, 0, n)
	case Week:
		return anchor.AddDate(0, 0, 7*n)
	default:
		return addMonths(anchor, n)
	}
}

// addMonths steps whole calendar months from t, clamping the day to the
// length of the target month: January 31 plus one month is February's last day.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d, last)-1)
}

// approx is a lower bound on the length of one step, used to seed the search.
func (i Interval) approx() time.Duration {
	unit := map[Unit]time.Duration{
		Minute: time.Minute,
		Hour:   time.Hour,
		Day:    23 * time.Hour,
		Week:   7*24*time.Hour - time.Hour,
		Month:  28 * 24 * time.Hour,
	}[i.Unit]
	return time.Duration(i.Every) * unit
}

// index returns the largest k with step(k) <= t, or -1 when t precedes the anchor.
func (i Interval) index(anchor, t time.Time) int {
	if t.Before(anchor) || i.Every < 1 {
		return -1
	}
	k := int(t.Sub(anchor) / i.approx())
	for k > 0 && i.step(anchor, k).After(t) {
		k--
	}
	for !i.step(anchor, k+1).After(t) {
		k++
	}
	return k
}

func (i Interval) Latest(anchor, now time.Time) (time.Time, bool) {
	k := i.index(anchor, now)
	if k < 0 {
		return time.Time{}, false
	}
	return i.step(anchor, k), true
}

func (i Interval) Next(anchor, after time.Time) time.Time {
	return i.step(anchor, i.index(anchor, after)+1)
}

// WindowRetry bounds re-runs of a failed tumbling window.
type WindowRetry struct {
	Count    int           `json:"count" validate:"gte=0"`
	Interval time.Duration `json:"interval" validate:"gte=0"`
}

// TumblingWindow fires at the end of each fixed, non-overlapping window
// [anchor + k*Interval, anchor + (k+1)*Interval).
type TumblingWindow struct {
	Interval time.Duration `json:"interval"`
	Retry    WindowRetry   `json:"retry"`
}

func (TumblingWindow) Kind() string { return KindTumblingWindow }

func (w TumblingWindow) validate(v *validation.Validator) {
	v.Custom(w.Interval >= time.Minute, "schedule.interval", "must be at least 1m")
	v.Merge("schedule.retry", validation.Check(w.Retry))
}

func (w TumblingWindow) Latest(anchor, now time.Time) (time.Time, bool) {
	if w.Interval <= 0 {
		return time.Time{}, false
	}
	elapsed := now.Sub(anchor)
	if elapsed < w.Interval {
		return time.Time{}, false
	}
	return anchor.Add(elapsed / w.Interval * w.Interval), true
}

func (w TumblingWindow) Next(anchor, after time.Time) time.Time {
	if after.Before(anchor) {
		return anchor.Add(w.Interval)
	}
	b, ok := w.Latest(anchor, after)
	if !ok {
		return anchor.Add(w.Interval)
	}
	return b.Add(w.Interval)
}

// WindowFor returns the window that ends at boundary.
func (w TumblingWindow) WindowFor(boundary time.Time) Window {
	return Window{Start: boundary.Add(-w.Interval), End: boundary}
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DailyAt fires once per day at Hour:Minute in the anchor's location, on
// days whose occurrence is not before the anchor.
type DailyAt struct {
	Hour   int `json:"hour" validate:"gte=0,lte=23"`
	Minute int `json:"minute" validate:"gte=0,lte=59"`
}

func (DailyAt) Kind() string { return KindDailyAt }

func (d DailyAt) validate(v *validation.Validator) {
	v.Merge("schedule", validation.Check(d))
}

func (d DailyAt) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), d.Hour, d.Minute, 0, 0, day.Location())
}

func (d DailyAt) Latest(anchor, now time.Time) (time.Time, bool) {
	local := now.In(anchor.Location())
	b := d.on(local)
	if b.After(local) {
		b = d.on(local.AddDate(0, 0, -1))
	}
	if b.Before(anchor) {
		return time.Time{}, false
	}
	return b, true
}

func (d DailyAt) Next(anchor, after time.Time) time.Time {
	if after.Before(anchor) {
		after = anchor.Add(-time.Nanosecond)
	}
	local := after.In(anchor.Location())
	b := d.on(local)
	if !b.After(local) {
		b = d.on(local.AddDate(0, 0, 1))
	}
	return b
}

// Describe renders a schedule for listings, for example "every 5 minute".
func Describe(s Schedule) string {
	switch t := s.(type) {
	case Interval:
		return fmt.Sprintf("every %d %s", t.Every, t.Unit)
	case TumblingWindow:
		return fmt.Sprintf("tumbling %s (retry %dx every %s)", t.Interval, t.Retry.Count, t.Retry.Interval)
	case DailyAt:
		return fmt.Sprintf("daily at %02d:%02d", t.Hour, t.Minute)
	default:
		return "unknown"
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
