package history

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/kbukum/orchestrator/database"
)

// eventsChunk bounds the run ids sent in one IN clause.
const eventsChunk = 500

// eventRecord is a row of history_events. Times are stored as Unix
// nanoseconds so equality on scheduled_at is exact on every driver. Status is
// only set on run_finished rows.
type eventRecord struct {
	Seq         int64  `gorm:"primaryKey;autoIncrement"`
	RunID       string `gorm:"size:36;not null;index"`
	Kind        string `gorm:"size:32;not null;index:idx_history_events_start,priority:1"`
	Pipeline    string `gorm:"size:255;index:idx_history_events_start,priority:2"`
	TriggerName string `gorm:"column:trigger_name;size:255;index:idx_history_events_start,priority:3"`
	Status      string `gorm:"size:32;index"`
	ScheduledAt *int64 `gorm:"index"`
	OccurredAt  int64  `gorm:"not null;index"`
	Payload     string `gorm:"type:text;not null"`
}

func (eventRecord) TableName() string { return "history_events" }

// Models lists what GormBackend needs migrated.
func Models() []any { return []any{&eventRecord{}} }

// GormBackend stores the log in a SQL table through GORM.
type GormBackend struct {
	db *gorm.DB
}

var _ Backend = (*GormBackend)(nil)

// NewGormBackend wraps an open connection. The table must exist; see Models.
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

func unixNano(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	n := t.UnixNano()
	return &n
}

func newEventRecord(ev *Event) (eventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return eventRecord{}, fmt.Errorf("history: encode event: %w", err)
	}
	rec := eventRecord{
		RunID:       ev.RunID,
		Kind:        string(ev.Kind),
		Pipeline:    ev.Pipeline,
		TriggerName: ev.Trigger,
		ScheduledAt: unixNano(ev.ScheduledAt),
		OccurredAt:  ev.At.UnixNano(),
		Payload:     string(payload),
	}
	if ev.Kind == EventRunFinished {
		rec.Status = ev.Status
	}
	return rec, nil
}

func (b *GormBackend) Append(ctx context.Context, ev *Event) error {
	rec, err := newEventRecord(ev)
	if err != nil {
		return err
	}
	if err := b.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return database.FromDatabase(err, "history event")
	}
	ev.Seq = rec.Seq
	return nil
}

func (b *GormBackend) Events(ctx context.Context, runIDs ...string) ([]Event, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}
	var recs []eventRecord
	for chunk := range slices.Chunk(runIDs, eventsChunk) {
		var part []eventRecord
		err := b.db.WithContext(ctx).
			Where("run_id IN ?", chunk).
			Order("seq").
			Find(&part).Error
		if err != nil {
			return nil, database.FromDatabase(err, "history event")
		}
		recs = append(recs, part...)
	}
	if len(runIDs) > eventsChunk {
		slices.SortFunc(recs, func(a, b eventRecord) int { return cmp.Compare(a.Seq, b.Seq) })
	}
	return decode(recs)
}

func (b *GormBackend) Starts(ctx context.Context, f StartFilter) ([]Event, error) {
	q := b.db.WithContext(ctx).Where("kind = ?", string(EventRunStarted))
	if f.Pipeline != "" {
		q = q.Where("pipeline = ?", f.Pipeline)
	}
	if f.Trigger != "" {
		q = q.Where("trigger_name = ?", f.Trigger)
	}
	if f.ScheduledAt != nil {
		q = q.Where("scheduled_at = ?", f.ScheduledAt.UnixNano())
	}
	if f.From != nil {
		q = q.Where("occurred_at >= ?", f.From.UnixNano())
	}
	if f.To != nil {
		q = q.Where("occurred_at < ?", f.To.UnixNano())
	}
	switch f.Status {
	case "":
	case RunRunning:
		q = q.Where("run_id NOT IN (?)", b.finishedRuns(""))
	default:
		q = q.Where("run_id IN (?)", b.finishedRuns(f.Status))
	}

	var recs []eventRecord
	if f.Limit > 0 {
		if err := q.Order("occurred_at DESC").Order("seq DESC").Limit(f.Limit).Find(&recs).Error; err != nil {
			return nil, database.FromDatabase(err, "history event")
		}
		slices.Reverse(recs)
		return decode(recs)
	}
	if err := q.Order("occurred_at").Order("seq").Find(&recs).Error; err != nil {
		return nil, database.FromDatabase(err, "history event")
	}
	return decode(recs)
}

// finishedRuns selects the ids of finished runs, optionally in one status.
func (b *GormBackend) finishedRuns(status RunStatus) *gorm.DB {
	sub := b.db.Model(&eventRecord{}).Select("run_id").Where("kind = ?", string(EventRunFinished))
	if status != "" {
		sub = sub.Where("status = ?", string(status))
	}
	return sub
}

func decode(recs []eventRecord) ([]Event, error) {
	out := make([]Event, 0, len(recs))
	for _, r := range recs {
		var ev Event
		if err := json.Unmarshal([]byte(r.Payload), &ev); err != nil {
			return nil, fmt.Errorf("history: decode event %d: %w", r.Seq, err)
		}
		ev.Seq = r.Seq
		out = append(out, ev)
	}
	return out, nil
}
