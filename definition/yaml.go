package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"go.yaml.in/yaml/v3"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/pipeline"
	"github.com/kbukum/orchestrator/trigger"
)

type yamlFile struct {
	Pipelines []*pipeline.Pipeline `yaml:"pipelines"`
	Triggers  []yamlTrigger        `yaml:"triggers"`
}

type yamlTrigger struct {
	Name       string            `yaml:"name"`
	Pipeline   string            `yaml:"pipeline"`
	Activated  bool              `yaml:"activated"`
	TimeZone   string            `yaml:"time_zone"`
	StartTime  time.Time         `yaml:"start_time"`
	Parameters map[string]string `yaml:"parameters"`
	Schedule   yamlSchedule      `yaml:"schedule"`
}

type yamlSchedule struct {
	Interval *struct {
		Unit  trigger.Unit `yaml:"unit"`
		Every int          `yaml:"every"`
	} `yaml:"interval"`
	TumblingWindow *struct {
		Interval time.Duration `yaml:"interval"`
		Retry    struct {
			Count    int           `yaml:"count"`
			Interval time.Duration `yaml:"interval"`
		} `yaml:"retry"`
	} `yaml:"tumbling_window"`
	DailyAt *struct {
		Hour   int `yaml:"hour"`
		Minute int `yaml:"minute"`
	} `yaml:"daily_at"`
}

// ParseYAML decodes a YAML definition document. Multiple documents in one
// file are merged. Unknown keys are rejected.
func ParseYAML(filename string, data []byte) (*Set, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	set := &Set{}
	for {
		var doc yamlFile
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Definition(filename, err.Error())
		}

		set.Pipelines = append(set.Pipelines, doc.Pipelines...)
		for _, t := range doc.Triggers {
			spec, err := t.spec()
			if err != nil {
				return nil, apperrors.Definition(filename, err.Error())
			}
			set.Triggers = append(set.Triggers, spec)
		}
	}
	return set, nil
}

func (t yamlTrigger) spec() (trigger.Spec, error) {
	spec := trigger.Spec{
		Name:       t.Name,
		Pipeline:   t.Pipeline,
		Activated:  t.Activated,
		TimeZone:   t.TimeZone,
		StartTime:  t.StartTime,
		Parameters: t.Parameters,
	}

	var kinds []trigger.Schedule
	if s := t.Schedule.Interval; s != nil {
		kinds = append(kinds, trigger.Interval{Unit: s.Unit, Every: s.Every})
	}
	if s := t.Schedule.TumblingWindow; s != nil {
		kinds = append(kinds, trigger.TumblingWindow{
			Interval: s.Interval,
			Retry:    trigger.WindowRetry{Count: s.Retry.Count, Interval: s.Retry.Interval},
		})
	}
	if s := t.Schedule.DailyAt; s != nil {
		kinds = append(kinds, trigger.DailyAt{Hour: s.Hour, Minute: s.Minute})
	}
	if len(kinds) != 1 {
		return spec, fmt.Errorf("trigger %q: schedule needs exactly one of interval, tumbling_window, daily_at (got %d)", t.Name, len(kinds))
	}
	spec.Schedule = kinds[0]
	return spec, nil
}
