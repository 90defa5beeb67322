package definition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/pipeline"
	"github.com/kbukum/orchestrator/trigger"
)

// Set is the content of one or more definition files.
type Set struct {
	Pipelines []*pipeline.Pipeline
	Triggers  []trigger.Spec
}

// Merge appends the definitions of o.
func (s *Set) Merge(o *Set) {
	s.Pipelines = append(s.Pipelines, o.Pipelines...)
	s.Triggers = append(s.Triggers, o.Triggers...)
}

// Extensions handled by LoadFile.
var (
	yamlExts = []string{".yaml", ".yml"}
	hclExts  = []string{".hcl"}
)

// LoadFile loads a single definition file, choosing the format by extension.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("definition: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case slices.Contains(yamlExts, ext):
		return ParseYAML(path, data)
	case slices.Contains(hclExts, ext):
		return ParseHCL(path, data)
	default:
		return nil, fmt.Errorf("definition: unsupported file type %q", path)
	}
}

// LoadPaths loads every file and every definition file found under each
// directory, in lexical order.
func LoadPaths(paths ...string) (*Set, error) {
	set := &Set{}
	for _, p := range paths {
		files, err := expand(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			s, err := LoadFile(f)
			if err != nil {
				return nil, err
			}
			set.Merge(s)
		}
	}
	return set, nil
}

func expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("definition: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(p))
		if !d.IsDir() && (slices.Contains(yamlExts, ext) || slices.Contains(hclExts, ext)) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("definition: walk %s: %w", path, err)
	}
	slices.Sort(files)
	return files, nil
}

// Validate checks every pipeline and trigger, and the references between
// them: each trigger must name a known pipeline and bind only its declared
// parameters.
func (s *Set) Validate() error {
	var issues []string
	pipelines := make(map[string]*pipeline.Pipeline, len(s.Pipelines))
	for _, p := range s.Pipelines {
		if err := p.Validate(); err != nil {
			issues = append(issues, err.Error())
		}
		if _, dup := pipelines[p.Name]; dup {
			issues = append(issues, fmt.Sprintf("pipeline %q defined more than once", p.Name))
		}
		pipelines[p.Name] = p
	}

	triggers := make(map[string]bool, len(s.Triggers))
	for _, spec := range s.Triggers {
		if _, err := trigger.New(spec); err != nil {
			issues = append(issues, err.Error())
		}
		if triggers[spec.Name] {
			issues = append(issues, fmt.Sprintf("trigger %q defined more than once", spec.Name))
		}
		triggers[spec.Name] = true

		p, ok := pipelines[spec.Pipeline]
		if !ok {
			issues = append(issues, fmt.Sprintf("trigger %q references unknown pipeline %q", spec.Name, spec.Pipeline))
			continue
		}
		for name := range spec.Parameters {
			if _, declared := p.Parameters[name]; !declared {
				issues = append(issues, fmt.Sprintf("trigger %q binds undeclared parameter %q of pipeline %q", spec.Name, name, p.Name))
			}
		}
	}

	if len(issues) > 0 {
		slices.Sort(issues)
		return apperrors.Definition("definitions", issues...)
	}
	return nil
}

// Install validates the set and adds it to catalog and registry.
func (s *Set) Install(ctx context.Context, catalog *pipeline.Catalog, registry *trigger.Registry) error {
	if err := s.Validate(); err != nil {
		return err
	}
	for _, p := range s.Pipelines {
		if err := catalog.Add(p); err != nil {
			return err
		}
	}
	for _, spec := range s.Triggers {
		t, err := trigger.New(spec)
		if err != nil {
			return err
		}
		if err := registry.Add(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
