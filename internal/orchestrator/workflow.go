package orchestrator

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/fieldmark/internal/capability"
)

// ErrEmptyWorkflow is returned when a workflow has no steps.
var ErrEmptyWorkflow = errors.New("orchestrator: workflow has no steps")

// Task is one capability invocation within a step.
type Task struct {
	Capability string            `json:"capability" yaml:"capability"`
	Params     capability.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// Step is a set of tasks executed concurrently.
type Step []Task

// Workflow is an ordered sequence of steps.
type Workflow struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Validate checks structural invariants. Capability names are resolved at
// run time so an unknown name surfaces as a step failure, not here.
func (w Workflow) Validate() error {
	if len(w.Steps) == 0 {
		return ErrEmptyWorkflow
	}
	for i, step := range w.Steps {
		for j, task := range step {
			if task.Capability == "" {
				return fmt.Errorf("orchestrator: step %d task %d: capability name is required", i, j)
			}
		}
	}
	return nil
}

func (w Workflow) clone() Workflow {
	out := Workflow{Name: w.Name, Steps: make([]Step, len(w.Steps))}
	for i, step := range w.Steps {
		s := make(Step, len(step))
		for j, task := range step {
			s[j] = Task{Capability: task.Capability, Params: cloneData(task.Params)}
		}
		out.Steps[i] = s
	}
	return out
}

// LoadWorkflow decodes a YAML (or JSON, which is valid YAML) workflow definition:
//
//	name: survey
//	steps:
//	  - - capability: metadata_extractor
//	      params: {dir: ./photos}
//	  - - capability: geo_clusterer
//	      params: {radius_meters: 75}
func LoadWorkflow(r io.Reader) (Workflow, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var w Workflow
	if err := dec.Decode(&w); err != nil {
		return Workflow{}, fmt.Errorf("orchestrator: decode workflow: %w", err)
	}
	if err := w.Validate(); err != nil {
		return Workflow{}, err
	}
	return w, nil
}

// LoadWorkflowFile is LoadWorkflow over a file path.
func LoadWorkflowFile(path string) (Workflow, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return Workflow{}, fmt.Errorf("orchestrator: open workflow: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadWorkflow(f)
}
