package model

// StageKind names one stage in a pipeline (e.g. "script", "narration").
// Kinds are unique within a pipeline.
type StageKind string

// StageCategory groups stages by the provider capability they need.
// A provider serves exactly one category.
type StageCategory string

const (
	CategoryScript      StageCategory = "script"
	CategoryNarration   StageCategory = "narration"
	CategoryVisual      StageCategory = "visual"
	CategoryComposition StageCategory = "composition"
)

type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskReady     TaskState = "ready"
	TaskRunning   TaskState = "running"
	TaskDone      TaskState = "done"
	TaskFailed    TaskState = "failed"
	TaskSkipped   TaskState = "skipped"
	TaskCancelled TaskState = "cancelled"
)

// Terminal reports whether the task will not run (again).
func (s TaskState) Terminal() bool {
	switch s {
	case TaskDone, TaskFailed, TaskSkipped, TaskCancelled:
		return true
	}
	return false
}

// StageSpec declares one stage of a submitted pipeline.
type StageSpec struct {
	Kind      StageKind         `yaml:"kind"`
	Category  StageCategory     `yaml:"category"`
	DependsOn []StageKind       `yaml:"depends_on"`
	Optional  bool              `yaml:"optional"`
	Inputs    map[string]string `yaml:"inputs"`
	Weight    int               `yaml:"weight"` // progress share; defaults to 1
}

// PipelineSpec is what callers submit to the runner.
type PipelineSpec struct {
	Title  string      `yaml:"title"`
	Stages []StageSpec `yaml:"stages"`
	Budget Budget      `yaml:"budget"`
}

// Budget caps what a job may spend; the strategy selector reads it.
type Budget struct {
	CreditLimit int64 `yaml:"credit_limit"` // micro-credits; 0 means unlimited
}

// TaskNode is one node of a job's DAG. Owned exclusively by the scheduler
// that built it; never shared across jobs.
type TaskNode struct {
	ID        string
	Kind      StageKind
	Category  StageCategory
	DependsOn []StageKind
	State     TaskState
	Optional  bool
	Weight    int
	Inputs    map[string]string
	Result    *StageResult // set when Done (possibly from cache)
	Err       error        // set when Failed
}

// StageResult is the output of one stage call. Ref points at the produced
// artifact (script text id, audio blob, rendered segment); Detail carries a
// short human-readable summary for diagnostics.
type StageResult struct {
	Ref        string `json:"ref"`
	Detail     string `json:"detail,omitempty"`
	ProviderID string `json:"provider_id"`
	Tokens     int    `json:"tokens,omitempty"`
	FromCache  bool   `json:"-"`
}
