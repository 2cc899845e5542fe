package usecase

import (
	"fmt"
	"sort"

	"ai-video-studio/internal/domain"
	"ai-video-studio/internal/domain/model"
)

// BuildTasks validates a pipeline spec against the capability registry and
// materializes the job's task DAG. Structural problems (duplicate kinds,
// unknown dependencies, missing mandatory capability) fail here, before any
// task executes. An optional stage whose capability is absent yields no
// task at all; its dependents simply see it as skipped.
func BuildTasks(jobID string, spec model.PipelineSpec, registry ProviderRegistry) ([]*model.TaskNode, error) {
	if len(spec.Stages) == 0 {
		return nil, domain.ErrEmptyPipeline
	}

	byKind := make(map[model.StageKind]model.StageSpec, len(spec.Stages))
	for _, st := range spec.Stages {
		if _, dup := byKind[st.Kind]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateStage, st.Kind)
		}
		byKind[st.Kind] = st
	}
	for _, st := range spec.Stages {
		for _, dep := range st.DependsOn {
			if _, ok := byKind[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", domain.ErrUnknownDependency, st.Kind, dep)
			}
		}
	}

	// Capability check; optional stages without a provider are dropped.
	dropped := make(map[model.StageKind]bool)
	for _, st := range spec.Stages {
		if registry.Has(st.Category) {
			continue
		}
		if !st.Optional {
			return nil, fmt.Errorf("%w: %s", domain.ErrStageHandlerMissing, st.Category)
		}
		dropped[st.Kind] = true
	}

	tasks := make([]*model.TaskNode, 0, len(spec.Stages))
	for _, st := range spec.Stages {
		if dropped[st.Kind] {
			continue
		}
		deps := make([]model.StageKind, 0, len(st.DependsOn))
		for _, dep := range st.DependsOn {
			if !dropped[dep] {
				deps = append(deps, dep)
			}
		}
		weight := st.Weight
		if weight <= 0 {
			weight = 1
		}
		tasks = append(tasks, &model.TaskNode{
			ID:        jobID + "/" + string(st.Kind),
			Kind:      st.Kind,
			Category:  st.Category,
			DependsOn: deps,
			State:     model.TaskPending,
			Optional:  st.Optional,
			Weight:    weight,
			Inputs:    st.Inputs,
		})
	}
	return tasks, nil
}

// Levels partitions tasks into execution levels via Kahn's algorithm: level
// k holds every task whose dependencies all sit in levels < k. A non-empty
// remainder means the graph has a cycle.
func Levels(tasks []*model.TaskNode) ([][]*model.TaskNode, error) {
	indegree := make(map[model.StageKind]int, len(tasks))
	dependents := make(map[model.StageKind][]*model.TaskNode, len(tasks))
	byKind := make(map[model.StageKind]*model.TaskNode, len(tasks))

	for _, t := range tasks {
		byKind[t.Kind] = t
		indegree[t.Kind] = len(t.DependsOn)
		for _, dep := range t.DependsOn {
			dependents[dep] = append(dependents[dep], t)
		}
	}

	var levels [][]*model.TaskNode
	current := make([]*model.TaskNode, 0, len(tasks))
	for _, t := range tasks {
		if indegree[t.Kind] == 0 {
			current = append(current, t)
		}
	}

	placed := 0
	for len(current) > 0 {
		sort.Slice(current, func(i, j int) bool { return current[i].Kind < current[j].Kind })
		levels = append(levels, current)
		placed += len(current)

		var next []*model.TaskNode
		for _, t := range current {
			for _, d := range dependents[t.Kind] {
				indegree[d.Kind]--
				if indegree[d.Kind] == 0 {
					next = append(next, d)
				}
			}
		}
		current = next
	}

	if placed != len(tasks) {
		return nil, domain.ErrCyclicDependency
	}
	return levels, nil
}
