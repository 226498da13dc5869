package foreman

import (
	"slices"
	"sync"
)

// Stage is a batch of systems that only start once every earlier stage has
// finished and its queued mutations were applied.
type Stage struct {
	// Groups run one after the other. Systems of a group conflict with no
	// other member and run concurrently; a system conflicting with an earlier
	// registered one always lands in a later group.
	Groups [][]SystemIndex
}

// Schedule is the stage plan of a world.
type Schedule struct {
	Stages []Stage
}

// StageOf returns the stage that runs the system.
func (s Schedule) StageOf(system SystemIndex) (int, bool) {
	for i, stage := range s.Stages {
		if _, found := stage.GroupOf(system); found {
			return i, true
		}
	}
	return 0, false
}

// GroupOf returns the group of the stage that runs the system.
func (s Stage) GroupOf(system SystemIndex) (int, bool) {
	for i, group := range s.Groups {
		if slices.Contains(group, system) {
			return i, true
		}
	}
	return 0, false
}

// heldLock is one lock a system takes before running.
type heldLock struct {
	mu       *sync.RWMutex
	mode     AccessMode
	resource string
}

type scheduler struct {
	systems []*systemRecord
	stageOf []int
	members [][]SystemIndex
	stages  []Stage

	locks       map[ComponentTypeIndex]*sync.RWMutex
	globalLocks map[GlobalIndex]*sync.RWMutex
	plans       [][]heldLock
}

func newScheduler() *scheduler {
	return &scheduler{
		locks:       make(map[ComponentTypeIndex]*sync.RWMutex),
		globalLocks: make(map[GlobalIndex]*sync.RWMutex),
	}
}

// add places a system on the longest path from a source of the dependency graph.
// Dependencies always point to earlier systems, so stages only ever grow.
func (s *scheduler) add(rec *systemRecord) int {
	stage := 0
	for _, dep := range rec.dependencies {
		stage = max(stage, s.stageOf[dep]+1)
	}
	s.systems = append(s.systems, rec)
	s.stageOf = append(s.stageOf, stage)
	s.plans = append(s.plans, s.lockPlan(rec))
	for len(s.members) <= stage {
		s.members = append(s.members, nil)
		s.stages = append(s.stages, Stage{})
	}
	s.members[stage] = append(s.members[stage], rec.index)
	s.stages[stage] = s.partition(s.members[stage])
	return stage
}

// partition places each member, in registration order, in the first group
// following every group that holds a system it conflicts with.
func (s *scheduler) partition(members []SystemIndex) Stage {
	var stage Stage
	for _, i := range members {
		target := 0
		for g, group := range stage.Groups {
			if slices.ContainsFunc(group, func(j SystemIndex) bool { return conflicts(s.systems[i], s.systems[j]) }) {
				target = g + 1
			}
		}
		if target == len(stage.Groups) {
			stage.Groups = append(stage.Groups, nil)
		}
		stage.Groups[target] = append(stage.Groups[target], i)
	}
	return stage
}

func (s *scheduler) schedule() Schedule {
	stages := make([]Stage, len(s.stages))
	for i, stage := range s.stages {
		groups := make([][]SystemIndex, len(stage.Groups))
		for g, group := range stage.Groups {
			groups[g] = slices.Clone(group)
		}
		stages[i] = Stage{Groups: groups}
	}
	return Schedule{Stages: stages}
}

// lockPlan lists the locks of the system: component types in type order, then globals.
func (s *scheduler) lockPlan(rec *systemRecord) []heldLock {
	plan := make([]heldLock, 0, len(rec.accesses)+len(rec.globals))
	for _, access := range rec.accesses {
		mu, found := s.locks[access.Component]
		if !found {
			mu = &sync.RWMutex{}
			s.locks[access.Component] = mu
		}
		plan = append(plan, heldLock{mu: mu, mode: access.Mode, resource: "component " + access.Component.String()})
	}
	for _, access := range rec.globals {
		mu, found := s.globalLocks[access.Global]
		if !found {
			mu = &sync.RWMutex{}
			s.globalLocks[access.Global] = mu
		}
		plan = append(plan, heldLock{mu: mu, mode: access.Mode, resource: "global " + access.Global.String()})
	}
	return plan
}

// acquire takes the locks of the system.
// Failing to get one means the schedule let two aliasing systems overlap.
func (s *scheduler) acquire(rec *systemRecord) {
	plan := s.plans[rec.index]
	for i, held := range plan {
		var ok bool
		if held.mode == Write {
			ok = held.mu.TryLock()
		} else {
			ok = held.mu.TryRLock()
		}
		if !ok {
			releaseLocks(plan[:i])
			panic("internal error: system " + rec.label + " aliases " + held.mode.String() + " access to " + held.resource)
		}
	}
}

func (s *scheduler) release(rec *systemRecord) {
	releaseLocks(s.plans[rec.index])
}

func releaseLocks(plan []heldLock) {
	for i := len(plan) - 1; i >= 0; i-- {
		if plan[i].mode == Write {
			plan[i].mu.Unlock()
		} else {
			plan[i].mu.RUnlock()
		}
	}
}
