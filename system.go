package foreman

import (
	"slices"
)

// SystemIndex identifies a registered system. Indices follow registration order.
type SystemIndex int

// AccessMode tells whether a system reads or writes a component type.
type AccessMode int

const (
	Read AccessMode = iota
	Write
)

func (m AccessMode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

// ComponentAccess is one declared access of a system.
// Optional accesses do not restrict the archetypes the system iterates.
type ComponentAccess struct {
	Component ComponentTypeIndex
	Mode      AccessMode
	Optional  bool
}

// GlobalAccess is one declared access of a system to a global.
// A system with a required global is skipped while the global does not exist.
type GlobalAccess struct {
	Global   GlobalIndex
	Mode     AccessMode
	Optional bool
}

// SystemFunc is the body of a system, called once per update.
type SystemFunc func(ctx *SystemContext) error

// SystemBuilder describes a system before registration.
type SystemBuilder struct {
	label         string
	run           SystemFunc
	accesses      []ComponentAccess
	globals       []GlobalAccess
	canUpdate     bool
	filter        Filter
	action        ActionID
	dependencies  []ActionDependency
	afterPrevious bool
}

func newSystemBuilder(label string, run SystemFunc) *SystemBuilder {
	return &SystemBuilder{label: label, run: run}
}

// Reads declares shared access to components the system requires.
func (b *SystemBuilder) Reads(components ...Component) *SystemBuilder {
	return b.access(Read, false, components)
}

// Writes declares exclusive access to components the system requires.
func (b *SystemBuilder) Writes(components ...Component) *SystemBuilder {
	return b.access(Write, false, components)
}

// ReadsOptional declares shared access to components that entities may lack.
func (b *SystemBuilder) ReadsOptional(components ...Component) *SystemBuilder {
	return b.access(Read, true, components)
}

// WritesOptional declares exclusive access to components that entities may lack.
func (b *SystemBuilder) WritesOptional(components ...Component) *SystemBuilder {
	return b.access(Write, true, components)
}

// access merges declarations of the same type: write wins over read, required over optional.
func (b *SystemBuilder) access(mode AccessMode, optional bool, components []Component) *SystemBuilder {
	for _, c := range components {
		typ := c.TypeIndex()
		pos := slices.IndexFunc(b.accesses, func(a ComponentAccess) bool { return a.Component == typ })
		if pos < 0 {
			b.accesses = append(b.accesses, ComponentAccess{Component: typ, Mode: mode, Optional: optional})
			continue
		}
		existing := &b.accesses[pos]
		existing.Mode = max(existing.Mode, mode)
		existing.Optional = existing.Optional && optional
	}
	return b
}

// ReadsGlobal declares shared access to globals the system needs to run.
func (b *SystemBuilder) ReadsGlobal(globals ...Global) *SystemBuilder {
	return b.globalAccess(Read, false, globals)
}

// WritesGlobal declares exclusive access to globals the system needs to run.
func (b *SystemBuilder) WritesGlobal(globals ...Global) *SystemBuilder {
	return b.globalAccess(Write, false, globals)
}

// ReadsGlobalOptional declares shared access to globals that may not exist.
func (b *SystemBuilder) ReadsGlobalOptional(globals ...Global) *SystemBuilder {
	return b.globalAccess(Read, true, globals)
}

// WritesGlobalOptional declares exclusive access to globals that may not exist.
func (b *SystemBuilder) WritesGlobalOptional(globals ...Global) *SystemBuilder {
	return b.globalAccess(Write, true, globals)
}

func (b *SystemBuilder) globalAccess(mode AccessMode, optional bool, globals []Global) *SystemBuilder {
	for _, g := range globals {
		idx := g.GlobalIndex()
		pos := slices.IndexFunc(b.globals, func(a GlobalAccess) bool { return a.Global == idx })
		if pos < 0 {
			b.globals = append(b.globals, GlobalAccess{Global: idx, Mode: mode, Optional: optional})
			continue
		}
		existing := &b.globals[pos]
		existing.Mode = max(existing.Mode, mode)
		existing.Optional = existing.Optional && optional
	}
	return b
}

// CanUpdate allows the system to create and delete entities and components.
func (b *SystemBuilder) CanUpdate() *SystemBuilder {
	b.canUpdate = true
	return b
}

// Filter restricts the archetypes iterated by the system.
func (b *SystemBuilder) Filter(filter Filter) *SystemBuilder {
	b.filter = filter
	return b
}

// RunAs registers the system under an action other systems can depend on.
func (b *SystemBuilder) RunAs(action ActionID) *SystemBuilder {
	b.action = action
	return b
}

// After adds must-run-after edges.
func (b *SystemBuilder) After(dependencies ...ActionDependency) *SystemBuilder {
	b.dependencies = append(b.dependencies, dependencies...)
	return b
}

// AfterPrevious orders the system after the system registered just before it.
func (b *SystemBuilder) AfterPrevious() *SystemBuilder {
	b.afterPrevious = true
	return b
}

// systemRecord is the immutable, resolved form of a registered system.
type systemRecord struct {
	index        SystemIndex
	label        string
	run          SystemFunc
	accesses     []ComponentAccess
	globals      []GlobalAccess
	types        []ComponentTypeIndex
	writes       []ComponentTypeIndex
	required     []ComponentTypeIndex
	canUpdate    bool
	filter       Filter
	action       ActionID
	dependencies []SystemIndex
}

func newSystemRecord(index SystemIndex, b *SystemBuilder, dependencies []SystemIndex) *systemRecord {
	accesses := slices.Clone(b.accesses)
	slices.SortFunc(accesses, func(a, b ComponentAccess) int {
		return int(a.Component) - int(b.Component)
	})
	globals := slices.Clone(b.globals)
	slices.SortFunc(globals, func(a, b GlobalAccess) int {
		return int(a.Global) - int(b.Global)
	})
	rec := &systemRecord{
		index:        index,
		label:        b.label,
		run:          b.run,
		accesses:     accesses,
		globals:      globals,
		canUpdate:    b.canUpdate,
		filter:       b.filter,
		action:       b.action,
		dependencies: dependencies,
	}
	if rec.filter == nil {
		rec.filter = And()
	}
	for _, access := range accesses {
		rec.types = append(rec.types, access.Component)
		if access.Mode == Write {
			rec.writes = append(rec.writes, access.Component)
		}
		if !access.Optional {
			rec.required = append(rec.required, access.Component)
		}
	}
	return rec
}

func (rec *systemRecord) access(typ ComponentTypeIndex) (ComponentAccess, bool) {
	pos, found := slices.BinarySearchFunc(rec.accesses, typ, func(a ComponentAccess, t ComponentTypeIndex) int {
		return int(a.Component) - int(t)
	})
	if !found {
		return ComponentAccess{}, false
	}
	return rec.accesses[pos], true
}

func (rec *systemRecord) globalAccess(idx GlobalIndex) (GlobalAccess, bool) {
	pos, found := slices.BinarySearchFunc(rec.globals, idx, func(a GlobalAccess, g GlobalIndex) int {
		return int(a.Global) - int(g)
	})
	if !found {
		return GlobalAccess{}, false
	}
	return rec.globals[pos], true
}

// conflicts reports whether two systems may not run at the same time.
// Structural updaters count as writers of every type they touch.
func conflicts(a, b *systemRecord) bool {
	for _, access := range a.accesses {
		other, shared := b.access(access.Component)
		if !shared {
			continue
		}
		if access.Mode == Write || other.Mode == Write || a.canUpdate || b.canUpdate {
			return true
		}
	}
	// global changes are always queued, so only declared writes count
	for _, access := range a.globals {
		if other, shared := b.globalAccess(access.Global); shared && (access.Mode == Write || other.Mode == Write) {
			return true
		}
	}
	return false
}
