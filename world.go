package foreman

import (
	"slices"
	"sync/atomic"

	"github.com/rotisserie/eris"
)

// World owns the entities, the systems and their schedule.
// Direct mutations are rejected while an update runs; systems request
// structural changes through their SystemContext instead.
type World struct {
	config    WorldConfig
	logger    *Logger
	storage   *storage
	queue     *opQueue
	tracker   *changeTracker
	scheduler *scheduler
	actions   *actionRegistry

	locked   atomic.Bool
	poisoned atomic.Bool
}

func newWorld(opts ...Option) (*World, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, eris.Wrap(err, "invalid world options")
	}
	w := &World{
		config:    o.config,
		logger:    &Logger{o.logger},
		queue:     newOpQueue(o.config.QueueShards),
		tracker:   newChangeTracker(),
		scheduler: newScheduler(),
		actions:   newActionRegistry(o.config.ActionCapacity),
	}
	w.storage = newStorage(o.config.ArchetypeCapacity, o.logger)
	w.storage.onNewRow = w.tracker.markNewRow
	return w, nil
}

// Config returns the effective configuration.
func (w *World) Config() WorldConfig {
	return w.config
}

// Logger returns the world logger.
func (w *World) Logger() *Logger {
	return w.logger
}

// Locked reports whether an update is running.
func (w *World) Locked() bool {
	return w.locked.Load()
}

// CreateEntity stores a new root entity immediately.
func (w *World) CreateEntity(values ...ComponentValue) (EntityID, error) {
	if w.Locked() {
		return 0, LockedStorageError{}
	}
	return w.storage.newEntity(values, nil)
}

// CreateChildEntity stores a new entity attached to parent.
func (w *World) CreateChildEntity(parent EntityID, values ...ComponentValue) (EntityID, error) {
	if w.Locked() {
		return 0, LockedStorageError{}
	}
	return w.storage.newEntity(values, &parent)
}

// DeleteEntity removes the entity and its children.
func (w *World) DeleteEntity(id EntityID) error {
	if w.Locked() {
		return LockedStorageError{}
	}
	if !w.storage.deleteEntity(id) {
		return EntityNotFoundError{ID: id}
	}
	return nil
}

// AddComponent adds a component to the entity, overwriting any existing value.
func (w *World) AddComponent(id EntityID, value ComponentValue) error {
	if w.Locked() {
		return LockedStorageError{}
	}
	return w.storage.changeComponents(id, nil, []ComponentValue{value})
}

// DeleteComponent removes a component from the entity.
func (w *World) DeleteComponent(id EntityID, c Component) error {
	if w.Locked() {
		return LockedStorageError{}
	}
	location, ok := w.storage.entities.location(id)
	if !ok {
		return EntityNotFoundError{ID: id}
	}
	if !w.storage.archetypes.get(location.archetype).contains(c.TypeIndex()) {
		return ComponentNotFoundError{Entity: id, Component: c.TypeIndex()}
	}
	return w.storage.changeComponents(id, []ComponentTypeIndex{c.TypeIndex()}, nil)
}

// Alive reports whether the entity exists.
func (w *World) Alive(id EntityID) bool {
	return w.storage.entities.isAlive(id)
}

// Location returns the archetype and row of the entity.
func (w *World) Location(id EntityID) (ArchetypeIndex, int, bool) {
	location, ok := w.storage.entities.location(id)
	return location.archetype, location.row, ok
}

func (w *World) Parent(id EntityID) (EntityID, bool) {
	return w.storage.entities.parent(id)
}

func (w *World) Children(id EntityID) []EntityID {
	return w.storage.entities.children(id)
}

// Depth returns the number of ancestors of the entity.
func (w *World) Depth(id EntityID) int {
	return w.storage.entities.depth(id)
}

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int {
	return w.storage.entities.alive
}

// ArchetypeFor returns the archetype storing exactly the given types, creating it if needed.
func (w *World) ArchetypeFor(types ...Component) (ArchetypeIndex, error) {
	if w.Locked() {
		return 0, LockedStorageError{}
	}
	indices := make([]ComponentTypeIndex, len(types))
	for i, c := range types {
		indices[i] = c.TypeIndex()
	}
	return w.storage.archetypeFor(indices).id, nil
}

// ArchetypeOf returns the archetype currently storing the entity.
func (w *World) ArchetypeOf(id EntityID) (Archetype, bool) {
	location, ok := w.storage.entities.location(id)
	if !ok {
		return nil, false
	}
	return w.storage.archetypes.get(location.archetype), true
}

// Archetype returns the archetype with the given index.
func (w *World) Archetype(idx ArchetypeIndex) (Archetype, bool) {
	if int(idx) >= len(w.storage.archetypes.asSlice) {
		return nil, false
	}
	return w.storage.archetypes.asSlice[idx], true
}

func (w *World) ArchetypeCount() int {
	return len(w.storage.archetypes.asSlice)
}

// Singleton returns the entity holding a singleton component.
func (w *World) Singleton(c Component) (EntityID, bool) {
	return w.singleton(c.TypeIndex())
}

func (w *World) singleton(typ ComponentTypeIndex) (EntityID, bool) {
	id, found := w.storage.singletons[typ]
	if !found || !w.storage.entities.isAlive(id) {
		return 0, false
	}
	return id, true
}

// SetGlobal creates or overwrites a global.
func (w *World) SetGlobal(value GlobalValue) error {
	if w.Locked() {
		return LockedStorageError{}
	}
	value.store(w.storage.globals)
	return nil
}

// DeleteGlobal removes a global.
func (w *World) DeleteGlobal(g Global) error {
	if w.Locked() {
		return LockedStorageError{}
	}
	if !w.storage.globals.delete(g.GlobalIndex()) {
		return GlobalNotFoundError{Global: g.GlobalIndex()}
	}
	return nil
}

// HasGlobal reports whether the global exists.
func (w *World) HasGlobal(g Global) bool {
	return w.storage.globals.exists(g.GlobalIndex())
}

// missingGlobal returns the first required global of the system that does not exist.
func (w *World) missingGlobal(rec *systemRecord) (GlobalIndex, bool) {
	for _, access := range rec.globals {
		if !access.Optional && !w.storage.globals.exists(access.Global) {
			return access.Global, true
		}
	}
	return 0, false
}

// Query returns a query over the archetypes kept by filter that hold every component.
// Changed filters keep every archetype in runtime queries.
func (w *World) Query(filter Filter, components ...Component) *Query {
	required := make([]ComponentTypeIndex, len(components))
	for i, c := range components {
		required[i] = c.TypeIndex()
	}
	return newQuery(w, nil, filter, required)
}

// RegisterSystem resolves the dependencies of the system and schedules it.
func (w *World) RegisterSystem(b *SystemBuilder) (SystemIndex, error) {
	if w.Locked() {
		return 0, eris.Wrapf(LockedStorageError{}, "registering system %q", b.label)
	}
	index := SystemIndex(len(w.scheduler.systems))
	dependencies, err := w.resolveDependencies(index, b)
	if err != nil {
		return 0, eris.Wrapf(err, "registering system %q", b.label)
	}
	if !b.action.IsZero() {
		if err := w.actions.addSystem(b.action, index); err != nil {
			return 0, eris.Wrapf(err, "registering system %q", b.label)
		}
	}

	rec := newSystemRecord(index, b, dependencies)
	stage := w.scheduler.add(rec)
	w.tracker.track(index, slices.Compact(sortedTypes(rec.filter.changedTypes())))

	w.logger.Debug().
		Str("system", rec.label).
		Int("system_index", int(index)).
		Int("stage", stage).
		Ints("dependencies", systemInts(dependencies)).
		Msg("system registered")
	return index, nil
}

func (w *World) resolveDependencies(index SystemIndex, b *SystemBuilder) ([]SystemIndex, error) {
	var resolved []SystemIndex
	if b.afterPrevious && index > 0 {
		resolved = append(resolved, index-1)
	}
	for _, dep := range b.dependencies {
		switch dep.kind {
		case dependsOnSystem:
			if dep.system < 0 || dep.system >= index {
				return nil, CycleError{
					System: b.label,
					Reason: "depends on " + dep.String() + " which is not registered before it",
				}
			}
			resolved = append(resolved, dep.system)
		case dependsOnAction:
			last, ok := w.actions.lastSystem(dep.action)
			if !ok {
				return nil, MissingActionError{Action: dep.action, System: b.label}
			}
			resolved = append(resolved, last)
		}
	}
	if !b.action.IsZero() {
		closure, err := b.action.dependencyClosure()
		if err != nil {
			return nil, CycleError{System: b.label, Reason: err.Error()}
		}
		for _, action := range closure {
			// actions nobody runs as are ordering points without systems to wait for
			if last, ok := w.actions.lastSystem(action); ok {
				resolved = append(resolved, last)
			}
		}
	}
	slices.Sort(resolved)
	return slices.Compact(resolved), nil
}

// Schedule returns the current stage plan.
func (w *World) Schedule() Schedule {
	return w.scheduler.schedule()
}

func (w *World) SystemCount() int {
	return len(w.scheduler.systems)
}

// Update runs every stage once, applying queued mutations after each stage.
// A failing system aborts the update and poisons the world.
func (w *World) Update() error {
	if w.poisoned.Load() {
		return ErrWorldPoisoned
	}
	if !w.locked.CompareAndSwap(false, true) {
		return LockedStorageError{}
	}
	defer w.locked.Store(false)

	for i, stage := range w.scheduler.stages {
		writes, err := w.runStage(stage)
		if err != nil {
			w.poisoned.Store(true)
			w.queue.drain()
			w.logger.Error().Err(err).Int("stage", i).Msg("update aborted")
			return eris.Wrapf(err, "stage %d failed", i)
		}
		for _, set := range writes.sets {
			for typ, archetypes := range set {
				w.tracker.markMutated(typ, archetypes)
			}
		}
		w.storage.processOperationQueue(w.queue)
	}
	return nil
}

// Poisoned reports whether a previous update failed.
func (w *World) Poisoned() bool {
	return w.poisoned.Load()
}

func sortedTypes(types []ComponentTypeIndex) []ComponentTypeIndex {
	sorted := slices.Clone(types)
	slices.Sort(sorted)
	return sorted
}

func systemInts(indices []SystemIndex) []int {
	ints := make([]int, len(indices))
	for i, idx := range indices {
		ints[i] = int(idx)
	}
	return ints
}
