package foreman

import (
	"slices"

	"github.com/rs/zerolog"
)

// SystemContext is handed to a system for the duration of one run.
// Structural changes requested through it are applied once the stage ends.
type SystemContext struct {
	world   *World
	system  *systemRecord
	view    *changeView
	written writeSet
	logger  zerolog.Logger
}

func newSystemContext(w *World, rec *systemRecord, view *changeView) *SystemContext {
	return &SystemContext{
		world:   w,
		system:  rec,
		view:    view,
		written: make(writeSet),
		logger:  w.logger.CreateSystemLogger(rec.label),
	}
}

func (c *SystemContext) Label() string {
	return c.system.label
}

func (c *SystemContext) Index() SystemIndex {
	return c.system.index
}

// Logger returns a logger tagged with the system label.
func (c *SystemContext) Logger() *zerolog.Logger {
	return &c.logger
}

// Entities returns the query declared at registration: the system filter
// over archetypes holding every required component.
func (c *SystemContext) Entities() *Query {
	return newQuery(c.world, c, c.system.filter, c.system.required)
}

// Query builds an additional query restricted to declared components.
// It panics with UndeclaredAccessError for components the system did not declare.
func (c *SystemContext) Query(filter Filter, components ...Component) *Query {
	required := make([]ComponentTypeIndex, 0, len(components))
	for _, comp := range components {
		if _, declared := c.system.access(comp.TypeIndex()); !declared {
			panic(UndeclaredAccessError{System: c.system.label, Component: comp.TypeIndex()})
		}
		required = append(required, comp.TypeIndex())
	}
	return newQuery(c.world, c, filter, required)
}

// Singleton returns the entity holding a singleton component.
func (c *SystemContext) Singleton(comp Component) (EntityID, bool) {
	return c.world.singleton(comp.TypeIndex())
}

func (c *SystemContext) recordWrite(arch *archetype) {
	for _, typ := range c.system.writes {
		if arch.contains(typ) {
			c.written.record(typ, arch.id)
		}
	}
}

func (c *SystemContext) checkGlobal(idx GlobalIndex, mode AccessMode) {
	access, declared := c.system.globalAccess(idx)
	if !declared || access.Mode < mode {
		panic(UndeclaredGlobalAccessError{System: c.system.label, Global: idx, Mode: mode})
	}
}

func (c *SystemContext) checkUpdate() error {
	if !c.system.canUpdate {
		return UpdateNotPermittedError{System: c.system.label}
	}
	return nil
}

// CreateEntity queues the creation of a root entity.
func (c *SystemContext) CreateEntity(values ...ComponentValue) error {
	if err := c.checkUpdate(); err != nil {
		return err
	}
	c.world.queue.EnqueueCreate(nil, slices.Clone(values))
	return nil
}

// CreateChildEntity queues the creation of a child entity. It is dropped if
// the parent no longer exists when the queue is applied.
func (c *SystemContext) CreateChildEntity(parent EntityID, values ...ComponentValue) error {
	if err := c.checkUpdate(); err != nil {
		return err
	}
	c.world.queue.EnqueueCreate(&parent, slices.Clone(values))
	return nil
}

// AddComponent queues adding or overwriting a component.
func (c *SystemContext) AddComponent(id EntityID, value ComponentValue) error {
	if err := c.checkUpdate(); err != nil {
		return err
	}
	c.world.queue.EnqueueAddComponent(id, value)
	return nil
}

// DeleteComponent queues removing a component.
func (c *SystemContext) DeleteComponent(id EntityID, comp Component) error {
	if err := c.checkUpdate(); err != nil {
		return err
	}
	c.world.queue.EnqueueRemoveComponent(id, comp.TypeIndex())
	return nil
}

// DeleteEntity queues deleting the entity and its children.
// Other queued changes of the entity are discarded.
func (c *SystemContext) DeleteEntity(id EntityID) error {
	if err := c.checkUpdate(); err != nil {
		return err
	}
	c.world.queue.EnqueueDestroy(id)
	return nil
}

// SetGlobal queues creating or overwriting a global.
func (c *SystemContext) SetGlobal(value GlobalValue) error {
	if err := c.checkUpdate(); err != nil {
		return err
	}
	c.world.queue.EnqueueSetGlobal(value)
	return nil
}

// DeleteGlobal queues removing a global.
func (c *SystemContext) DeleteGlobal(g Global) error {
	if err := c.checkUpdate(); err != nil {
		return err
	}
	c.world.queue.EnqueueDeleteGlobal(g.GlobalIndex())
	return nil
}
