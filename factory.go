package foreman

type factory struct{}

var Factory factory

// NewWorld creates an empty world.
func (f factory) NewWorld(opts ...Option) (*World, error) {
	return newWorld(opts...)
}

// NewSystem starts the description of a system running fn on every update.
func (f factory) NewSystem(label string, fn SystemFunc) *SystemBuilder {
	return newSystemBuilder(label, fn)
}

// NewActionBoundary describes a system doing no work that marks the end of an
// action, so later systems can depend on it once its dependencies are done.
func (f factory) NewActionBoundary(label string, action ActionID, dependencies ...ActionDependency) *SystemBuilder {
	return newSystemBuilder(label, nil).
		Filter(Or()).
		RunAs(action).
		After(dependencies...)
}

// NewQuery builds a filter kept by every item, like And.
func (f factory) NewQuery(items ...any) Filter {
	return And(items...)
}

func FactoryNewComponent[T any]() AccessibleComponent[T] {
	return AccessibleComponent[T]{index: RegisterComponentType[T]()}
}

// FactoryNewSingleton returns a handle on a component at most one entity may hold.
// It panics if T was already registered as an ordinary component, and the
// ordinary constructors panic if T was registered as a singleton.
func FactoryNewSingleton[T any]() AccessibleComponent[T] {
	return AccessibleComponent[T]{index: registerComponentType[T](true)}
}

// FactoryNewGlobal returns a handle on the global type T.
func FactoryNewGlobal[T any]() AccessibleGlobal[T] {
	return AccessibleGlobal[T]{index: RegisterGlobalType[T]()}
}

func FactoryNewCache[T any](cap int) Cache[T] {
	return &SimpleCache[T]{
		itemIndices: make(map[string]int),
		maxCapacity: cap,
	}
}
