package foreman

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/TheBitDrifter/table"
)

// ComponentTypeIndex identifies a registered component type.
// Indices are stable for the lifetime of the process and never reused.
type ComponentTypeIndex uint32

// Component represents a data attribute/state that can be attached to entities
// Components can be used to create filters and queries for entities
type Component interface {
	TypeIndex() ComponentTypeIndex
}

// ComponentValue is a type-erased component value waiting to be stored in a column.
// Values are produced by AccessibleComponent.New.
type ComponentValue struct {
	index ComponentTypeIndex
	value any
}

// TypeIndex returns the component type the value belongs to.
func (v ComponentValue) TypeIndex() ComponentTypeIndex {
	return v.index
}

// Value returns the wrapped value.
func (v ComponentValue) Value() any {
	return v.value
}

// mainSchema is shared by every world so that indices stay process-wide.
var mainSchema = table.Factory.NewSchema()

var components = &componentRegistry{
	byType: make(map[reflect.Type]ComponentTypeIndex),
}

type componentRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]ComponentTypeIndex
	infos  []componentInfo
}

type componentInfo struct {
	registered bool
	singleton  bool
	typ        reflect.Type
	element    table.ElementType
	newColumn  func(capacity int) column
}

// RegisterComponentType returns the index of T, registering it on first use.
func RegisterComponentType[T any]() ComponentTypeIndex {
	return registerComponentType[T](false)
}

func registerComponentType[T any](singleton bool) ComponentTypeIndex {
	typ := reflect.TypeFor[T]()

	components.mu.RLock()
	idx, found := components.byType[typ]
	var registeredSingleton bool
	if found {
		registeredSingleton = components.infos[idx].singleton
	}
	components.mu.RUnlock()
	if found {
		return checkSingletonKind(typ, idx, registeredSingleton, singleton)
	}

	components.mu.Lock()
	defer components.mu.Unlock()
	if idx, found := components.byType[typ]; found {
		return checkSingletonKind(typ, idx, components.infos[idx].singleton, singleton)
	}

	element := table.FactoryNewElementType[T]()
	mainSchema.Register(element)
	idx = ComponentTypeIndex(mainSchema.RowIndexFor(element))

	if int(idx) >= len(components.infos) {
		grown := make([]componentInfo, int(idx)+1)
		copy(grown, components.infos)
		components.infos = grown
	}
	components.infos[idx] = componentInfo{
		registered: true,
		singleton:  singleton,
		typ:        typ,
		element:    element,
		newColumn: func(capacity int) column {
			return newTypedColumn[T](capacity)
		},
	}
	components.byType[typ] = idx
	return idx
}

// checkSingletonKind panics when a type is registered again with a different singleton flag.
func checkSingletonKind(typ reflect.Type, idx ComponentTypeIndex, registered, requested bool) ComponentTypeIndex {
	if registered != requested {
		panic(fmt.Sprintf("foreman: component %s already registered with singleton=%t", typ, registered))
	}
	return idx
}

func (r *componentRegistry) info(idx ComponentTypeIndex) componentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(idx) >= len(r.infos) || !r.infos[idx].registered {
		panic("internal error: component type " + strconv.Itoa(int(idx)) + " is not registered")
	}
	return r.infos[idx]
}

func (r *componentRegistry) isSingleton(idx ComponentTypeIndex) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(idx) < len(r.infos) && r.infos[idx].singleton
}

// registered lists every known component type in index order.
func (r *componentRegistry) registered() []ComponentTypeIndex {
	r.mu.RLock()
	defer r.mu.RUnlock()
	indices := make([]ComponentTypeIndex, 0, len(r.byType))
	for i, info := range r.infos {
		if info.registered {
			indices = append(indices, ComponentTypeIndex(i))
		}
	}
	return indices
}

// TypeIndex lets a raw index be used wherever a Component is expected.
func (idx ComponentTypeIndex) TypeIndex() ComponentTypeIndex {
	return idx
}

// String returns the Go type name of the component, or its number when unknown.
func (idx ComponentTypeIndex) String() string {
	components.mu.RLock()
	defer components.mu.RUnlock()
	if int(idx) < len(components.infos) && components.infos[idx].registered {
		return components.infos[idx].typ.String()
	}
	return "component#" + strconv.Itoa(int(idx))
}
