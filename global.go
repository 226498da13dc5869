package foreman

import (
	"reflect"
	"strconv"
	"sync"
)

// GlobalIndex identifies a registered global type.
// Like component indices, global indices are shared by every world of the process.
type GlobalIndex uint32

// Global is anything naming a global type, used to declare system access.
type Global interface {
	GlobalIndex() GlobalIndex
}

var globalTypes = &globalRegistry{
	byType: make(map[reflect.Type]GlobalIndex),
}

type globalRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]GlobalIndex
	types  []reflect.Type
}

// RegisterGlobalType returns the index of the global type T, registering it on first use.
func RegisterGlobalType[T any]() GlobalIndex {
	typ := reflect.TypeFor[T]()

	globalTypes.mu.RLock()
	idx, found := globalTypes.byType[typ]
	globalTypes.mu.RUnlock()
	if found {
		return idx
	}

	globalTypes.mu.Lock()
	defer globalTypes.mu.Unlock()
	if idx, found := globalTypes.byType[typ]; found {
		return idx
	}
	idx = GlobalIndex(len(globalTypes.types))
	globalTypes.types = append(globalTypes.types, typ)
	globalTypes.byType[typ] = idx
	return idx
}

// GlobalIndex lets a raw index be used wherever a Global is expected.
func (idx GlobalIndex) GlobalIndex() GlobalIndex {
	return idx
}

func (idx GlobalIndex) String() string {
	globalTypes.mu.RLock()
	defer globalTypes.mu.RUnlock()
	if int(idx) < len(globalTypes.types) {
		return globalTypes.types[idx].String()
	}
	return "global#" + strconv.Itoa(int(idx))
}

// GlobalValue is a global value waiting to be stored in a world.
// Values are produced by AccessibleGlobal.New.
type GlobalValue struct {
	index GlobalIndex
	store func(*globalStore)
}

// GlobalIndex returns the global type the value belongs to.
func (v GlobalValue) GlobalIndex() GlobalIndex {
	return v.index
}

// globalStore holds at most one value per global type, kept behind a pointer
// so that overwriting a global does not invalidate pointers already handed out.
type globalStore struct {
	values map[GlobalIndex]any
}

func newGlobalStore() *globalStore {
	return &globalStore{values: make(map[GlobalIndex]any)}
}

func (gs *globalStore) exists(idx GlobalIndex) bool {
	_, found := gs.values[idx]
	return found
}

func (gs *globalStore) delete(idx GlobalIndex) bool {
	if !gs.exists(idx) {
		return false
	}
	delete(gs.values, idx)
	return true
}

// AccessibleGlobal is a typed handle on a global type.
type AccessibleGlobal[T any] struct {
	index GlobalIndex
}

func (g AccessibleGlobal[T]) GlobalIndex() GlobalIndex {
	return g.index
}

// New wraps a value so it can be stored as the global.
func (g AccessibleGlobal[T]) New(value T) GlobalValue {
	return GlobalValue{
		index: g.index,
		store: func(gs *globalStore) {
			if current, found := gs.values[g.index]; found {
				*current.(*T) = value
				return
			}
			gs.values[g.index] = &value
		},
	}
}

func (g AccessibleGlobal[T]) lookup(gs *globalStore) (*T, bool) {
	value, found := gs.values[g.index]
	if !found {
		return nil, false
	}
	return value.(*T), true
}

// Get returns the global held by the world.
func (g AccessibleGlobal[T]) Get(w *World) (*T, bool) {
	return g.lookup(w.storage.globals)
}

// Set creates or overwrites the global of the world.
func (g AccessibleGlobal[T]) Set(w *World, value T) error {
	return w.SetGlobal(g.New(value))
}

// FromContext returns the global for a system that declared any access to it.
// It panics with UndeclaredGlobalAccessError otherwise.
func (g AccessibleGlobal[T]) FromContext(ctx *SystemContext) (*T, bool) {
	ctx.checkGlobal(g.index, Read)
	return g.lookup(ctx.world.storage.globals)
}

// FromContextMut returns the global for a system that declared write access to it.
func (g AccessibleGlobal[T]) FromContextMut(ctx *SystemContext) (*T, bool) {
	ctx.checkGlobal(g.index, Write)
	return g.lookup(ctx.world.storage.globals)
}
