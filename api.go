package foreman

import "iter"

// Archetype is a read-only view of the entities sharing one component signature.
type Archetype interface {
	ID() ArchetypeIndex
	Signature() []ComponentTypeIndex
	Len() int
	Entities() []EntityID
	Contains(Component) bool
}

type iCursor interface {
	Entities() iter.Seq2[EntityID, Row]
	Next() bool
	Reset()
}

type Cache[T any] interface {
	GetIndex(string) (int, bool)
	GetItem(int) *T
	Register(string, T) (int, error)
	Len() int
}

// EntityQueue buffers structural changes until they can be applied.
type EntityQueue interface {
	EnqueueCreate(parent *EntityID, values []ComponentValue)
	EnqueueAddComponent(EntityID, ComponentValue)
	EnqueueRemoveComponent(EntityID, ComponentTypeIndex)
	EnqueueDestroy(EntityID)
}

var (
	_ Archetype   = &archetype{}
	_ iCursor     = &Cursor{}
	_ EntityQueue = &opQueue{}
	_ Component   = AccessibleComponent[struct{}]{}
	_ Component   = ComponentValue{}
	_ Global      = AccessibleGlobal[struct{}]{}
	_ Global      = GlobalValue{}
)
