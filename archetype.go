package foreman

import (
	"slices"

	"github.com/TheBitDrifter/mask"
)

// ArchetypeIndex identifies an archetype. Index 0 is the empty archetype.
type ArchetypeIndex uint32

const emptyArchetype ArchetypeIndex = 0

type archetype struct {
	id        ArchetypeIndex
	signature []ComponentTypeIndex
	mask      mask.Mask
	columns   []column
	entities  []EntityID

	// transitions to the archetype reached by adding or removing one type
	next map[ComponentTypeIndex]ArchetypeIndex
	prev map[ComponentTypeIndex]ArchetypeIndex
}

func newArchetype(id ArchetypeIndex, signature []ComponentTypeIndex, capacity int) *archetype {
	arch := &archetype{
		id:        id,
		signature: signature,
		columns:   make([]column, len(signature)),
		entities:  make([]EntityID, 0, capacity),
		next:      make(map[ComponentTypeIndex]ArchetypeIndex),
		prev:      make(map[ComponentTypeIndex]ArchetypeIndex),
	}
	for i, typ := range signature {
		arch.mask.Mark(uint32(typ))
		arch.columns[i] = components.info(typ).newColumn(capacity)
	}
	return arch
}

// ID returns the archetype index.
func (a *archetype) ID() ArchetypeIndex {
	return a.id
}

// Signature returns the sorted component types stored by the archetype.
func (a *archetype) Signature() []ComponentTypeIndex {
	return slices.Clone(a.signature)
}

// Len returns the number of entities (rows) in the archetype.
func (a *archetype) Len() int {
	return len(a.entities)
}

// Entities returns a copy of the row to entity mapping.
func (a *archetype) Entities() []EntityID {
	return slices.Clone(a.entities)
}

// Contains reports whether the archetype stores the component.
func (a *archetype) Contains(c Component) bool {
	return a.contains(c.TypeIndex())
}

func (a *archetype) contains(typ ComponentTypeIndex) bool {
	_, found := slices.BinarySearch(a.signature, typ)
	return found
}

func (a *archetype) column(typ ComponentTypeIndex) column {
	pos, found := slices.BinarySearch(a.signature, typ)
	if !found {
		return nil
	}
	return a.columns[pos]
}

func (a *archetype) entityAt(row int) EntityID {
	if row < 0 || row >= len(a.entities) {
		panic("internal error: row out of archetype bounds")
	}
	return a.entities[row]
}

// archetypes is the deduplicated archetype graph of a storage.
type archetypes struct {
	asSlice          []*archetype
	idsGroupedByMask map[mask.Mask]ArchetypeIndex
	capacity         int
	onCreate         func(*archetype)
}

func newArchetypes(capacity int) *archetypes {
	as := &archetypes{
		idsGroupedByMask: make(map[mask.Mask]ArchetypeIndex),
		capacity:         capacity,
	}
	as.create(nil)
	return as
}

func (as *archetypes) get(id ArchetypeIndex) *archetype {
	if int(id) >= len(as.asSlice) {
		panic("internal error: unknown archetype")
	}
	return as.asSlice[id]
}

// forSignature looks up or creates the archetype for an unordered set of types.
func (as *archetypes) forSignature(types []ComponentTypeIndex) *archetype {
	var signatureMask mask.Mask
	for _, typ := range types {
		signatureMask.Mark(uint32(typ))
	}
	if id, found := as.idsGroupedByMask[signatureMask]; found {
		return as.asSlice[id]
	}
	signature := slices.Clone(types)
	slices.Sort(signature)
	return as.create(slices.Compact(signature))
}

func (as *archetypes) create(signature []ComponentTypeIndex) *archetype {
	created := newArchetype(ArchetypeIndex(len(as.asSlice)), signature, as.capacity)
	as.asSlice = append(as.asSlice, created)
	as.idsGroupedByMask[created.mask] = created.id

	// Link with neighbours that already exist; missing ones are created lazily on transition.
	for _, typ := range signature {
		smaller := created.mask
		smaller.Unmark(uint32(typ))
		if id, found := as.idsGroupedByMask[smaller]; found {
			as.link(as.asSlice[id], created, typ)
		}
	}
	for _, typ := range components.registered() {
		if created.contains(typ) {
			continue
		}
		larger := created.mask
		larger.Mark(uint32(typ))
		if id, found := as.idsGroupedByMask[larger]; found {
			as.link(created, as.asSlice[id], typ)
		}
	}

	if as.onCreate != nil {
		as.onCreate(created)
	}
	return created
}

func (as *archetypes) link(smaller, larger *archetype, typ ComponentTypeIndex) {
	smaller.next[typ] = larger.id
	larger.prev[typ] = smaller.id
}

func (as *archetypes) withComponent(src *archetype, typ ComponentTypeIndex) *archetype {
	if src.contains(typ) {
		return src
	}
	if id, found := src.next[typ]; found {
		return as.asSlice[id]
	}
	dst := as.forSignature(append(slices.Clone(src.signature), typ))
	as.link(src, dst, typ)
	return dst
}

func (as *archetypes) withoutComponent(src *archetype, typ ComponentTypeIndex) *archetype {
	if !src.contains(typ) {
		return src
	}
	if id, found := src.prev[typ]; found {
		return as.asSlice[id]
	}
	signature := slices.DeleteFunc(slices.Clone(src.signature), func(t ComponentTypeIndex) bool {
		return t == typ
	})
	dst := as.forSignature(signature)
	as.link(dst, src, typ)
	return dst
}
