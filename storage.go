package foreman

import (
	"slices"

	"github.com/rs/zerolog"
)

type storage struct {
	archetypes *archetypes
	entities   entityIndex
	singletons map[ComponentTypeIndex]EntityID
	globals    *globalStore
	onNewRow   func(ArchetypeIndex)
	logger     *zerolog.Logger
}

func newStorage(capacity int, logger *zerolog.Logger) *storage {
	sto := &storage{
		archetypes: newArchetypes(capacity),
		singletons: make(map[ComponentTypeIndex]EntityID),
		globals:    newGlobalStore(),
		logger:     logger,
	}
	sto.archetypes.onCreate = func(arch *archetype) {
		sto.logger.Debug().
			Uint32("archetype", uint32(arch.id)).
			Interface("signature", arch.signature).
			Msg("archetype created")
	}
	return sto
}

func (sto *storage) archetypeFor(types []ComponentTypeIndex) *archetype {
	return sto.archetypes.forSignature(types)
}

// newEntity stores a new entity built from values. Later values override earlier ones of the same type.
func (sto *storage) newEntity(values []ComponentValue, parent *EntityID) (EntityID, error) {
	values = dedupeValues(values)
	if parent != nil && !sto.entities.isAlive(*parent) {
		return 0, EntityNotFoundError{ID: *parent}
	}
	types := make([]ComponentTypeIndex, len(values))
	for i, value := range values {
		types[i] = value.index
		if err := sto.checkSingleton(value.index, nil); err != nil {
			return 0, err
		}
	}

	arch := sto.archetypeFor(types)
	row := len(arch.entities)
	id := sto.entities.allocate(entityLocation{archetype: arch.id, row: row})
	if parent != nil {
		sto.entities.setParent(id, *parent)
	}
	for _, value := range values {
		arch.column(value.index).push(value.value)
		if components.isSingleton(value.index) {
			sto.singletons[value.index] = id
		}
	}
	arch.entities = append(arch.entities, id)
	sto.notifyNewRow(arch.id)
	return id, nil
}

func (sto *storage) checkSingleton(typ ComponentTypeIndex, owner *EntityID) error {
	if !components.isSingleton(typ) {
		return nil
	}
	existing, found := sto.singletons[typ]
	if !found || !sto.entities.isAlive(existing) {
		return nil
	}
	if owner != nil && *owner == existing {
		return nil
	}
	return DuplicateSingletonError{Component: typ, Existing: existing}
}

// changeComponents removes then adds components, moving the entity once.
func (sto *storage) changeComponents(id EntityID, removed []ComponentTypeIndex, added []ComponentValue) error {
	location, ok := sto.entities.location(id)
	if !ok {
		return EntityNotFoundError{ID: id}
	}
	added = dedupeValues(added)
	for _, value := range added {
		if err := sto.checkSingleton(value.index, &id); err != nil {
			return err
		}
	}

	src := sto.archetypes.get(location.archetype)
	dst := src
	for _, typ := range removed {
		dst = sto.archetypes.withoutComponent(dst, typ)
	}
	for _, value := range added {
		dst = sto.archetypes.withComponent(dst, value.index)
	}
	for _, typ := range removed {
		if src.contains(typ) && !dst.contains(typ) && sto.singletons[typ] == id {
			delete(sto.singletons, typ)
		}
	}
	sto.moveEntity(id, location, dst, added)
	for _, value := range added {
		if components.isSingleton(value.index) {
			sto.singletons[value.index] = id
		}
	}
	return nil
}

// moveEntity copies the entity row into dst, then removes the source row and repoints the index.
func (sto *storage) moveEntity(id EntityID, from entityLocation, dst *archetype, added []ComponentValue) entityLocation {
	src := sto.archetypes.get(from.archetype)
	if src.entityAt(from.row) != id {
		panic("internal error: entity index out of sync with archetype rows")
	}
	if src == dst {
		for _, value := range added {
			src.column(value.index).set(from.row, value.value)
		}
		return from
	}

	for i, typ := range dst.signature {
		if pos := slices.IndexFunc(added, func(v ComponentValue) bool { return v.index == typ }); pos >= 0 {
			dst.columns[i].push(added[pos].value)
			continue
		}
		srcColumn := src.column(typ)
		if srcColumn == nil {
			panic("internal error: destination archetype type has no source value")
		}
		dst.columns[i].pushFrom(srcColumn, from.row)
	}
	dst.entities = append(dst.entities, id)
	to := entityLocation{archetype: dst.id, row: len(dst.entities) - 1}

	sto.removeRow(src, from.row)
	sto.entities.setLocation(id, to)
	sto.notifyNewRow(dst.id)
	return to
}

// removeRow swap-removes a row and repoints the entity that took its place.
func (sto *storage) removeRow(arch *archetype, row int) {
	last := len(arch.entities) - 1
	if row > last {
		panic("internal error: row out of archetype bounds")
	}
	for _, col := range arch.columns {
		col.swapRemove(row)
	}
	moved := arch.entities[last]
	arch.entities[row] = moved
	arch.entities = arch.entities[:last]
	if row != last {
		sto.entities.setLocation(moved, entityLocation{archetype: arch.id, row: row})
	}
}

// deleteEntity removes the entity and, recursively, its children.
func (sto *storage) deleteEntity(id EntityID) bool {
	if !sto.entities.isAlive(id) {
		return false
	}
	for _, child := range sto.entities.children(id) {
		sto.deleteEntity(child)
	}
	// children may have been swapped into our row range, so read the location late
	location := sto.entities.mustLocation(id)
	arch := sto.archetypes.get(location.archetype)
	for _, typ := range arch.signature {
		if owner, found := sto.singletons[typ]; found && owner == id {
			delete(sto.singletons, typ)
		}
	}
	sto.removeRow(arch, location.row)
	sto.entities.release(id)
	return true
}

func (sto *storage) notifyNewRow(id ArchetypeIndex) {
	if sto.onNewRow != nil {
		sto.onNewRow(id)
	}
}

func dedupeValues(values []ComponentValue) []ComponentValue {
	deduped := make([]ComponentValue, 0, len(values))
	for _, value := range values {
		if pos := slices.IndexFunc(deduped, func(v ComponentValue) bool { return v.index == value.index }); pos >= 0 {
			deduped[pos] = value
			continue
		}
		deduped = append(deduped, value)
	}
	return deduped
}
