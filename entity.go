package foreman

import "slices"

// EntityID identifies an entity. Identifiers of deleted entities are reissued
// before new ones are allocated, so they are not monotonic.
type EntityID uint32

type entityLocation struct {
	archetype ArchetypeIndex
	row       int
}

type entityRecord struct {
	location      entityLocation
	alive         bool
	relationships relationships
}

type relationships struct {
	parent    EntityID
	hasParent bool
	children  []EntityID
	depth     int
}

// entityIndex maps entity identifiers to their (archetype, row) location.
type entityIndex struct {
	records []entityRecord
	free    []EntityID
	alive   int
}

func (ei *entityIndex) allocate(location entityLocation) EntityID {
	ei.alive++
	if n := len(ei.free); n > 0 {
		id := ei.free[n-1]
		ei.free = ei.free[:n-1]
		ei.records[id] = entityRecord{location: location, alive: true}
		return id
	}
	ei.records = append(ei.records, entityRecord{location: location, alive: true})
	return EntityID(len(ei.records) - 1)
}

func (ei *entityIndex) setParent(id, parent EntityID) {
	parentRecord := &ei.records[parent]
	parentRecord.relationships.children = append(parentRecord.relationships.children, id)
	ei.records[id].relationships = relationships{
		parent:    parent,
		hasParent: true,
		depth:     parentRecord.relationships.depth + 1,
	}
}

func (ei *entityIndex) location(id EntityID) (entityLocation, bool) {
	if int(id) >= len(ei.records) || !ei.records[id].alive {
		return entityLocation{}, false
	}
	return ei.records[id].location, true
}

func (ei *entityIndex) mustLocation(id EntityID) entityLocation {
	location, ok := ei.location(id)
	if !ok {
		panic("internal error: entity index out of sync with archetypes")
	}
	return location
}

func (ei *entityIndex) setLocation(id EntityID, location entityLocation) {
	if int(id) >= len(ei.records) || !ei.records[id].alive {
		panic("internal error: relocating a vacant entity")
	}
	ei.records[id].location = location
}

func (ei *entityIndex) isAlive(id EntityID) bool {
	return int(id) < len(ei.records) && ei.records[id].alive
}

func (ei *entityIndex) parent(id EntityID) (EntityID, bool) {
	if !ei.isAlive(id) {
		return 0, false
	}
	rel := ei.records[id].relationships
	return rel.parent, rel.hasParent
}

func (ei *entityIndex) children(id EntityID) []EntityID {
	if !ei.isAlive(id) {
		return nil
	}
	return slices.Clone(ei.records[id].relationships.children)
}

func (ei *entityIndex) depth(id EntityID) int {
	if !ei.isAlive(id) {
		return 0
	}
	return ei.records[id].relationships.depth
}

// release marks the entity vacant, detaches it from its parent and recycles its identifier.
func (ei *entityIndex) release(id EntityID) {
	record := &ei.records[id]
	if rel := record.relationships; rel.hasParent && ei.isAlive(rel.parent) {
		siblings := &ei.records[rel.parent].relationships.children
		if pos := slices.Index(*siblings, id); pos >= 0 {
			*siblings = slices.Delete(*siblings, pos, pos+1)
		}
	}
	*record = entityRecord{}
	ei.free = append(ei.free, id)
	ei.alive--
}
