package foreman

// AccessibleComponent is a typed handle on a registered component type.
// It retrieves values through cursors, rows and entities without reflection.
type AccessibleComponent[T any] struct {
	index ComponentTypeIndex
}

// TypeIndex returns the registered index of T.
func (c AccessibleComponent[T]) TypeIndex() ComponentTypeIndex {
	return c.index
}

// New wraps a value so it can be attached to an entity.
func (c AccessibleComponent[T]) New(value T) ComponentValue {
	return ComponentValue{index: c.index, value: value}
}

func (c AccessibleComponent[T]) columnOf(arch *archetype) *typedColumn[T] {
	col := arch.column(c.index)
	if col == nil {
		return nil
	}
	return col.(*typedColumn[T])
}

// GetFromCursor retrieves a component value for the entity at the cursor position
func (c AccessibleComponent[T]) GetFromCursor(cursor *Cursor) *T {
	row := cursor.currentRow()
	col := c.columnOf(row.arch)
	if col == nil {
		panic(ComponentNotFoundError{Entity: row.Entity(), Component: c.index})
	}
	return col.get(row.index)
}

// GetFromCursorSafe safely retrieves a component value, checking if the component exists
// Returns a boolean indicating success and the component pointer if found
func (c AccessibleComponent[T]) GetFromCursorSafe(cursor *Cursor) (bool, *T) {
	if !c.CheckCursor(cursor) {
		return false, nil
	}
	return true, c.GetFromCursor(cursor)
}

// CheckCursor determines if the component exists in the archetype at the cursor position
func (c AccessibleComponent[T]) CheckCursor(cursor *Cursor) bool {
	return cursor.currentArchetype != nil && cursor.currentArchetype.contains(c.index)
}

// GetFromRow returns the value stored in the row, or nil when the archetype lacks the component.
func (c AccessibleComponent[T]) GetFromRow(row Row) *T {
	col := c.columnOf(row.arch)
	if col == nil {
		return nil
	}
	return col.get(row.index)
}

// GetFromEntity retrieves a component value for the specified entity
func (c AccessibleComponent[T]) GetFromEntity(w *World, id EntityID) (*T, bool) {
	location, ok := w.storage.entities.location(id)
	if !ok {
		return nil, false
	}
	value := c.GetFromRow(Row{arch: w.storage.archetypes.get(location.archetype), index: location.row})
	return value, value != nil
}

// Singleton returns the value held by the unique entity owning the component.
func (c AccessibleComponent[T]) Singleton(w *World) (*T, bool) {
	id, ok := w.Singleton(c)
	if !ok {
		return nil, false
	}
	return c.GetFromEntity(w, id)
}
