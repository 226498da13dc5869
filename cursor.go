package foreman

import "iter"

// Row points at one entity row of an archetype. It stays valid until the next
// structural change of the world.
type Row struct {
	arch  *archetype
	index int
}

// Entity returns the entity stored in the row.
func (r Row) Entity() EntityID {
	return r.arch.entityAt(r.index)
}

// Archetype returns the archetype holding the row.
func (r Row) Archetype() Archetype {
	return r.arch
}

// Index returns the row position inside its archetype.
func (r Row) Index() int {
	return r.index
}

// Cursor walks the rows matched by a query, archetype by archetype.
type Cursor struct {
	query *Query
	mut   bool

	currentArchetype *archetype
	storageIndex     int
	entityIndex      int
	remaining        int

	initialized      bool
	matchedArchetype []*archetype
}

func newCursor(query *Query, mut bool) *Cursor {
	return &Cursor{
		query: query,
		mut:   mut,
	}
}

// Next moves to the next matched row and reports whether there is one.
// Once exhausted the cursor resets and can be walked again.
func (c *Cursor) Next() bool {
	if c.initialized && c.entityIndex < c.remaining {
		c.entityIndex++
		return true
	}
	return c.advance()
}

func (c *Cursor) advance() bool {
	if !c.initialized {
		c.initialize()
	}
	for c.storageIndex < len(c.matchedArchetype) {
		if c.entityIndex == 0 {
			c.enter(c.matchedArchetype[c.storageIndex])
		}
		if c.entityIndex < c.remaining {
			c.entityIndex++
			return true
		}
		c.storageIndex++
		c.entityIndex = 0
	}
	c.Reset()
	return false
}

func (c *Cursor) enter(arch *archetype) {
	c.currentArchetype = arch
	c.remaining = arch.Len()
	if c.mut && c.remaining > 0 {
		c.query.recordWrite(arch)
	}
}

// Entities yields every matched row together with its entity.
func (c *Cursor) Entities() iter.Seq2[EntityID, Row] {
	return func(yield func(EntityID, Row) bool) {
		c.initialize()

		for c.storageIndex < len(c.matchedArchetype) {
			c.enter(c.matchedArchetype[c.storageIndex])

			for c.entityIndex < c.remaining {
				c.entityIndex++
				row := c.currentRow()
				if !yield(row.Entity(), row) {
					c.Reset()
					return
				}
			}
			c.entityIndex = 0
			c.storageIndex++
		}
		c.Reset()
	}
}

func (c *Cursor) initialize() {
	if c.initialized {
		return
	}
	c.matchedArchetype = c.query.matched()
	c.storageIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	c.initialized = true
}

// Reset rewinds the cursor; matching is recomputed on the next walk.
func (c *Cursor) Reset() {
	c.storageIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	c.currentArchetype = nil
	c.matchedArchetype = nil
	c.initialized = false
}

// CurrentEntity returns the entity and the row under the cursor.
func (c *Cursor) CurrentEntity() (EntityID, Row) {
	row := c.currentRow()
	return row.Entity(), row
}

func (c *Cursor) currentRow() Row {
	if c.currentArchetype == nil || c.entityIndex == 0 {
		panic("foreman: cursor is not positioned on a row")
	}
	return Row{arch: c.currentArchetype, index: c.entityIndex - 1}
}

// RemainingInArchetype returns how many rows are left in the current archetype.
func (c *Cursor) RemainingInArchetype() int {
	return c.remaining - c.entityIndex
}

// TotalMatched returns the number of rows matched by the query.
func (c *Cursor) TotalMatched() int {
	if !c.initialized {
		c.initialize()
	}
	total := 0
	for _, arch := range c.matchedArchetype {
		total += arch.Len()
	}
	return total
}
