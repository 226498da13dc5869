package foreman

import (
	"fmt"
	"iter"

	"github.com/TheBitDrifter/mask"
	iter_util "github.com/TheBitDrifter/util/iter"
)

type Operation int

const (
	OpAnd Operation = iota
	OpOr
	OpNot
)

// Filter selects the archetypes visible to a query or a system.
// Filters are built with And, Or, Not, With, Without and Changed.
type Filter interface {
	keeps(arch *archetype, view *changeView) bool
	changedTypes() []ComponentTypeIndex
}

type compositeNode struct {
	op         Operation
	children   []Filter
	components []ComponentTypeIndex
	mask       mask.Mask
}

type changedNode struct {
	component ComponentTypeIndex
}

func newCompositeNode(op Operation, items []any) *compositeNode {
	node := &compositeNode{op: op}
	for _, item := range items {
		switch v := item.(type) {
		case Filter:
			node.children = append(node.children, v)
		case []Filter:
			node.children = append(node.children, v...)
		case Component:
			node.components = append(node.components, v.TypeIndex())
		case []Component:
			for _, c := range v {
				node.components = append(node.components, c.TypeIndex())
			}
		default:
			panic(fmt.Sprintf("foreman: unsupported filter item %T", item))
		}
	}
	// mask is built once here instead of on every evaluation
	for _, typ := range node.components {
		node.mask.Mark(uint32(typ))
	}
	return node
}

// And keeps archetypes matched by every item. And() keeps every archetype.
func And(items ...any) Filter {
	return newCompositeNode(OpAnd, items)
}

// Or keeps archetypes matched by at least one item. Or() keeps no archetype.
func Or(items ...any) Filter {
	return newCompositeNode(OpOr, items)
}

// Not keeps archetypes matched by none of the items.
func Not(items ...any) Filter {
	return newCompositeNode(OpNot, items)
}

// With keeps archetypes containing all the components.
func With(components ...Component) Filter {
	return newCompositeNode(OpAnd, []any{components})
}

// Without keeps archetypes containing none of the components.
func Without(components ...Component) Filter {
	return newCompositeNode(OpNot, []any{components})
}

// Changed keeps archetypes where the component was mutated, or that received
// a new row, since the owning system last ran. Outside of a system, and on the
// first run of a system, it keeps every archetype.
func Changed(c Component) Filter {
	return changedNode{component: c.TypeIndex()}
}

func (n *compositeNode) keeps(arch *archetype, view *changeView) bool {
	switch n.op {
	case OpAnd:
		if !arch.mask.ContainsAll(n.mask) {
			return false
		}
		for _, child := range n.children {
			if !child.keeps(arch, view) {
				return false
			}
		}
		return true

	case OpOr:
		if len(n.components) > 0 && arch.mask.ContainsAny(n.mask) {
			return true
		}
		for _, child := range n.children {
			if child.keeps(arch, view) {
				return true
			}
		}
		return false

	case OpNot:
		for _, child := range n.children {
			if child.keeps(arch, view) {
				return false
			}
		}
		return arch.mask.ContainsNone(n.mask)
	}
	return false
}

func (n *compositeNode) changedTypes() []ComponentTypeIndex {
	var types []ComponentTypeIndex
	for _, child := range n.children {
		types = append(types, child.changedTypes()...)
	}
	return types
}

func (n changedNode) keeps(arch *archetype, view *changeView) bool {
	return view.isChanged(n.component, arch.id)
}

func (n changedNode) changedTypes() []ComponentTypeIndex {
	return []ComponentTypeIndex{n.component}
}

// Query iterates the entities of the archetypes kept by a filter and containing
// every required component.
type Query struct {
	world        *World
	ctx          *SystemContext
	filter       Filter
	required     []ComponentTypeIndex
	requiredMask mask.Mask
}

func newQuery(world *World, ctx *SystemContext, filter Filter, required []ComponentTypeIndex) *Query {
	if filter == nil {
		filter = And()
	}
	q := &Query{
		world:    world,
		ctx:      ctx,
		filter:   filter,
		required: required,
	}
	for _, typ := range required {
		q.requiredMask.Mark(uint32(typ))
	}
	return q
}

func (q *Query) view() *changeView {
	if q.ctx == nil {
		return nil
	}
	return q.ctx.view
}

func (q *Query) matches(arch *archetype) bool {
	return arch.mask.ContainsAll(q.requiredMask) && q.filter.keeps(arch, q.view())
}

// matched returns the kept archetypes in creation order.
func (q *Query) matched() []*archetype {
	var kept []*archetype
	for _, arch := range q.world.storage.archetypes.asSlice {
		if q.matches(arch) {
			kept = append(kept, arch)
		}
	}
	return kept
}

func (q *Query) recordWrite(arch *archetype) {
	if q.ctx != nil {
		q.ctx.recordWrite(arch)
	}
}

// Cursor returns a cursor over the matched rows.
func (q *Query) Cursor() *Cursor {
	return newCursor(q, false)
}

// CursorMut returns a cursor over the matched rows that records write access
// to the components the system declared as written.
func (q *Query) CursorMut() *Cursor {
	return newCursor(q, true)
}

// Iter yields matched rows ordered by archetype creation, then by row.
func (q *Query) Iter() iter.Seq2[EntityID, Row] {
	return q.Cursor().Entities()
}

// IterMut is Iter for rows that will be modified.
func (q *Query) IterMut() iter.Seq2[EntityID, Row] {
	return q.CursorMut().Entities()
}

// EntityIDs yields the identifiers of matched entities in iteration order.
func (q *Query) EntityIDs() iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		for id := range q.Iter() {
			if !yield(id) {
				return
			}
		}
	}
}

// IDs collects the identifiers of matched entities in iteration order.
func (q *Query) IDs() []EntityID {
	return iter_util.Collect(q.EntityIDs())
}

// Count returns the number of matched entities.
func (q *Query) Count() int {
	total := 0
	for _, arch := range q.matched() {
		total += arch.Len()
	}
	return total
}

// Get returns the row of the entity if it exists and is matched by the query.
func (q *Query) Get(id EntityID) (Row, bool) {
	location, ok := q.world.storage.entities.location(id)
	if !ok {
		return Row{}, false
	}
	arch := q.world.storage.archetypes.get(location.archetype)
	if !q.matches(arch) {
		return Row{}, false
	}
	return Row{arch: arch, index: location.row}, true
}

// GetMut is Get for a row that will be modified.
func (q *Query) GetMut(id EntityID) (Row, bool) {
	row, ok := q.Get(id)
	if ok {
		q.recordWrite(row.arch)
	}
	return row, ok
}

// GetBothMut returns the rows of two entities for modification.
// When both identifiers are equal the second row is reported absent, so the
// same row is never handed out twice.
func (q *Query) GetBothMut(id1, id2 EntityID) (Row, bool, Row, bool) {
	row1, ok1 := q.GetMut(id1)
	if id1 == id2 {
		return row1, ok1, Row{}, false
	}
	row2, ok2 := q.GetMut(id2)
	return row1, ok1, row2, ok2
}
