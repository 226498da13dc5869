package foreman

import (
	"slices"
	"sync"
	"sync/atomic"
)

type operationType int

const (
	opChange operationType = iota
	opDestroy
)

// entityOperation accumulates every structural change requested for one entity during a stage.
type entityOperation struct {
	seq     uint64
	typ     operationType
	adds    []ComponentValue
	removes []ComponentTypeIndex
}

type createOperation struct {
	seq       uint64
	parent    EntityID
	hasParent bool
	values    []ComponentValue
}

type globalOperation struct {
	seq    uint64
	index  GlobalIndex
	value  GlobalValue
	delete bool
}

type opQueueShard struct {
	mu        sync.Mutex
	pending   map[EntityID]*entityOperation
	createOps []createOperation
}

// opQueue buffers structural changes requested by running systems.
// Appends are safe from concurrent systems; entities hash onto independently locked shards.
type opQueue struct {
	shards []opQueueShard
	seq    atomic.Uint64

	globalMu  sync.Mutex
	globalOps []globalOperation
}

func newOpQueue(shards int) *opQueue {
	if shards < 1 {
		shards = 1
	}
	q := &opQueue{shards: make([]opQueueShard, shards)}
	for i := range q.shards {
		q.shards[i].pending = make(map[EntityID]*entityOperation)
	}
	return q
}

func (q *opQueue) shardFor(id EntityID) *opQueueShard {
	return &q.shards[int(id)%len(q.shards)]
}

// operation returns the pending operation of the entity, or nil if it is already being deleted.
func (q *opQueue) operation(shard *opQueueShard, id EntityID) *entityOperation {
	op, found := shard.pending[id]
	if !found {
		op = &entityOperation{seq: q.seq.Add(1), typ: opChange}
		shard.pending[id] = op
	}
	if op.typ == opDestroy {
		return nil
	}
	return op
}

func (q *opQueue) EnqueueAddComponent(id EntityID, value ComponentValue) {
	shard := q.shardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if op := q.operation(shard, id); op != nil {
		op.adds = append(op.adds, value)
	}
}

func (q *opQueue) EnqueueRemoveComponent(id EntityID, typ ComponentTypeIndex) {
	shard := q.shardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if op := q.operation(shard, id); op != nil {
		op.removes = append(op.removes, typ)
	}
}

// EnqueueDestroy marks the entity for deletion; pending component changes are discarded.
func (q *opQueue) EnqueueDestroy(id EntityID) {
	shard := q.shardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if op := q.operation(shard, id); op != nil {
		op.typ = opDestroy
		op.adds = nil
		op.removes = nil
	}
}

func (q *opQueue) EnqueueCreate(parent *EntityID, values []ComponentValue) {
	seq := q.seq.Add(1)
	op := createOperation{seq: seq, values: values}
	if parent != nil {
		op.parent = *parent
		op.hasParent = true
	}
	shard := &q.shards[int(seq)%len(q.shards)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.createOps = append(shard.createOps, op)
}

// EnqueueSetGlobal queues creating or overwriting a global.
func (q *opQueue) EnqueueSetGlobal(value GlobalValue) {
	q.enqueueGlobal(globalOperation{index: value.index, value: value})
}

// EnqueueDeleteGlobal queues removing a global.
func (q *opQueue) EnqueueDeleteGlobal(idx GlobalIndex) {
	q.enqueueGlobal(globalOperation{index: idx, delete: true})
}

func (q *opQueue) enqueueGlobal(op globalOperation) {
	q.globalMu.Lock()
	defer q.globalMu.Unlock()
	op.seq = q.seq.Add(1)
	q.globalOps = append(q.globalOps, op)
}

type queuedEntity struct {
	id EntityID
	entityOperation
}

type drainedOps struct {
	changes   []queuedEntity
	destroys  []queuedEntity
	children  []createOperation
	roots     []createOperation
	globals   []globalOperation
	requested int
}

// drain empties every shard and returns the operations in registration order.
// It must only be called once no system is running.
func (q *opQueue) drain() drainedOps {
	var out drainedOps
	for i := range q.shards {
		shard := &q.shards[i]
		shard.mu.Lock()
		for id, op := range shard.pending {
			entry := queuedEntity{id: id, entityOperation: *op}
			if op.typ == opDestroy {
				out.destroys = append(out.destroys, entry)
			} else if len(op.adds) > 0 || len(op.removes) > 0 {
				out.changes = append(out.changes, entry)
			}
		}
		for _, op := range shard.createOps {
			if op.hasParent {
				out.children = append(out.children, op)
			} else {
				out.roots = append(out.roots, op)
			}
		}
		clear(shard.pending)
		shard.createOps = shard.createOps[:0]
		shard.mu.Unlock()
	}
	q.globalMu.Lock()
	out.globals = append(out.globals, q.globalOps...)
	q.globalOps = q.globalOps[:0]
	q.globalMu.Unlock()

	bySeq := func(a, b queuedEntity) int { return compareSeq(a.seq, b.seq) }
	slices.SortFunc(out.changes, bySeq)
	slices.SortFunc(out.destroys, bySeq)
	byCreateSeq := func(a, b createOperation) int { return compareSeq(a.seq, b.seq) }
	slices.SortFunc(out.children, byCreateSeq)
	slices.SortFunc(out.roots, byCreateSeq)
	out.requested = len(out.changes) + len(out.destroys) + len(out.children) + len(out.roots) + len(out.globals)
	return out
}

func compareSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (q *opQueue) empty() bool {
	for i := range q.shards {
		shard := &q.shards[i]
		shard.mu.Lock()
		n := len(shard.pending) + len(shard.createOps)
		shard.mu.Unlock()
		if n > 0 {
			return false
		}
	}
	q.globalMu.Lock()
	defer q.globalMu.Unlock()
	return len(q.globalOps) == 0
}

// processOperationQueue applies every queued change exactly once.
// Component changes run first, then child creations whose parent is alive,
// then root creations, then deletions, then global changes in request order.
// It returns the number of drained operations.
func (sto *storage) processOperationQueue(q *opQueue) int {
	ops := q.drain()
	if ops.requested == 0 {
		return 0
	}

	for _, op := range ops.changes {
		if !sto.entities.isAlive(op.id) {
			continue
		}
		if err := sto.changeComponents(op.id, op.removes, op.adds); err != nil {
			sto.logger.Warn().Err(err).Uint32("entity", uint32(op.id)).Msg("queued component change dropped")
		}
	}
	for _, op := range ops.children {
		if !sto.entities.isAlive(op.parent) {
			continue
		}
		parent := op.parent
		if _, err := sto.newEntity(op.values, &parent); err != nil {
			sto.logger.Warn().Err(err).Uint32("parent", uint32(parent)).Msg("queued child creation dropped")
		}
	}
	for _, op := range ops.roots {
		if _, err := sto.newEntity(op.values, nil); err != nil {
			sto.logger.Warn().Err(err).Msg("queued entity creation dropped")
		}
	}
	for _, op := range ops.destroys {
		sto.deleteEntity(op.id)
	}
	for _, op := range ops.globals {
		if op.delete {
			sto.globals.delete(op.index)
			continue
		}
		op.value.store(sto.globals)
	}

	sto.logger.Trace().
		Int("changed", len(ops.changes)).
		Int("created", len(ops.children)+len(ops.roots)).
		Int("deleted", len(ops.destroys)).
		Int("globals", len(ops.globals)).
		Msg("operation queue processed")
	return ops.requested
}
