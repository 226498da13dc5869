package foreman

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationQueueDeletionWins(t *testing.T) {
	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()

	tests := []struct {
		name         string
		enqueue      func(q *opQueue)
		wantChanges  []EntityID
		wantDestroys []EntityID
	}{
		{
			name: "Add then destroy",
			enqueue: func(q *opQueue) {
				q.EnqueueAddComponent(1, posComp.New(Position{}))
				q.EnqueueDestroy(1)
			},
			wantDestroys: []EntityID{1},
		},
		{
			name: "Destroy then add",
			enqueue: func(q *opQueue) {
				q.EnqueueDestroy(1)
				q.EnqueueAddComponent(1, posComp.New(Position{}))
				q.EnqueueRemoveComponent(1, velComp.TypeIndex())
			},
			wantDestroys: []EntityID{1},
		},
		{
			name: "Changes accumulate per entity",
			enqueue: func(q *opQueue) {
				q.EnqueueAddComponent(2, posComp.New(Position{}))
				q.EnqueueAddComponent(1, posComp.New(Position{}))
				q.EnqueueRemoveComponent(2, velComp.TypeIndex())
			},
			wantChanges: []EntityID{2, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newOpQueue(4)
			tt.enqueue(q)
			ops := q.drain()

			var changes, destroys []EntityID
			for _, op := range ops.changes {
				changes = append(changes, op.id)
			}
			for _, op := range ops.destroys {
				destroys = append(destroys, op.id)
				assert.Empty(t, op.adds)
				assert.Empty(t, op.removes)
			}
			assert.Equal(t, tt.wantChanges, changes)
			assert.Equal(t, tt.wantDestroys, destroys)
			assert.True(t, q.empty())
		})
	}
}

func TestOperationQueueConcurrentEnqueue(t *testing.T) {
	posComp := FactoryNewComponent[Position]()
	q := newOpQueue(8)

	const workers, perWorker = 8, 100
	var wg sync.WaitGroup
	for worker := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				q.EnqueueAddComponent(EntityID(worker*perWorker+i), posComp.New(Position{}))
				q.EnqueueCreate(nil, nil)
			}
		}()
	}
	wg.Wait()

	ops := q.drain()
	assert.Len(t, ops.changes, workers*perWorker)
	assert.Len(t, ops.roots, workers*perWorker)
	assert.Equal(t, 2*workers*perWorker, ops.requested)
	for i := 1; i < len(ops.changes); i++ {
		assert.Less(t, ops.changes[i-1].seq, ops.changes[i].seq)
	}
}

func TestProcessOperationQueueOrder(t *testing.T) {
	w := newTestWorld(t)
	nameComp := FactoryNewComponent[Name]()
	posComp := FactoryNewComponent[Position]()

	parent, err := w.CreateEntity(nameComp.New(Name{"parent"}))
	require.NoError(t, err)
	doomed, err := w.CreateEntity(nameComp.New(Name{"doomed"}))
	require.NoError(t, err)

	// deletions run last: the child is created first, then removed with its parent,
	// and the root creation cannot reuse the identifier of the deleted entity
	w.queue.EnqueueDestroy(parent)
	w.queue.EnqueueCreate(&parent, []ComponentValue{nameComp.New(Name{"child"})})
	w.queue.EnqueueDestroy(doomed)
	w.queue.EnqueueCreate(nil, []ComponentValue{nameComp.New(Name{"root"})})
	w.queue.EnqueueAddComponent(doomed, posComp.New(Position{}))

	requested := w.storage.processOperationQueue(w.queue)
	assert.Equal(t, 4, requested)

	assert.False(t, w.Alive(parent))
	assert.False(t, w.Alive(doomed))
	assert.Equal(t, 1, w.EntityCount())

	root := w.Query(And(), nameComp).IDs()
	require.Len(t, root, 1)
	assert.Equal(t, EntityID(3), root[0], "the child took identifier 2 before being deleted")
	name, _ := nameComp.GetFromEntity(w, root[0])
	assert.Equal(t, "root", name.Value)
}

func TestProcessOperationQueueDropsInvalid(t *testing.T) {
	var logs bytes.Buffer
	w := newTestWorld(t, WithLogger(zerolog.New(&logs)))
	clock := FactoryNewSingleton[Clock]()
	posComp := FactoryNewComponent[Position]()

	_, err := w.CreateEntity(clock.New(Clock{}))
	require.NoError(t, err)

	w.queue.EnqueueCreate(nil, []ComponentValue{clock.New(Clock{Tick: 9})})
	w.queue.EnqueueAddComponent(77, posComp.New(Position{}))
	missing := EntityID(78)
	w.queue.EnqueueCreate(&missing, []ComponentValue{posComp.New(Position{})})
	w.storage.processOperationQueue(w.queue)

	assert.Equal(t, 1, w.EntityCount())
	assert.Contains(t, logs.String(), "queued entity creation dropped")
	assert.Contains(t, logs.String(), "singleton")
	assert.True(t, w.queue.empty())
}
