package foreman

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

type changeKey struct {
	system    SystemIndex
	component ComponentTypeIndex
}

// changeTracker records, per reading system, which archetypes received new rows
// or had a component column write-accessed since that system last ran.
// Only systems whose filters contain Changed are tracked.
type changeTracker struct {
	mu       sync.Mutex
	watchers map[ComponentTypeIndex][]SystemIndex
	tracked  []SystemIndex
	added    map[SystemIndex]*roaring.Bitmap
	mutated  map[changeKey]*roaring.Bitmap
	ran      *roaring.Bitmap
}

func newChangeTracker() *changeTracker {
	return &changeTracker{
		watchers: make(map[ComponentTypeIndex][]SystemIndex),
		added:    make(map[SystemIndex]*roaring.Bitmap),
		mutated:  make(map[changeKey]*roaring.Bitmap),
		ran:      roaring.New(),
	}
}

func (t *changeTracker) track(system SystemIndex, types []ComponentTypeIndex) {
	if len(types) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked = append(t.tracked, system)
	t.added[system] = roaring.New()
	for _, typ := range types {
		t.watchers[typ] = append(t.watchers[typ], system)
		t.mutated[changeKey{system, typ}] = roaring.New()
	}
}

func (t *changeTracker) isTracked(system SystemIndex) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, found := t.added[system]
	return found
}

func (t *changeTracker) markNewRow(arch ArchetypeIndex) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, system := range t.tracked {
		t.added[system].Add(uint32(arch))
	}
}

func (t *changeTracker) markMutated(typ ComponentTypeIndex, archetypes *roaring.Bitmap) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, system := range t.watchers[typ] {
		t.mutated[changeKey{system, typ}].Or(archetypes)
	}
}

// begin snapshots the bits of a system about to run and resets them for its next run.
func (t *changeTracker) begin(system SystemIndex) *changeView {
	t.mu.Lock()
	defer t.mu.Unlock()
	added, found := t.added[system]
	if !found {
		return nil
	}
	view := &changeView{
		firstRun: !t.ran.Contains(uint32(system)),
		added:    added.Clone(),
		mutated:  make(map[ComponentTypeIndex]*roaring.Bitmap),
	}
	added.Clear()
	for key, bits := range t.mutated {
		if key.system != system {
			continue
		}
		view.mutated[key.component] = bits.Clone()
		bits.Clear()
	}
	t.ran.Add(uint32(system))
	return view
}

// changeView is the read-only change history a system observes during one run.
// A nil view keeps everything.
type changeView struct {
	firstRun bool
	added    *roaring.Bitmap
	mutated  map[ComponentTypeIndex]*roaring.Bitmap
}

func (v *changeView) isChanged(typ ComponentTypeIndex, arch ArchetypeIndex) bool {
	if v == nil || v.firstRun {
		return true
	}
	if v.added.Contains(uint32(arch)) {
		return true
	}
	bits, found := v.mutated[typ]
	return found && bits.Contains(uint32(arch))
}

// writeSet collects the archetypes a running system accessed mutably, per component type.
type writeSet map[ComponentTypeIndex]*roaring.Bitmap

func (w writeSet) record(typ ComponentTypeIndex, arch ArchetypeIndex) {
	bits, found := w[typ]
	if !found {
		bits = roaring.New()
		w[typ] = bits
	}
	bits.Add(uint32(arch))
}
