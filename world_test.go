package foreman

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compA struct{ Value int }

type compB struct{ Value int }

type marker struct{ Frame int }

// TestWithBQueryScenario walks through creating, querying and shrinking two entities
func TestWithBQueryScenario(t *testing.T) {
	w := newTestWorld(t)
	a := FactoryNewComponent[compA]()
	b := FactoryNewComponent[compB]()

	e1, err := w.CreateEntity(a.New(compA{1}))
	require.NoError(t, err)
	e2, err := w.CreateEntity(a.New(compA{2}), b.New(compB{2}))
	require.NoError(t, err)

	query := w.Query(With(b))
	assert.Equal(t, []EntityID{e2}, query.IDs())

	require.NoError(t, w.DeleteComponent(e2, b))
	assert.Empty(t, query.IDs())

	onlyA, err := w.ArchetypeFor(a)
	require.NoError(t, err)
	arch1, _ := w.ArchetypeOf(e1)
	arch2, _ := w.ArchetypeOf(e2)
	assert.Equal(t, onlyA, arch1.ID())
	assert.Equal(t, onlyA, arch2.ID())

	value, ok := a.GetFromEntity(w, e2)
	require.True(t, ok)
	assert.Equal(t, 2, value.Value)
}

func TestDeferredVisibility(t *testing.T) {
	for _, threads := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("threads=%d", threads), func(t *testing.T) {
			w := newTestWorld(t, WithThreadCount(threads))
			mark := FactoryNewComponent[marker]()

			spawner := register(t, w, Factory.NewSystem("spawn", func(ctx *SystemContext) error {
				return ctx.CreateEntity(mark.New(marker{}))
			}).CanUpdate())

			var sameStage, nextStage atomic.Int64
			register(t, w, Factory.NewSystem("same stage", func(ctx *SystemContext) error {
				sameStage.Store(int64(ctx.Entities().Count()))
				return nil
			}).Reads(mark))
			register(t, w, Factory.NewSystem("next stage", func(ctx *SystemContext) error {
				nextStage.Store(int64(ctx.Entities().Count()))
				return nil
			}).Reads(mark).After(DependsOnSystem(spawner)))

			require.NoError(t, w.Update())
			assert.EqualValues(t, 0, sameStage.Load())
			assert.EqualValues(t, 1, nextStage.Load())

			require.NoError(t, w.Update())
			assert.EqualValues(t, 1, sameStage.Load())
			assert.EqualValues(t, 2, nextStage.Load())
			assert.Equal(t, 2, w.EntityCount())
		})
	}
}

func TestSystemStructuralChanges(t *testing.T) {
	w := newTestWorld(t, WithThreadCount(2))
	healthComp := FactoryNewComponent[Health]()
	nameComp := FactoryNewComponent[Name]()
	mark := FactoryNewComponent[marker]()

	alive, err := w.CreateEntity(healthComp.New(Health{Current: 5, Max: 5}))
	require.NoError(t, err)
	dead, err := w.CreateEntity(healthComp.New(Health{Current: 0, Max: 5}), nameComp.New(Name{"dead"}))
	require.NoError(t, err)
	child, err := w.CreateChildEntity(dead, nameComp.New(Name{"child"}))
	require.NoError(t, err)

	register(t, w, Factory.NewSystem("reap", func(ctx *SystemContext) error {
		for id, row := range ctx.Entities().Iter() {
			health := healthComp.GetFromRow(row)
			if health.Current > 0 {
				if err := ctx.AddComponent(id, mark.New(marker{})); err != nil {
					return err
				}
				if err := ctx.DeleteComponent(id, healthComp); err != nil {
					return err
				}
				continue
			}
			if err := ctx.AddComponent(id, mark.New(marker{})); err != nil {
				return err
			}
			if err := ctx.DeleteEntity(id); err != nil {
				return err
			}
			if err := ctx.CreateChildEntity(id, nameComp.New(Name{"orphan"})); err != nil {
				return err
			}
		}
		return nil
	}).Reads(healthComp).CanUpdate())

	require.NoError(t, w.Update())

	assert.False(t, w.Alive(dead))
	assert.False(t, w.Alive(child))
	assert.True(t, w.Alive(alive))
	_, hasHealth := healthComp.GetFromEntity(w, alive)
	assert.False(t, hasHealth)
	arch, _ := w.ArchetypeOf(alive)
	assert.True(t, arch.Contains(mark))
	assert.Equal(t, 1, w.EntityCount(), "children queued under a deleted parent are deleted with it")
}

func TestUpdateNotPermitted(t *testing.T) {
	w := newTestWorld(t)
	nameComp := FactoryNewComponent[Name]()
	entity, err := w.CreateEntity(nameComp.New(Name{}))
	require.NoError(t, err)

	var errs []error
	register(t, w, Factory.NewSystem("read only", func(ctx *SystemContext) error {
		errs = append(errs,
			ctx.CreateEntity(),
			ctx.CreateChildEntity(entity),
			ctx.AddComponent(entity, nameComp.New(Name{})),
			ctx.DeleteComponent(entity, nameComp),
			ctx.DeleteEntity(entity),
		)
		return nil
	}).Reads(nameComp))

	require.NoError(t, w.Update())
	require.Len(t, errs, 5)
	for _, err := range errs {
		var notPermitted UpdateNotPermittedError
		require.ErrorAs(t, err, &notPermitted)
		assert.Equal(t, "read only", notPermitted.System)
	}
	assert.True(t, w.Alive(entity))
	assert.Equal(t, 1, w.EntityCount())
}

func TestLockedStorage(t *testing.T) {
	w := newTestWorld(t, WithThreadCount(1))
	nameComp := FactoryNewComponent[Name]()
	entity, err := w.CreateEntity(nameComp.New(Name{}))
	require.NoError(t, err)

	var errs []error
	register(t, w, Factory.NewSystem("meddle", func(ctx *SystemContext) error {
		assert.True(t, w.Locked())
		_, err := w.CreateEntity()
		errs = append(errs, err)
		_, err = w.CreateChildEntity(entity)
		errs = append(errs, err)
		_, err = w.ArchetypeFor(nameComp)
		errs = append(errs, err)
		_, err = w.RegisterSystem(Factory.NewSystem("late", noop))
		errs = append(errs, err)
		errs = append(errs,
			w.DeleteEntity(entity),
			w.AddComponent(entity, nameComp.New(Name{})),
			w.DeleteComponent(entity, nameComp),
			w.Update(),
		)
		return nil
	}))

	require.NoError(t, w.Update())
	assert.False(t, w.Locked())
	require.Len(t, errs, 8)
	for i, err := range errs {
		var locked LockedStorageError
		assert.ErrorAs(t, err, &locked, "call %d", i)
	}
	assert.Equal(t, 1, w.SystemCount())
}

func TestSystemFailurePoisonsWorld(t *testing.T) {
	errBroken := errors.New("broken")

	tests := []struct {
		name  string
		run   SystemFunc
		check func(t *testing.T, sysErr *SystemError)
	}{
		{
			name: "Returned error",
			run:  func(*SystemContext) error { return errBroken },
			check: func(t *testing.T, sysErr *SystemError) {
				assert.ErrorIs(t, sysErr, errBroken)
				assert.Nil(t, sysErr.Panic)
			},
		},
		{
			name: "Panic",
			run:  func(*SystemContext) error { panic("boom") },
			check: func(t *testing.T, sysErr *SystemError) {
				assert.Equal(t, "boom", sysErr.Panic)
				assert.NotEmpty(t, sysErr.Stack)
			},
		},
		{
			name: "Undeclared access",
			run: func(ctx *SystemContext) error {
				ctx.Query(And(), FactoryNewComponent[Velocity]())
				return nil
			},
			check: func(t *testing.T, sysErr *SystemError) {
				undeclared, ok := sysErr.Panic.(UndeclaredAccessError)
				require.True(t, ok)
				assert.Equal(t, "failing", undeclared.System)
			},
		},
	}

	for _, tt := range tests {
		for _, threads := range []int{1, 4} {
			t.Run(fmt.Sprintf("%s/threads=%d", tt.name, threads), func(t *testing.T) {
				var logs bytes.Buffer
				w := newTestWorld(t, WithThreadCount(threads), WithLogger(zerolog.New(&logs)))
				posComp := FactoryNewComponent[Position]()

				var laterRuns atomic.Int64
				register(t, w, Factory.NewSystem("fine", noop).Reads(posComp))
				failing := register(t, w, Factory.NewSystem("failing", tt.run).Reads(posComp))
				register(t, w, Factory.NewSystem("later", func(*SystemContext) error {
					laterRuns.Add(1)
					return nil
				}).AfterPrevious())

				err := w.Update()
				require.Error(t, err)
				var sysErr *SystemError
				require.ErrorAs(t, err, &sysErr)
				assert.Equal(t, "failing", sysErr.System)
				assert.Equal(t, failing, sysErr.Index)
				tt.check(t, sysErr)

				assert.Zero(t, laterRuns.Load(), "stages after a failure do not run")
				assert.True(t, w.Poisoned())
				assert.False(t, w.Locked())
				assert.ErrorIs(t, w.Update(), ErrWorldPoisoned)
				assert.Contains(t, logs.String(), "update aborted")
			})
		}
	}
}

func TestThreadedUpdate(t *testing.T) {
	w := newTestWorld(t, WithThreadCount(4))
	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()
	healthComp := FactoryNewComponent[Health]()

	for i := range 100 {
		_, err := w.CreateEntity(
			posComp.New(Position{}),
			velComp.New(Velocity{X: 1, Y: float64(i)}),
			healthComp.New(Health{Max: 10}),
		)
		require.NoError(t, err)
	}

	var readers atomic.Int64
	for i := range 6 {
		register(t, w, Factory.NewSystem(fmt.Sprintf("reader %d", i), func(ctx *SystemContext) error {
			for range ctx.Entities().Iter() {
			}
			readers.Add(1)
			return nil
		}).Reads(velComp))
	}
	register(t, w, Factory.NewSystem("move", func(ctx *SystemContext) error {
		for _, row := range ctx.Entities().IterMut() {
			pos := posComp.GetFromRow(row)
			vel := velComp.GetFromRow(row)
			pos.X += vel.X
			pos.Y += vel.Y
		}
		return nil
	}).Writes(posComp).Reads(velComp))
	register(t, w, Factory.NewSystem("heal", func(ctx *SystemContext) error {
		for _, row := range ctx.Entities().IterMut() {
			health := healthComp.GetFromRow(row)
			health.Current = min(health.Current+1, health.Max)
		}
		return nil
	}).Writes(healthComp))
	register(t, w, Factory.NewSystem("overheal", func(ctx *SystemContext) error {
		for _, row := range ctx.Entities().IterMut() {
			healthComp.GetFromRow(row).Max++
		}
		return nil
	}).Writes(healthComp))

	schedule := w.Schedule()
	require.Len(t, schedule.Stages, 1)
	// overheal and heal both write health, everything else shares the first group
	assert.Equal(t, [][]SystemIndex{{0, 1, 2, 3, 4, 5, 6, 7}, {8}}, schedule.Stages[0].Groups)

	const updates = 20
	for range updates {
		require.NoError(t, w.Update())
	}
	assert.EqualValues(t, 6*updates, readers.Load())

	for id, row := range w.Query(And(), posComp, healthComp).Iter() {
		pos := posComp.GetFromRow(row)
		assert.Equal(t, float64(updates), pos.X)
		assert.Equal(t, float64(updates*int(id)), pos.Y)
		health := healthComp.GetFromRow(row)
		assert.Equal(t, 10+updates, health.Max)
		assert.Equal(t, updates, health.Current)
	}
}

func TestConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		w := newTestWorld(t)
		assert.Equal(t, DefaultConfig(), w.Config())
	})

	t.Run("Options", func(t *testing.T) {
		w := newTestWorld(t, WithThreadCount(3), WithArchetypeCapacity(64), WithQueueShards(0))
		cfg := w.Config()
		assert.Equal(t, 3, cfg.ThreadCount)
		assert.Equal(t, 64, cfg.ArchetypeCapacity)
		assert.Equal(t, 1, cfg.QueueShards)
		assert.Len(t, w.queue.shards, 1)
	})

	t.Run("Environment", func(t *testing.T) {
		t.Setenv("FOREMAN_THREAD_COUNT", "3")
		t.Setenv("FOREMAN_QUEUE_SHARDS", "5")
		t.Setenv("FOREMAN_LOG_LEVEL", "debug")

		cfg, err := ConfigFromEnv()
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.ThreadCount)
		assert.Equal(t, 5, cfg.QueueShards)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, DefaultConfig().ArchetypeCapacity, cfg.ArchetypeCapacity)
	})

	t.Run("Invalid log level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LogLevel = "loud"
		_, err := Factory.NewWorld(WithConfig(cfg), WithLogger(zerolog.Nop()))
		assert.Error(t, err)
	})
}

func TestWorldLogging(t *testing.T) {
	var logs bytes.Buffer
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	w := newTestWorld(t, WithConfig(cfg), WithLogger(zerolog.New(&logs)))
	posComp := FactoryNewComponent[Position]()

	_, err := w.CreateEntity(posComp.New(Position{}))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "archetype created")

	register(t, w, Factory.NewSystem("log", func(ctx *SystemContext) error {
		ctx.Logger().Info().Msg("hello from system")
		return nil
	}).Reads(posComp))
	assert.Contains(t, logs.String(), "system registered")

	require.NoError(t, w.Update())
	assert.Contains(t, logs.String(), `"system":"log"`)

	logs.Reset()
	w.Logger().LogWorld(w, zerolog.InfoLevel)
	assert.Contains(t, logs.String(), `"total_systems":1`)
	assert.Contains(t, logs.String(), `"total_archetypes":2`)

	logs.Reset()
	w.Logger().LogSchedule(w, zerolog.InfoLevel)
	assert.Contains(t, logs.String(), `"stages"`)
	assert.Contains(t, logs.String(), `"groups":[{"group":0,"systems":[0]}]`)
}
