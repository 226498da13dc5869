package foreman

import (
	"github.com/rs/zerolog"
)

// Logger wraps the world logger with helpers describing world state.
type Logger struct {
	*zerolog.Logger
}

func (l *Logger) loadSystemsIntoEvent(event *zerolog.Event, w *World) *zerolog.Event {
	event.Int("total_systems", w.SystemCount())
	arrayLogger := zerolog.Arr()
	for _, rec := range w.scheduler.systems {
		dict := zerolog.Dict().
			Int("system_index", int(rec.index)).
			Str("system_label", rec.label).
			Int("stage", w.scheduler.stageOf[rec.index]).
			Bool("can_update", rec.canUpdate)
		if !rec.action.IsZero() {
			dict = dict.Str("action", rec.action.String())
		}
		arrayLogger = arrayLogger.Dict(dict)
	}
	return event.Array("systems", arrayLogger)
}

func (l *Logger) loadArchetypesIntoEvent(event *zerolog.Event, w *World) *zerolog.Event {
	event.Int("total_archetypes", w.ArchetypeCount())
	arrayLogger := zerolog.Arr()
	for _, arch := range w.storage.archetypes.asSlice {
		components := zerolog.Arr()
		for _, typ := range arch.signature {
			components = components.Str(typ.String())
		}
		arrayLogger = arrayLogger.Dict(zerolog.Dict().
			Int("archetype_id", int(arch.id)).
			Int("entities", arch.Len()).
			Array("components", components))
	}
	return event.Array("archetypes", arrayLogger)
}

// LogSystems logs every registered system with its stage.
func (l *Logger) LogSystems(w *World, level zerolog.Level) {
	l.loadSystemsIntoEvent(l.WithLevel(level), w).Send()
}

// LogArchetypes logs every archetype with its signature and size.
func (l *Logger) LogArchetypes(w *World, level zerolog.Level) {
	l.loadArchetypesIntoEvent(l.WithLevel(level), w).Send()
}

// LogSchedule logs the stage plan.
func (l *Logger) LogSchedule(w *World, level zerolog.Level) {
	stages := zerolog.Arr()
	for i, stage := range w.scheduler.stages {
		groups := zerolog.Arr()
		for g, group := range stage.Groups {
			systems := zerolog.Arr()
			for _, idx := range group {
				systems = systems.Int(int(idx))
			}
			groups = groups.Dict(zerolog.Dict().
				Int("group", g).
				Array("systems", systems))
		}
		stages = stages.Dict(zerolog.Dict().
			Int("stage", i).
			Array("groups", groups))
	}
	l.WithLevel(level).Array("stages", stages).Send()
}

// LogWorld logs systems and archetypes in one event.
func (l *Logger) LogWorld(w *World, level zerolog.Level) {
	event := l.WithLevel(level)
	event = l.loadSystemsIntoEvent(event, w)
	event = l.loadArchetypesIntoEvent(event, w)
	event.Send()
}

// CreateSystemLogger creates a sub logger with the entry {"system": label}.
func (l *Logger) CreateSystemLogger(label string) zerolog.Logger {
	return l.Logger.With().
		Str("system", label).
		Logger()
}
