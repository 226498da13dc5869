package foreman

import (
	"fmt"
	"reflect"
	"slices"
)

// ActionID names a point in the system ordering graph.
// Actions are zero-sized marker types obtained with ActionOf.
type ActionID struct {
	typ reflect.Type
}

// ActionOf returns the identifier of the marker type A.
func ActionOf[A any]() ActionID {
	return ActionID{typ: reflect.TypeFor[A]()}
}

func (a ActionID) String() string {
	if a.typ == nil {
		return "<no action>"
	}
	return a.typ.String()
}

// IsZero reports whether the identifier names no action.
func (a ActionID) IsZero() bool {
	return a.typ == nil
}

func (a ActionID) key() string {
	if a.typ.PkgPath() != "" {
		return a.typ.PkgPath() + "." + a.typ.Name()
	}
	return a.typ.String()
}

// ActionConstraint is implemented by actions that must run after other actions.
type ActionConstraint interface {
	Dependencies() []ActionID
}

// constraint returns the direct dependencies declared by the action type, if any.
func (a ActionID) constraint() []ActionID {
	constraintType := reflect.TypeFor[ActionConstraint]()
	switch {
	case a.typ.Implements(constraintType):
		return reflect.Zero(a.typ).Interface().(ActionConstraint).Dependencies()
	case reflect.PointerTo(a.typ).Implements(constraintType):
		return reflect.New(a.typ).Interface().(ActionConstraint).Dependencies()
	}
	return nil
}

// dependencyClosure resolves the transitive dependencies of the action.
func (a ActionID) dependencyClosure() ([]ActionID, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[reflect.Type]int)
	var closure []ActionID
	var visit func(action ActionID, path []ActionID) error
	visit = func(action ActionID, path []ActionID) error {
		switch state[action.typ] {
		case visiting:
			return fmt.Errorf("action constraint cycle %v", append(path, action))
		case done:
			return nil
		}
		state[action.typ] = visiting
		for _, dep := range action.constraint() {
			if err := visit(dep, append(path, action)); err != nil {
				return err
			}
			if !slices.Contains(closure, dep) {
				closure = append(closure, dep)
			}
		}
		state[action.typ] = done
		return nil
	}
	if err := visit(a, nil); err != nil {
		return nil, err
	}
	return closure, nil
}

type dependencyKind int

const (
	dependsOnAction dependencyKind = iota
	dependsOnSystem
)

// ActionDependency is a must-run-after edge of a system.
type ActionDependency struct {
	kind   dependencyKind
	action ActionID
	system SystemIndex
}

// DependsOnAction orders a system after the last system registered as A.
func DependsOnAction[A any]() ActionDependency {
	return ActionDependency{kind: dependsOnAction, action: ActionOf[A]()}
}

// DependsOn orders a system after the last system registered as action.
func DependsOn(action ActionID) ActionDependency {
	return ActionDependency{kind: dependsOnAction, action: action}
}

// DependsOnSystem orders a system after a previously registered system.
func DependsOnSystem(index SystemIndex) ActionDependency {
	return ActionDependency{kind: dependsOnSystem, system: index}
}

func (d ActionDependency) String() string {
	if d.kind == dependsOnSystem {
		return fmt.Sprintf("system %d", d.system)
	}
	return "action " + d.action.String()
}

// actionEntry tracks the systems registered under one action.
type actionEntry struct {
	id      ActionID
	last    SystemIndex
	systems int
}

type actionRegistry struct {
	entries Cache[actionEntry]
}

func newActionRegistry(capacity int) *actionRegistry {
	return &actionRegistry{entries: FactoryNewCache[actionEntry](capacity)}
}

// lastSystem returns the most recent system registered as the action.
func (r *actionRegistry) lastSystem(action ActionID) (SystemIndex, bool) {
	idx, ok := r.entries.GetIndex(action.key())
	if !ok {
		return 0, false
	}
	entry := r.entries.GetItem(idx)
	return entry.last, entry.systems > 0
}

func (r *actionRegistry) addSystem(action ActionID, system SystemIndex) error {
	if idx, ok := r.entries.GetIndex(action.key()); ok {
		entry := r.entries.GetItem(idx)
		entry.last = system
		entry.systems++
		return nil
	}
	_, err := r.entries.Register(action.key(), actionEntry{id: action, last: system, systems: 1})
	return err
}
