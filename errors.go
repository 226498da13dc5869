package foreman

import (
	"errors"
	"fmt"
)

// ErrWorldPoisoned is returned by every update following a failed one.
var ErrWorldPoisoned = errors.New("world poisoned by a failed update")

type LockedStorageError struct{}

func (e LockedStorageError) Error() string {
	return fmt.Sprintf("storage is currently locked")
}

type EntityNotFoundError struct {
	ID EntityID
}

func (e EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %d does not exist", e.ID)
}

type ComponentNotFoundError struct {
	Entity    EntityID
	Component ComponentTypeIndex
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component does not exist on entity %d: %v", e.Entity, e.Component)
}

type DuplicateSingletonError struct {
	Component ComponentTypeIndex
	Existing  EntityID
}

func (e DuplicateSingletonError) Error() string {
	return fmt.Sprintf("singleton %v already held by entity %d", e.Component, e.Existing)
}

type MissingActionError struct {
	Action ActionID
	System string
}

func (e MissingActionError) Error() string {
	return fmt.Sprintf("system %q depends on action %v but no system runs as it", e.System, e.Action)
}

type CycleError struct {
	System string
	Reason string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("system %q introduces a dependency cycle: %s", e.System, e.Reason)
}

type UpdateNotPermittedError struct {
	System string
}

func (e UpdateNotPermittedError) Error() string {
	return fmt.Sprintf("system %q did not declare CanUpdate", e.System)
}

type UndeclaredAccessError struct {
	System    string
	Component ComponentTypeIndex
}

func (e UndeclaredAccessError) Error() string {
	return fmt.Sprintf("system %q did not declare access to %v", e.System, e.Component)
}

type GlobalNotFoundError struct {
	Global GlobalIndex
}

func (e GlobalNotFoundError) Error() string {
	return fmt.Sprintf("global %v does not exist", e.Global)
}

type UndeclaredGlobalAccessError struct {
	System string
	Global GlobalIndex
	Mode   AccessMode
}

func (e UndeclaredGlobalAccessError) Error() string {
	return fmt.Sprintf("system %q did not declare %v access to global %v", e.System, e.Mode, e.Global)
}

type CacheCapacityError struct {
	Capacity int
}

func (e CacheCapacityError) Error() string {
	return fmt.Sprintf("cache at maximum capacity (%d)", e.Capacity)
}

// SystemError reports a system that returned an error or panicked during an update.
type SystemError struct {
	System string
	Index  SystemIndex
	Err    error
	Panic  any
	Stack  []byte
}

func (e *SystemError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("system %q (%d) panicked: %v", e.System, e.Index, e.Panic)
	}
	return fmt.Sprintf("system %q (%d) failed: %v", e.System, e.Index, e.Err)
}

func (e *SystemError) Unwrap() error {
	return e.Err
}
