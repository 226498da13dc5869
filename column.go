package foreman

import "fmt"

// column is a growable, row-aligned array of component values for one archetype.
type column interface {
	len() int
	push(value any)
	pushFrom(src column, row int)
	set(row int, value any)
	swapRemove(row int)
}

type typedColumn[T any] struct {
	data []T
}

func newTypedColumn[T any](capacity int) *typedColumn[T] {
	return &typedColumn[T]{data: make([]T, 0, capacity)}
}

func (c *typedColumn[T]) len() int {
	return len(c.data)
}

func (c *typedColumn[T]) push(value any) {
	c.data = append(c.data, c.cast(value))
}

func (c *typedColumn[T]) pushFrom(src column, row int) {
	other, ok := src.(*typedColumn[T])
	if !ok {
		panic(fmt.Sprintf("internal error: column type mismatch %T != %T", src, c))
	}
	c.data = append(c.data, other.data[row])
}

func (c *typedColumn[T]) set(row int, value any) {
	c.data[row] = c.cast(value)
}

// swapRemove moves the last row into row and shrinks the column by one.
func (c *typedColumn[T]) swapRemove(row int) {
	last := len(c.data) - 1
	c.data[row] = c.data[last]
	var zero T
	c.data[last] = zero
	c.data = c.data[:last]
}

func (c *typedColumn[T]) get(row int) *T {
	return &c.data[row]
}

func (c *typedColumn[T]) cast(value any) T {
	switch v := value.(type) {
	case T:
		return v
	case *T:
		return *v
	case nil:
		var zero T
		return zero
	}
	panic(fmt.Sprintf("internal error: value of type %T stored in column of %T", value, c))
}
