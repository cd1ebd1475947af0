// Package result defines the tree produced by an execution. Its shape
// mirrors the query it was built from: one Object per entity, one slot per
// requested field or link. Any slot may hold an error marker instead of a
// value; failures never change the tree's shape.
package result

import (
	"fmt"
)

// Path locates a slot in the tree: node member names interleaved with
// list indexes for to-many links.
type Path []any

func (p Path) String() string {
	out := ""
	for i, elem := range p {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				out += "."
			}
			out += v
		case int:
			out += fmt.Sprintf("[%d]", v)
		}
	}
	return out
}

// Child returns a copy of p extended with elem.
func (p Path) Child(elem any) Path {
	next := make(Path, len(p)+1)
	copy(next, p)
	next[len(p)] = elem
	return next
}

// Error is an isolated failure marker occupying a field or link slot.
type Error struct {
	Path    Path   `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// List is the value of a to-many link slot. When resolution failed, Err is
// set and Items is empty: an errored link is distinguishable from a link
// with no children.
type List struct {
	Items []*Object
	Err   *Error
}

// Object holds one entity's slots in request order. Slot values are scalar
// values, *Object (to-one link), *List (to-many link), or *Error. Objects
// are assembled by the engine and read-only once the execution returns.
type Object struct {
	path  Path
	names []string
	index map[string]int
	slots map[string]any
}

// NewObject creates an empty object rooted at path.
func NewObject(path Path) *Object {
	return &Object{path: path, index: make(map[string]int), slots: make(map[string]any)}
}

// Declare reserves slot positions up front. Values may then arrive in any
// order while Fields keeps the declared order; declaring a known name is a
// no-op.
func (o *Object) Declare(names ...string) {
	for _, name := range names {
		if _, ok := o.index[name]; ok {
			continue
		}
		o.index[name] = len(o.names)
		o.names = append(o.names, name)
	}
}

// Set writes a slot. Undeclared names take the next position in
// first-write order.
func (o *Object) Set(name string, v any) {
	if _, ok := o.index[name]; !ok {
		o.index[name] = len(o.names)
		o.names = append(o.names, name)
	}
	o.slots[name] = v
}

// Get returns a slot value and whether the slot exists.
func (o *Object) Get(name string) (any, bool) {
	v, ok := o.slots[name]
	return v, ok
}

// Fields returns the slot names: declared names first, in declaration
// order, then any undeclared names in first-write order.
func (o *Object) Fields() []string { return o.names }

// Path returns the object's location in the result tree.
func (o *Object) Path() Path { return o.path }

// Len returns the number of populated slots.
func (o *Object) Len() int { return len(o.slots) }

// Result is the outcome of one execution: one object per root identifier,
// in input order, plus every error marker recorded anywhere in the tree.
type Result struct {
	Objects []*Object
	Errors  []*Error
}
