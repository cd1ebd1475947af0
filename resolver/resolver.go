// Package resolver defines the batching resolver contracts and the registry
// that binds them to (node, field) and (node, link) keys.
//
// General contract
//   - A resolver receives the ordered identifiers of every entity at the
//     current execution level that requests its member, in one invocation.
//   - It must return exactly one element per identifier, in the same order.
//     Violating arity or order is a programming error: the engine aborts the
//     execution with a ContractError, since results can no longer be trusted.
//   - Each output element is independent. An element may be an immediate
//     value, a *promise.Promise settled later, or an Errored marker that
//     fails only that entity's slot.
//   - For links, a settled element carries target identifiers: one
//     graph.Ident for a to-one link, a []graph.Ident for a to-many link, in
//     the order the targets should appear for that source.
//   - Returning a non-nil error fails the whole batch: every participating
//     slot receives an error marker, but unrelated members and ancestors are
//     unaffected.
//   - Implementations must respect ctx and must not retain the identifier
//     slice past the call.
package resolver

import (
	"context"
	"fmt"

	"github.com/relink-dev/relink/graph"
)

// Errored marks a single batch element as failed without failing its
// siblings.
type Errored struct {
	Err error
}

// FieldFunc resolves one field for a batch of entities.
type FieldFunc func(ctx context.Context, idents []graph.Ident) ([]any, error)

// LinkFunc resolves one link for a batch of entities, yielding target
// identifiers per source.
type LinkFunc func(ctx context.Context, idents []graph.Ident) ([]any, error)

type key struct {
	node   string
	member string
}

// Registry binds resolvers to schema members. Registration happens at
// setup time; the registry is read-only during execution.
type Registry struct {
	fields map[key]FieldFunc
	links  map[key]LinkFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		fields: make(map[key]FieldFunc),
		links:  make(map[key]LinkFunc),
	}
}

// RegisterField binds fn to the (node, field) batch key. The root node is
// addressed by the empty node name.
func (r *Registry) RegisterField(node, field string, fn FieldFunc) error {
	k := key{node, field}
	if _, dup := r.fields[k]; dup {
		return fmt.Errorf("resolver: field %s already registered", k)
	}
	r.fields[k] = fn
	return nil
}

// RegisterLink binds fn to the (node, link) batch key.
func (r *Registry) RegisterLink(node, link string, fn LinkFunc) error {
	k := key{node, link}
	if _, dup := r.links[k]; dup {
		return fmt.Errorf("resolver: link %s already registered", k)
	}
	r.links[k] = fn
	return nil
}

// Field returns the resolver bound to (node, field).
func (r *Registry) Field(node, field string) (FieldFunc, bool) {
	fn, ok := r.fields[key{node, field}]
	return fn, ok
}

// Link returns the resolver bound to (node, link).
func (r *Registry) Link(node, link string) (LinkFunc, bool) {
	fn, ok := r.links[key{node, link}]
	return fn, ok
}

func (k key) String() string {
	node := k.node
	if node == "" {
		node = "root"
	}
	return node + "." + k.member
}

// ContractError reports a batching-contract violation: wrong result arity
// or a link element of the wrong shape.
type ContractError struct {
	Node   string
	Member string
	Reason string
}

func (e *ContractError) Error() string {
	node := e.Node
	if node == "" {
		node = "root"
	}
	return fmt.Sprintf("resolver: %s.%s: %s", node, e.Member, e.Reason)
}
