package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/relink-dev/relink/graph"
	"github.com/relink-dev/relink/internal/eventbus"
	"github.com/relink-dev/relink/internal/events"
	"github.com/relink-dev/relink/internal/execid"
	"github.com/relink-dev/relink/promise"
	"github.com/relink-dev/relink/query"
	"github.com/relink-dev/relink/resolver"
	"github.com/relink-dev/relink/result"
)

// ExecutionError is returned when the engine cannot proceed: a resolver
// contract violation, a missing resolver, or a cancelled context. Isolated
// field and link failures never surface here; they become markers in the
// result tree.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string { return "engine: execution aborted: " + e.Err.Error() }
func (e *ExecutionError) Unwrap() error { return e.Err }

// Option configures an Engine.
type Option func(*Engine)

// WithDeduplication controls whether identifiers repeated within one batch
// are collapsed to a single resolver input. Enabled by default; a shared
// target requested by several parents is then resolved once per level and
// fanned out to every requesting slot.
func WithDeduplication(enabled bool) Option {
	return func(e *Engine) { e.dedup = enabled }
}

// Engine executes queries against a graph using the resolvers in reg.
// It is stateless across executions and safe for concurrent use.
type Engine struct {
	graph *graph.Graph
	reg   *resolver.Registry
	dedup bool
}

// New creates an engine for the given graph and registry.
func New(g *graph.Graph, reg *resolver.Registry, opts ...Option) *Engine {
	e := &Engine{graph: g, reg: reg, dedup: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// entity is one live node instance at the current level: its identifier,
// the selection applying to it, and the result object receiving its slots.
type entity struct {
	id  graph.Ident
	qn  *query.Node
	obj *result.Object
}

// newEntity creates the result object for one node instance with its slot
// order fixed up front, so promise settlement order during drain cannot
// reorder fields.
func newEntity(id graph.Ident, qn *query.Node, path result.Path) *entity {
	obj := result.NewObject(path)
	obj.Declare(qn.Fields...)
	for _, l := range qn.Links {
		obj.Declare(l.Link.Name)
	}
	return &entity{id: id, qn: qn, obj: obj}
}

type executionState struct {
	engine *Engine
	ctx    context.Context
	sched  *promise.Scheduler
	errors []*result.Error
	next   []*entity
	// set when a contract violation is discovered during drain
	fatal error
}

var batchSeq atomic.Int64

// Execute runs q against the root identifiers and assembles the result
// tree. The tree's shape always mirrors q; resolver failures appear as
// error markers in their slots. Roots map 1:1, in order, to
// Result.Objects.
func (e *Engine) Execute(ctx context.Context, q *query.Node, roots []graph.Ident) (*result.Result, error) {
	if _, ok := execid.FromContext(ctx); !ok {
		ctx, _ = execid.NewContext(ctx)
	}
	eventbus.Publish(ctx, events.ExecutionStart{Roots: len(roots)})

	st := &executionState{
		engine: e,
		ctx:    ctx,
		sched:  promise.NewScheduler(),
	}

	objects := make([]*result.Object, len(roots))
	level := make([]*entity, len(roots))
	for i, id := range roots {
		var path result.Path
		if len(roots) > 1 {
			path = result.Path{i}
		}
		level[i] = newEntity(id, q, path)
		objects[i] = level[i].obj
	}

	for depth := 0; len(level) > 0; depth++ {
		eventbus.Publish(ctx, events.LevelStart{Depth: depth, Entities: len(level)})
		next, err := st.runLevel(level)
		if err != nil {
			eventbus.Publish(ctx, events.ExecutionFinish{Err: err})
			return nil, &ExecutionError{Err: err}
		}
		eventbus.Publish(ctx, events.LevelFinish{Depth: depth})
		level = next
	}

	eventbus.Publish(ctx, events.ExecutionFinish{Errors: len(st.errors)})
	return &result.Result{Objects: objects, Errors: st.errors}, nil
}

// runLevel dispatches every batch key of one level exactly once, drains
// pending results, and returns the entities produced by link fan-out.
func (st *executionState) runLevel(level []*entity) ([]*entity, error) {
	st.next = nil
	fields, links := formBatches(level, st.engine.dedup)

	for _, b := range fields {
		if err := st.dispatchField(b); err != nil {
			return nil, err
		}
	}
	for _, b := range links {
		if err := st.dispatchLink(b); err != nil {
			return nil, err
		}
	}

	if err := st.sched.Drain(st.ctx); err != nil {
		return nil, err
	}
	if st.fatal != nil {
		return nil, st.fatal
	}
	return st.next, nil
}

func (st *executionState) dispatchField(b *batch) error {
	fn, ok := st.engine.reg.Field(b.key.node, b.key.member)
	if !ok {
		return fmt.Errorf("no field resolver registered for %s", b.key)
	}

	out, err := st.dispatch(b, fn)
	if err != nil {
		return err
	}
	if out == nil {
		// Whole-batch failure already marked.
		return nil
	}
	for i, v := range out {
		st.deliverField(b, i, v)
	}
	return nil
}

func (st *executionState) dispatchLink(b *batch) error {
	fn, ok := st.engine.reg.Link(b.key.node, b.key.member)
	if !ok {
		return fmt.Errorf("no link resolver registered for %s", b.key)
	}

	out, err := st.dispatch(b, resolver.FieldFunc(fn))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	for i, v := range out {
		st.deliverLink(b, i, v)
	}
	return nil
}

// dispatch invokes one batch resolver, publishes its events, and applies
// the failure policy: a whole-batch error marks every slot and returns
// (nil, nil); an arity violation is fatal.
func (st *executionState) dispatch(b *batch, fn resolver.FieldFunc) ([]any, error) {
	id := batchSeq.Add(1)
	eventbus.Publish(st.ctx, events.BatchStart{
		BatchID: id, Node: b.key.node, Member: b.key.member, Kind: b.key.kind, Size: len(b.idents),
	})
	idents := make([]graph.Ident, len(b.idents))
	copy(idents, b.idents)
	out, err := fn(st.ctx, idents)
	eventbus.Publish(st.ctx, events.BatchFinish{
		BatchID: id, Node: b.key.node, Member: b.key.member, Kind: b.key.kind, Size: len(b.idents), Err: err,
	})

	if err != nil {
		for i := range b.idents {
			st.markError(b, i, err)
		}
		return nil, nil
	}
	if len(out) != len(b.idents) {
		return nil, &resolver.ContractError{
			Node:   b.key.node,
			Member: b.key.member,
			Reason: fmt.Sprintf("returned %d results for %d identifiers", len(out), len(b.idents)),
		}
	}
	return out, nil
}

func (st *executionState) deliverField(b *batch, i int, v any) {
	if p, ok := v.(*promise.Promise); ok {
		st.sched.Adopt(p)
		p.Then(func(val any, err error) { st.completeField(b, i, val, err) })
		return
	}
	st.completeField(b, i, v, nil)
}

func (st *executionState) completeField(b *batch, i int, v any, err error) {
	if e, ok := v.(resolver.Errored); ok {
		err = e.Err
	}
	if err != nil {
		st.markError(b, i, err)
		return
	}
	for _, sub := range b.subs[i] {
		sub.obj.Set(b.key.member, v)
	}
}

func (st *executionState) deliverLink(b *batch, i int, v any) {
	if p, ok := v.(*promise.Promise); ok {
		st.sched.Adopt(p)
		p.Then(func(val any, err error) { st.completeLink(b, i, val, err) })
		return
	}
	st.completeLink(b, i, v, nil)
}

func (st *executionState) completeLink(b *batch, i int, v any, err error) {
	if e, ok := v.(resolver.Errored); ok {
		err = e.Err
	}
	if err != nil {
		st.markError(b, i, err)
		return
	}

	switch b.link.Cardinality {
	case graph.ToMany:
		ids, ok := v.([]graph.Ident)
		if !ok {
			st.fatal = &resolver.ContractError{
				Node:   b.key.node,
				Member: b.key.member,
				Reason: fmt.Sprintf("to-many element %d is %T, want []graph.Ident", i, v),
			}
			return
		}
		for _, sub := range b.subs[i] {
			list := &result.List{Items: make([]*result.Object, len(ids))}
			for j, id := range ids {
				ent := newEntity(id, sub.qn, sub.path.Child(b.key.member).Child(j))
				list.Items[j] = ent.obj
				st.next = append(st.next, ent)
			}
			sub.obj.Set(b.key.member, list)
		}

	case graph.ToOne:
		if v == nil {
			for _, sub := range b.subs[i] {
				sub.obj.Set(b.key.member, nil)
			}
			return
		}
		for _, sub := range b.subs[i] {
			ent := newEntity(v, sub.qn, sub.path.Child(b.key.member))
			sub.obj.Set(b.key.member, ent.obj)
			st.next = append(st.next, ent)
		}
	}
}

// markError writes an isolated error marker into every slot subscribed to
// element i and records it in the aggregate error list. Errored to-many
// links receive an empty list with the marker attached.
func (st *executionState) markError(b *batch, i int, err error) {
	for _, sub := range b.subs[i] {
		marker := &result.Error{Path: sub.path.Child(b.key.member), Message: err.Error()}
		st.errors = append(st.errors, marker)
		if b.link != nil && b.link.Cardinality == graph.ToMany {
			sub.obj.Set(b.key.member, &result.List{Err: marker})
			continue
		}
		sub.obj.Set(b.key.member, marker)
	}
}
