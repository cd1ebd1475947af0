package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/relink-dev/relink/graph"
	"github.com/relink-dev/relink/resolver"
	"github.com/relink-dev/relink/result"
)

// call records one resolver invocation: its batch key and the identifiers
// it was dispatched with.
type call struct {
	Key    string
	Idents []graph.Ident
}

// callLog collects resolver invocations across an execution. Resolvers may
// settle from worker goroutines, so it is mutex-guarded.
type callLog struct {
	mu    sync.Mutex
	calls []call
}

func (l *callLog) record(key string, idents []graph.Ident) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call{Key: key, Idents: append([]graph.Ident(nil), idents...)})
}

func (l *callLog) Calls() []call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]call(nil), l.calls...)
}

func (l *callLog) Count(key string) int {
	n := 0
	for _, c := range l.Calls() {
		if c.Key == key {
			n++
		}
	}
	return n
}

// fieldFromMap returns a logging field resolver that answers each
// identifier from values.
func (l *callLog) fieldFromMap(key string, values map[graph.Ident]any) resolver.FieldFunc {
	return func(ctx context.Context, idents []graph.Ident) ([]any, error) {
		l.record(key, idents)
		out := make([]any, len(idents))
		for i, id := range idents {
			out[i] = values[id]
		}
		return out, nil
	}
}

// linkFromMap returns a logging link resolver answering from values; each
// element must already have the link's target shape.
func (l *callLog) linkFromMap(key string, values map[graph.Ident]any) resolver.LinkFunc {
	return func(ctx context.Context, idents []graph.Ident) ([]any, error) {
		l.record(key, idents)
		out := make([]any, len(idents))
		for i, id := range idents {
			out[i] = values[id]
		}
		return out, nil
	}
}

// testGraph declares the fixture used across engine tests:
//
//	root ──users(to-many)──> User{id, name} ──friends(to-many)──> User
//	                              └──pet(to-one)──> Pet{name}
func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(
		graph.NewRoot(
			&graph.Link{Name: "users", Target: "User", Cardinality: graph.ToMany},
			&graph.Link{Name: "admin", Target: "User", Cardinality: graph.ToOne},
		),
		graph.NewNode("User",
			&graph.Field{Name: "id"},
			&graph.Field{Name: "name"},
			&graph.Link{Name: "friends", Target: "User", Cardinality: graph.ToMany},
			&graph.Link{Name: "pet", Target: "Pet", Cardinality: graph.ToOne},
		),
		graph.NewNode("Pet",
			&graph.Field{Name: "name"},
		),
	)
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	return g
}

func mustRegisterField(t *testing.T, reg *resolver.Registry, node, field string, fn resolver.FieldFunc) {
	t.Helper()
	if err := reg.RegisterField(node, field, fn); err != nil {
		t.Fatalf("RegisterField(%s.%s): %v", node, field, err)
	}
}

func mustRegisterLink(t *testing.T, reg *resolver.Registry, node, link string, fn resolver.LinkFunc) {
	t.Helper()
	if err := reg.RegisterLink(node, link, fn); err != nil {
		t.Fatalf("RegisterLink(%s.%s): %v", node, link, err)
	}
}

func errFor(id graph.Ident) error { return fmt.Errorf("no value for %v", id) }

// errMark is the comparable form of an in-tree error marker.
type errMark struct {
	Msg string
}

// listVal is the comparable form of a to-many link slot.
type listVal struct {
	Items []map[string]any
	Err   string
}

// flatten converts a result object into plain maps for cmp.Diff: objects
// become maps, to-many links become listVal, markers become errMark.
func flatten(o *result.Object) map[string]any {
	m := make(map[string]any, o.Len())
	for _, name := range o.Fields() {
		v, _ := o.Get(name)
		switch t := v.(type) {
		case *result.Object:
			m[name] = flatten(t)
		case *result.List:
			lv := listVal{Items: []map[string]any{}}
			for _, item := range t.Items {
				lv.Items = append(lv.Items, flatten(item))
			}
			if t.Err != nil {
				lv.Err = t.Err.Message
			}
			m[name] = lv
		case *result.Error:
			m[name] = errMark{Msg: t.Message}
		default:
			m[name] = v
		}
	}
	return m
}

func flattenAll(objs []*result.Object) []map[string]any {
	out := make([]map[string]any, len(objs))
	for i, o := range objs {
		out[i] = flatten(o)
	}
	return out
}
