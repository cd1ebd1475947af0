package engine

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/relink-dev/relink/graph"
	"github.com/relink-dev/relink/query"
	"github.com/relink-dev/relink/resolver"
)

func TestExecute_FieldBatchedAcrossSiblings(t *testing.T) {
	g := testGraph(t)
	log := &callLog{}
	reg := resolver.NewRegistry()
	mustRegisterLink(t, reg, "", "users", log.linkFromMap("root.users", map[graph.Ident]any{
		"r": []graph.Ident{"u1", "u2", "u3"},
	}))
	mustRegisterField(t, reg, "User", "name", log.fieldFromMap("User.name", map[graph.Ident]any{
		"u1": "Ada", "u2": "Grace", "u3": "Linus",
	}))

	q, err := query.Build(g, &query.Raw{
		Links: []query.RawLink{{Name: "users", Node: &query.Raw{Fields: []string{"name"}}}},
	})
	if err != nil {
		t.Fatalf("query.Build: %v", err)
	}

	res, err := New(g, reg).Execute(context.Background(), q, []graph.Ident{"r"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []map[string]any{{
		"users": listVal{Items: []map[string]any{
			{"name": "Ada"}, {"name": "Grace"}, {"name": "Linus"},
		}},
	}}
	if diff := cmp.Diff(want, flattenAll(res.Objects)); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	if got := log.Count("User.name"); got != 1 {
		t.Fatalf("User.name invoked %d times, want exactly 1", got)
	}
	wantCalls := []call{
		{Key: "root.users", Idents: []graph.Ident{"r"}},
		{Key: "User.name", Idents: []graph.Ident{"u1", "u2", "u3"}},
	}
	if diff := cmp.Diff(wantCalls, log.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_FieldBatchedAcrossBranches(t *testing.T) {
	g := testGraph(t)
	log := &callLog{}
	reg := resolver.NewRegistry()
	mustRegisterLink(t, reg, "", "users", log.linkFromMap("root.users", map[graph.Ident]any{
		"r": []graph.Ident{"u1", "u2"},
	}))
	mustRegisterLink(t, reg, "", "admin", log.linkFromMap("root.admin", map[graph.Ident]any{
		"r": "u1",
	}))
	mustRegisterField(t, reg, "User", "name", log.fieldFromMap("User.name", map[graph.Ident]any{
		"u1": "Ada", "u2": "Grace",
	}))

	q, err := query.Build(g, &query.Raw{
		Links: []query.RawLink{
			{Name: "users", Node: &query.Raw{Fields: []string{"name"}}},
			{Name: "admin", Node: &query.Raw{Fields: []string{"name"}}},
		},
	})
	if err != nil {
		t.Fatalf("query.Build: %v", err)
	}

	res, err := New(g, reg).Execute(context.Background(), q, []graph.Ident{"r"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Both branches request User.name at the same level: one call, the
	// shared identifier appears once.
	if got := log.Count("User.name"); got != 1 {
		t.Fatalf("User.name invoked %d times, want exactly 1", got)
	}
	var nameCall call
	for _, c := range log.Calls() {
		if c.Key == "User.name" {
			nameCall = c
		}
	}
	if diff := cmp.Diff([]graph.Ident{"u1", "u2"}, nameCall.Idents); diff != "" {
		t.Fatalf("User.name idents mismatch (-want +got):\n%s", diff)
	}

	want := []map[string]any{{
		"users": listVal{Items: []map[string]any{{"name": "Ada"}, {"name": "Grace"}}},
		"admin": map[string]any{"name": "Ada"},
	}}
	if diff := cmp.Diff(want, flattenAll(res.Objects)); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

// Shared targets are deduplicated within a batch: a friend shared by two
// users is resolved once, and the value fans out to both subtrees.
func TestExecute_SharedTargetsDeduplicatedPerBatch(t *testing.T) {
	g := testGraph(t)
	log := &callLog{}
	reg := resolver.NewRegistry()
	mustRegisterLink(t, reg, "User", "friends", log.linkFromMap("User.friends", map[graph.Ident]any{
		"u1": []graph.Ident{"f1"},
		"u2": []graph.Ident{"f1", "f2"},
	}))
	mustRegisterField(t, reg, "User", "name", log.fieldFromMap("User.name", map[graph.Ident]any{
		"u1": "Ada", "u2": "Grace", "f1": "Shared", "f2": "Other",
	}))

	q, err := query.BuildFor(g, "User", &query.Raw{
		Fields: []string{"name"},
		Links:  []query.RawLink{{Name: "friends", Node: &query.Raw{Fields: []string{"name"}}}},
	})
	if err != nil {
		t.Fatalf("query.BuildFor: %v", err)
	}

	res, err := New(g, reg).Execute(context.Background(), q, []graph.Ident{"u1", "u2"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantCalls := []call{
		{Key: "User.name", Idents: []graph.Ident{"u1", "u2"}},
		{Key: "User.friends", Idents: []graph.Ident{"u1", "u2"}},
		{Key: "User.name", Idents: []graph.Ident{"f1", "f2"}},
	}
	if diff := cmp.Diff(wantCalls, log.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}

	want := []map[string]any{
		{
			"name":    "Ada",
			"friends": listVal{Items: []map[string]any{{"name": "Shared"}}},
		},
		{
			"name":    "Grace",
			"friends": listVal{Items: []map[string]any{{"name": "Shared"}, {"name": "Other"}}},
		},
	}
	if diff := cmp.Diff(want, flattenAll(res.Objects)); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_DeduplicationDisabled(t *testing.T) {
	g := testGraph(t)
	log := &callLog{}
	reg := resolver.NewRegistry()
	mustRegisterLink(t, reg, "User", "friends", log.linkFromMap("User.friends", map[graph.Ident]any{
		"u1": []graph.Ident{"f1"},
		"u2": []graph.Ident{"f1"},
	}))
	mustRegisterField(t, reg, "User", "name", log.fieldFromMap("User.name", map[graph.Ident]any{
		"u1": "Ada", "u2": "Grace", "f1": "Shared",
	}))

	q, err := query.BuildFor(g, "User", &query.Raw{
		Links: []query.RawLink{{Name: "friends", Node: &query.Raw{Fields: []string{"name"}}}},
	})
	if err != nil {
		t.Fatalf("query.BuildFor: %v", err)
	}

	_, err = New(g, reg, WithDeduplication(false)).Execute(context.Background(), q, []graph.Ident{"u1", "u2"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var nameIdents []graph.Ident
	for _, c := range log.Calls() {
		if c.Key == "User.name" {
			nameIdents = c.Idents
		}
	}
	// Still one call per batch key, but the shared target repeats.
	if got := log.Count("User.name"); got != 1 {
		t.Fatalf("User.name invoked %d times, want exactly 1", got)
	}
	if diff := cmp.Diff([]graph.Ident{"f1", "f1"}, nameIdents); diff != "" {
		t.Fatalf("User.name idents mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_MultiRootObjectsInInputOrder(t *testing.T) {
	g := testGraph(t)
	log := &callLog{}
	reg := resolver.NewRegistry()
	mustRegisterField(t, reg, "User", "name", log.fieldFromMap("User.name", map[graph.Ident]any{
		"u1": "Ada", "u2": "Grace", "u3": "Linus",
	}))

	q, err := query.BuildFor(g, "User", &query.Raw{Fields: []string{"name"}})
	if err != nil {
		t.Fatalf("query.BuildFor: %v", err)
	}

	res, err := New(g, reg).Execute(context.Background(), q, []graph.Ident{"u3", "u1", "u2"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []map[string]any{{"name": "Linus"}, {"name": "Ada"}, {"name": "Grace"}}
	if diff := cmp.Diff(want, flattenAll(res.Objects)); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}
