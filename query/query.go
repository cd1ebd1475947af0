// Package query normalizes and validates raw client selections against a
// graph, producing the immutable selection tree the engine executes.
package query

import (
	"fmt"

	"github.com/relink-dev/relink/graph"
)

// Raw is an unvalidated client selection: ordered field names plus ordered
// nested link selections.
type Raw struct {
	Fields []string
	Links  []RawLink
}

// RawLink names a link and carries the selection for its target node.
type RawLink struct {
	Name string
	Node *Raw
}

// Node is one validated selection level. Immutable after Build.
type Node struct {
	Node   *graph.Node
	Fields []string
	Links  []*Link
}

// Link pairs a schema link with the nested selection for its target.
type Link struct {
	Link *graph.Link
	Node *Node
}

// Build validates raw against the graph's root node.
func Build(g *graph.Graph, raw *Raw) (*Node, error) {
	return BuildFor(g, "", raw)
}

// BuildFor validates raw against the named node. It walks the whole
// selection and accumulates every violation before failing, so a client
// sees all problems in one pass. Repeated field requests are deduplicated
// and repeated link requests are merged.
func BuildFor(g *graph.Graph, nodeName string, raw *Raw) (*Node, error) {
	anchor, err := g.Node(nodeName)
	if err != nil {
		return nil, err
	}
	var errs ValidationError
	n := build(g, anchor, normalize(raw), &errs)
	if len(errs) > 0 {
		return nil, errs
	}
	return n, nil
}

func build(g *graph.Graph, node *graph.Node, raw *Raw, errs *ValidationError) *Node {
	qn := &Node{Node: node}

	for _, name := range raw.Fields {
		if _, err := node.Field(name); err != nil {
			if _, isLink := lookupLink(node, name); isLink {
				errs.report(node, name, "requested as a field but declared as a link")
			} else {
				errs.report(node, name, "field not defined")
			}
			continue
		}
		qn.Fields = append(qn.Fields, name)
	}

	for _, rl := range raw.Links {
		link, err := node.Link(rl.Name)
		if err != nil {
			if _, isField := lookupField(node, rl.Name); isField {
				errs.report(node, rl.Name, "requested as a link but declared as a field")
			} else {
				errs.report(node, rl.Name, "link not defined")
			}
			continue
		}
		target, err := g.Node(link.Target)
		if err != nil {
			// New rejects dangling targets; this is unreachable on a
			// validated graph.
			errs.report(node, rl.Name, "link target not declared")
			continue
		}
		sub := rl.Node
		if sub == nil {
			sub = &Raw{}
		}
		qn.Links = append(qn.Links, &Link{
			Link: link,
			Node: build(g, target, sub, errs),
		})
	}

	return qn
}

// normalize deduplicates repeated fields and merges repeated links so the
// selection is idempotent before validation.
func normalize(raw *Raw) *Raw {
	if raw == nil {
		return &Raw{}
	}
	out := &Raw{}

	seenFields := make(map[string]bool, len(raw.Fields))
	for _, f := range raw.Fields {
		if seenFields[f] {
			continue
		}
		seenFields[f] = true
		out.Fields = append(out.Fields, f)
	}

	linkIndex := make(map[string]int, len(raw.Links))
	for _, l := range raw.Links {
		if i, ok := linkIndex[l.Name]; ok {
			out.Links[i].Node = mergeRaw(out.Links[i].Node, l.Node)
			continue
		}
		linkIndex[l.Name] = len(out.Links)
		out.Links = append(out.Links, RawLink{Name: l.Name, Node: normalize(l.Node)})
	}
	return out
}

func mergeRaw(a, b *Raw) *Raw {
	if b == nil {
		return a
	}
	merged := &Raw{
		Fields: append(append([]string(nil), a.Fields...), b.Fields...),
	}
	merged.Links = append(append([]RawLink(nil), a.Links...), b.Links...)
	return normalize(merged)
}

func lookupLink(n *graph.Node, name string) (*graph.Link, bool) {
	l, err := n.Link(name)
	return l, err == nil
}

func lookupField(n *graph.Node, name string) (*graph.Field, bool) {
	f, err := n.Field(name)
	return f, err == nil
}

// Violation is a single path-qualified validation problem.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError collects every violation found while building a query.
type ValidationError []*Violation

func (e ValidationError) Error() string {
	msg := "query: violations found:\n"
	for _, v := range e {
		msg += fmt.Sprintf("- %s: %s\n", v.Path, v.Message)
	}
	return msg
}

func (e *ValidationError) report(node *graph.Node, member, message string) {
	name := node.Name
	if name == "" {
		name = "root"
	}
	*e = append(*e, &Violation{Path: name + "." + member, Message: message})
}
