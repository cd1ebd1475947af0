package graph

import (
	"fmt"
)

// Ident is an opaque entity identifier supplied by resolvers and fanned
// back into them level by level. Identifiers must be comparable: batch
// dispatch deduplicates them with a map.
type Ident = any

// Cardinality describes how many target entities a link produces per source.
type Cardinality int

const (
	ToOne Cardinality = iota
	ToMany
)

func (c Cardinality) String() string {
	switch c {
	case ToOne:
		return "to-one"
	case ToMany:
		return "to-many"
	default:
		return fmt.Sprintf("Cardinality(%d)", int(c))
	}
}

// Field is a scalar-producing member of a node. It carries no data itself;
// values come from the resolver registered under the (node, field) key.
type Field struct {
	Name        string
	Description string
}

// Link is a relation from one node to another.
type Link struct {
	Name        string
	Target      string
	Cardinality Cardinality
	Description string
}

// Node is a named entity type with ordered fields and links. The root node
// is the node with the empty name; its members anchor query execution.
type Node struct {
	Name        string
	Description string

	fields     []*Field
	links      []*Link
	fieldIndex map[string]int
	linkIndex  map[string]int
}

// NewNode builds a node from fields and links, preserving member order.
// Name collisions are detected later by New, which sees the whole graph.
func NewNode(name string, members ...any) *Node {
	n := &Node{
		Name:       name,
		fieldIndex: make(map[string]int),
		linkIndex:  make(map[string]int),
	}
	for _, m := range members {
		switch v := m.(type) {
		case *Field:
			if _, dup := n.fieldIndex[v.Name]; !dup {
				n.fieldIndex[v.Name] = len(n.fields)
			}
			n.fields = append(n.fields, v)
		case *Link:
			if _, dup := n.linkIndex[v.Name]; !dup {
				n.linkIndex[v.Name] = len(n.links)
			}
			n.links = append(n.links, v)
		default:
			panic(fmt.Sprintf("graph: unexpected node member %T", m))
		}
	}
	return n
}

// NewRoot builds the unnamed root node.
func NewRoot(members ...any) *Node { return NewNode("", members...) }

// Field returns the named field or a *SchemaError when it is not defined.
func (n *Node) Field(name string) (*Field, error) {
	if i, ok := n.fieldIndex[name]; ok {
		return n.fields[i], nil
	}
	return nil, &SchemaError{Problems: []string{
		fmt.Sprintf("%s.%s: field not defined", n.displayName(), name),
	}}
}

// Link returns the named link or a *SchemaError when it is not defined.
func (n *Node) Link(name string) (*Link, error) {
	if i, ok := n.linkIndex[name]; ok {
		return n.links[i], nil
	}
	return nil, &SchemaError{Problems: []string{
		fmt.Sprintf("%s.%s: link not defined", n.displayName(), name),
	}}
}

// Fields returns the node's fields in declaration order.
func (n *Node) Fields() []*Field { return n.fields }

// Links returns the node's links in declaration order.
func (n *Node) Links() []*Link { return n.links }

func (n *Node) displayName() string {
	if n.Name == "" {
		return "root"
	}
	return n.Name
}

// Graph is an immutable, validated set of nodes. Construct with New.
type Graph struct {
	nodes     []*Node
	nodeIndex map[string]int
}

// New validates the node set and returns an immutable Graph. Validation
// accumulates every structural problem before failing: duplicate node
// names, duplicate sibling members within a node, links whose target node
// is not declared, and a missing root node.
func New(nodes ...*Node) (*Graph, error) {
	g := &Graph{nodeIndex: make(map[string]int, len(nodes))}
	var problems []string

	for _, n := range nodes {
		if _, dup := g.nodeIndex[n.Name]; dup {
			problems = append(problems, fmt.Sprintf("%s: node declared twice", n.displayName()))
			continue
		}
		g.nodeIndex[n.Name] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}

	if _, ok := g.nodeIndex[""]; !ok {
		problems = append(problems, "root: node not declared")
	}

	for _, n := range g.nodes {
		problems = append(problems, validateMembers(n)...)
		for _, l := range n.links {
			if _, ok := g.nodeIndex[l.Target]; !ok || l.Target == "" {
				problems = append(problems, fmt.Sprintf(
					"%s.%s: link target %q not declared", n.displayName(), l.Name, l.Target))
			}
		}
	}

	if len(problems) > 0 {
		return nil, &SchemaError{Problems: problems}
	}
	return g, nil
}

func validateMembers(n *Node) []string {
	var problems []string
	seen := make(map[string]bool, len(n.fields)+len(n.links))
	for _, f := range n.fields {
		if seen[f.Name] {
			problems = append(problems, fmt.Sprintf(
				"%s.%s: member declared twice", n.displayName(), f.Name))
		}
		seen[f.Name] = true
	}
	for _, l := range n.links {
		if seen[l.Name] {
			problems = append(problems, fmt.Sprintf(
				"%s.%s: member declared twice", n.displayName(), l.Name))
		}
		seen[l.Name] = true
	}
	return problems
}

// Node returns the named node or a *SchemaError when it is not declared.
func (g *Graph) Node(name string) (*Node, error) {
	if i, ok := g.nodeIndex[name]; ok {
		return g.nodes[i], nil
	}
	display := name
	if display == "" {
		display = "root"
	}
	return nil, &SchemaError{Problems: []string{
		fmt.Sprintf("%s: node not declared", display),
	}}
}

// Root returns the unnamed root node.
func (g *Graph) Root() *Node {
	n, err := g.Node("")
	if err != nil {
		// New guarantees the root exists.
		panic("graph: missing root node")
	}
	return n
}

// Nodes returns all nodes in declaration order, root included.
func (g *Graph) Nodes() []*Node { return g.nodes }

// SchemaError reports structural problems found during graph construction
// or a failed lookup. Construction collects every problem in one error.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	if len(e.Problems) == 1 {
		return "graph: " + e.Problems[0]
	}
	msg := "graph: structural problems:"
	for _, p := range e.Problems {
		msg += "\n- " + p
	}
	return msg
}
