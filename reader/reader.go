// Package reader lowers a GraphQL operation document into a raw selection.
// It defines no grammar of its own: parsing is delegated to gqlparser, and
// only the subset the engine understands is accepted. A field carrying a
// selection set becomes a raw link; a leaf field becomes a raw field.
// Fragment spreads and inline fragments without type conditions are
// flattened into their enclosing selection.
package reader

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/relink-dev/relink/query"
)

// Parse converts a GraphQL query document into a raw selection. Exactly one
// query operation is required; aliases, arguments, variables, and
// directives are rejected.
func Parse(src string) (*query.Raw, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: src})
	if err != nil {
		return nil, err
	}
	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("reader: expected exactly one operation, got %d", len(doc.Operations))
	}
	op := doc.Operations[0]
	if op.Operation != ast.Query {
		return nil, fmt.Errorf("reader: unsupported operation type %q", op.Operation)
	}
	if len(op.VariableDefinitions) > 0 {
		return nil, fmt.Errorf("reader: variables are not supported")
	}
	return lower(doc, op.SelectionSet, make(map[string]bool))
}

func lower(doc *ast.QueryDocument, set ast.SelectionSet, visited map[string]bool) (*query.Raw, error) {
	raw := &query.Raw{}
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if s.Alias != "" && s.Alias != s.Name {
				return nil, fmt.Errorf("reader: aliases are not supported (%s: %s)", s.Alias, s.Name)
			}
			if len(s.Arguments) > 0 {
				return nil, fmt.Errorf("reader: arguments are not supported (%s)", s.Name)
			}
			if len(s.Directives) > 0 {
				return nil, fmt.Errorf("reader: directives are not supported (%s)", s.Name)
			}
			if len(s.SelectionSet) == 0 {
				raw.Fields = append(raw.Fields, s.Name)
				continue
			}
			sub, err := lower(doc, s.SelectionSet, visited)
			if err != nil {
				return nil, err
			}
			raw.Links = append(raw.Links, query.RawLink{Name: s.Name, Node: sub})

		case *ast.InlineFragment:
			// The graph has no type hierarchy, so a conditional
			// selection has nothing to condition on.
			if s.TypeCondition != "" {
				return nil, fmt.Errorf("reader: inline fragment type conditions are not supported (on %s)", s.TypeCondition)
			}
			sub, err := lower(doc, s.SelectionSet, visited)
			if err != nil {
				return nil, err
			}
			flatten(raw, sub)

		case *ast.FragmentSpread:
			// visited guards against fragment cycles, not reuse: the
			// same fragment may appear under several siblings.
			if visited[s.Name] {
				continue
			}
			def := doc.Fragments.ForName(s.Name)
			if def == nil {
				return nil, fmt.Errorf("reader: undefined fragment %q", s.Name)
			}
			visited[s.Name] = true
			sub, err := lower(doc, def.SelectionSet, visited)
			delete(visited, s.Name)
			if err != nil {
				return nil, err
			}
			flatten(raw, sub)
		}
	}
	return raw, nil
}

func flatten(dst, src *query.Raw) {
	dst.Fields = append(dst.Fields, src.Fields...)
	dst.Links = append(dst.Links, src.Links...)
}
