package reader

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relink-dev/relink/query"
)

func TestParse_FieldsAndLinks(t *testing.T) {
	raw, err := Parse(`{ version users { id name friends { name } } }`)
	require.NoError(t, err)

	want := &query.Raw{
		Fields: []string{"version"},
		Links: []query.RawLink{{
			Name: "users",
			Node: &query.Raw{
				Fields: []string{"id", "name"},
				Links: []query.RawLink{{
					Name: "friends",
					Node: &query.Raw{Fields: []string{"name"}},
				}},
			},
		}},
	}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Fatalf("raw selection mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_NamedOperation(t *testing.T) {
	raw, err := Parse(`query Users { users { id } }`)
	require.NoError(t, err)
	require.Len(t, raw.Links, 1)
	assert.Equal(t, "users", raw.Links[0].Name)
}

func TestParse_FragmentsFlattened(t *testing.T) {
	raw, err := Parse(`
		{ users { ...Names } }
		fragment Names on User { id name }
	`)
	require.NoError(t, err)

	want := &query.Raw{
		Links: []query.RawLink{{
			Name: "users",
			Node: &query.Raw{Fields: []string{"id", "name"}},
		}},
	}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Fatalf("raw selection mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_InlineFragmentFlattened(t *testing.T) {
	raw, err := Parse(`{ users { ... { id name } version } }`)
	require.NoError(t, err)

	want := &query.Raw{
		Links: []query.RawLink{{
			Name: "users",
			Node: &query.Raw{Fields: []string{"id", "name", "version"}},
		}},
	}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Fatalf("raw selection mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Rejections(t *testing.T) {
	cases := []struct {
		name string
		src  string
		msg  string
	}{
		{"alias", `{ alias: users { id } }`, "aliases are not supported"},
		{"arguments", `{ users(limit: 1) { id } }`, "arguments are not supported"},
		{"directives", `{ users @include(if: true) { id } }`, "directives are not supported"},
		{"variables", `query Q($x: Int) { users { id } }`, "variables are not supported"},
		{"mutation", `mutation { createUser }`, "unsupported operation type"},
		{"undefined fragment", `{ users { ...Ghost } }`, "undefined fragment"},
		{"inline fragment type condition", `{ users { ... on Pet { name } } }`, "type conditions are not supported"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse(`{ users {`)
	require.Error(t, err)
}
