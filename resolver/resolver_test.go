package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relink-dev/relink/graph"
)

func noopField(ctx context.Context, idents []graph.Ident) ([]any, error) {
	return make([]any, len(idents)), nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterField("User", "name", noopField))
	require.NoError(t, reg.RegisterLink("User", "friends", noopField))
	require.NoError(t, reg.RegisterField("", "version", noopField))

	_, ok := reg.Field("User", "name")
	assert.True(t, ok)
	_, ok = reg.Link("User", "friends")
	assert.True(t, ok)
	_, ok = reg.Field("", "version")
	assert.True(t, ok)

	// Fields and links occupy separate key spaces.
	_, ok = reg.Link("User", "name")
	assert.False(t, ok)
	_, ok = reg.Field("User", "email")
	assert.False(t, ok)
}

func TestRegistry_DuplicateRegistrationFails(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterField("User", "name", noopField))
	err := reg.RegisterField("User", "name", noopField)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User.name already registered")

	require.NoError(t, reg.RegisterLink("User", "friends", noopField))
	require.Error(t, reg.RegisterLink("User", "friends", noopField))
}

func TestContractError_Message(t *testing.T) {
	err := &ContractError{Node: "User", Member: "name", Reason: "returned 1 results for 3 identifiers"}
	assert.Equal(t, "resolver: User.name: returned 1 results for 3 identifiers", err.Error())

	rootErr := &ContractError{Node: "", Member: "users", Reason: "x"}
	assert.Contains(t, rootErr.Error(), "root.users")
}
