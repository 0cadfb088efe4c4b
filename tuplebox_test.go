package tuplebox

import (
	"os"
	"testing"

	"github.com/colinhart/tuplebox/internal/envflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterInfersAndMergesDependencies(t *testing.T) {
	fn := func(a Args) (any, error) { return nil, nil }
	c := Register("t_register_basic", fn, WithPackages("github.com/example/explicit"))
	deps := c.Dependencies()
	assert.Contains(t, deps, "github.com/example/explicit")
	assert.Contains(t, deps, "github.com/vmihailenco/msgpack/v5")
}

func TestCallRunsInProcessWhenAlreadyInsideADaemon(t *testing.T) {
	called := false
	c := Register("t_in_daemon_call", func(a Args) (any, error) {
		called = true
		n := a.Positional[0].(int)
		return n + 1, nil
	})

	t.Setenv(envflag.InDaemon, "1")
	defer os.Unsetenv(envflag.InDaemon)

	result, err := c.Call(41)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 42, result)
}

func TestCallableImplementsSandboxMember(t *testing.T) {
	c := Register("t_member_shape", func(a Args) (any, error) { return nil, nil })
	assert.Equal(t, "t_member_shape", c.CallableName())
	assert.NotEmpty(t, c.Dependencies())
}

func TestWireArgsReplacesCallablesWithRefs(t *testing.T) {
	loader := Register("t_wire_loader", func(a Args) (any, error) { return nil, nil })

	positional := wireArgs([]any{loader, 42})
	ref, ok := positional[0].(CallableRef)
	require.True(t, ok)
	assert.Equal(t, "t_wire_loader", ref.Name)
	assert.Equal(t, 42, positional[1])
}
