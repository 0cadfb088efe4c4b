package depscan

import (
	"fmt"
	"strings"
	"testing"

	"github.com/colinhart/tuplebox/internal/call"
	"github.com/stretchr/testify/assert"
)

// usesStrings is a fixture function whose body references the "strings" and
// "fmt" packages, so Extract should infer both.
func usesStrings(a call.Args) (any, error) {
	name, _ := a.Positional[0].(string)
	return fmt.Sprintf("hello %s", strings.ToUpper(name)), nil
}

// usesNothing's body has no package-qualified references; its signature
// references call.Args.
func usesNothing(a call.Args) (any, error) {
	n, _ := a.Positional[0].(int)
	return n + 1, nil
}

func TestExtractInfersUsedImports(t *testing.T) {
	deps := Extract(nil, "uses_strings", call.Func(usesStrings))
	assert.Contains(t, deps, CodecDependency)
	assert.Contains(t, deps, "strings")
	assert.Contains(t, deps, "fmt")
}

func TestExtractAlwaysForcesCodecDependency(t *testing.T) {
	deps := Extract(nil, "uses_nothing", call.Func(usesNothing))
	assert.Equal(t, []string{CodecDependency}, deps)
}

func TestDefaultIdentStripsVersionSuffix(t *testing.T) {
	assert.Equal(t, "msgpack", defaultIdent("github.com/vmihailenco/msgpack/v5"))
	assert.Equal(t, "uuid", defaultIdent("github.com/google/uuid"))
}
