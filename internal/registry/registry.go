// Package registry holds the process-wide table of registered callables,
// keyed by the stable name they were registered under. It is the mechanism
// a re-executed worker process uses to resolve "which function do I run"
// without being able to deserialize a closure off the wire.
package registry

import (
	"fmt"
	"sort"

	"github.com/colinhart/tuplebox/internal/call"
)

// Entry is everything the runtime needs to know about one registered
// callable: how to invoke it, and what it depends on.
type Entry struct {
	Name     string
	Fn       call.Func
	Explicit []string
	Inferred []string
}

// Dependencies returns the sorted, deduplicated union of explicit and
// inferred dependencies for this entry.
func (e *Entry) Dependencies() []string {
	set := make(map[string]struct{}, len(e.Explicit)+len(e.Inferred))
	for _, d := range e.Explicit {
		set[d] = struct{}{}
	}
	for _, d := range e.Inferred {
		set[d] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

var (
	table = map[string]*Entry{}
)

// Register adds or replaces an entry. Re-registering under the same name is
// legal and simply overwrites the prior definition, matching how a process
// re-running its own registration code at import time behaves.
func Register(e *Entry) {
	table[e.Name] = e
}

// Lookup resolves a callable by its stable name. A worker process calls this
// after decoding a call record off the control channel.
func Lookup(name string) (*Entry, bool) {
	e, ok := table[name]
	return e, ok
}

// All returns every registered entry, sorted by name, mainly for CLI
// introspection and tests.
func All() []*Entry {
	out := make([]*Entry, 0, len(table))
	for _, e := range table {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Ref is the wire-safe stand-in for a registered callable passed as an
// argument to another one. A *registry.Entry carries a function value and
// can never cross the codec, so the client swaps any callable argument for
// a Ref (just its name) before encoding a call record; the worker resolves
// it back to the real entry and invokes it in-process, never re-opening a
// sandbox connection to itself.
type Ref struct {
	Name string
}

// Call and CallKW run the referenced callable directly against this
// process's own registry - correct precisely because a Ref only ever
// appears inside an already-running worker.
func (r Ref) Call(args ...any) (any, error) {
	return r.CallKW(args, nil)
}

func (r Ref) CallKW(positional []any, named map[string]any) (any, error) {
	entry, ok := Lookup(r.Name)
	if !ok {
		return nil, fmt.Errorf("registry: %s is not registered in this sandbox", r.Name)
	}
	return entry.Fn(call.Args{Positional: positional, Named: named})
}

// ResolveRefs walks a decoded call record's arguments and turns any value
// that msgpack decoded as a bare {"Name": "..."} map - the shape a Ref
// marshals to - back into a concrete Ref, provided that name is actually
// registered here. This is the Go analogue of the original's dynamic,
// any-shaped argument passing: there is no static type to decode into, so
// the worker recognizes the reference shape structurally.
func ResolveRefs(positional []any, named map[string]any) ([]any, map[string]any) {
	outPositional := make([]any, len(positional))
	for i, v := range positional {
		outPositional[i] = resolveRef(v)
	}
	var outNamed map[string]any
	if named != nil {
		outNamed = make(map[string]any, len(named))
		for k, v := range named {
			outNamed[k] = resolveRef(v)
		}
	}
	return outPositional, outNamed
}

func resolveRef(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	name, ok := m["Name"].(string)
	if !ok {
		return v
	}
	if _, exists := Lookup(name); !exists {
		return v
	}
	return Ref{Name: name}
}
