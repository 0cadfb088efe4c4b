// Package tuplebox lets a Go program mark certain functions as running in
// their own provisioned, dependency-isolated sandbox, transparently
// grouping a callable with any other registered callables passed to it -
// the registered-callable argument becomes a "tuple" that shares one
// sandbox for the duration of the call.
//
// Call Bootstrap first thing in main(): it detects whether the current
// process was re-executed as a sandbox worker and, if so, serves forever
// and never returns.
package tuplebox

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/colinhart/tuplebox/internal/call"
	"github.com/colinhart/tuplebox/internal/depscan"
	"github.com/colinhart/tuplebox/internal/envflag"
	"github.com/colinhart/tuplebox/internal/ndarray"
	"github.com/colinhart/tuplebox/internal/obslog"
	"github.com/colinhart/tuplebox/internal/registry"
	"github.com/colinhart/tuplebox/internal/sandbox"
	"github.com/colinhart/tuplebox/internal/transport"
	"github.com/colinhart/tuplebox/internal/worker"
)

// Args is the argument bundle a registered Func receives.
type Args = call.Args

// Func is the shape every registered callable must implement.
type Func = call.Func

// Array is a row-major numeric buffer that, when returned from a registered
// callable, crosses the sandbox boundary as a shared-memory handle rather
// than wire bytes.
type Array = ndarray.Array

// Logger is the logging contract the package and its sandboxes use.
type Logger = obslog.Logger

// CallableRef is what a registered callable argument actually looks like
// once it reaches the worker that runs the callable it was passed to: a
// name, resolved back against that worker's own registry. A *Callable
// itself can never cross the wire (it holds a function value), so this is
// the shape a registered function should type-assert against when one of
// its own arguments is another registered callable.
type CallableRef = registry.Ref

// ArrayFromFloat64 builds a row-major Array of dtype float64 from values,
// shaped per shape.
func ArrayFromFloat64(shape []int, values []float64) Array {
	return ndarray.FromFloat64(shape, values)
}

var (
	defaultLogger Logger = obslog.New("")
	workDir              = ".tuplebox"
)

// SetLogger replaces the default logger used for provisioning and
// dependency-inference diagnostics.
func SetLogger(l Logger) { defaultLogger = l }

// SetWorkDir changes where sandbox manifests, directories and sockets live.
// Defaults to ".tuplebox" in the current working directory.
func SetWorkDir(dir string) { workDir = dir }

// Bootstrap must be called first in main(). If the current process is a
// re-executed sandbox worker, it serves forever and this call never
// returns; os.Exit is a defensive backstop in case serve somehow did.
func Bootstrap() {
	if worker.MaybeRun() {
		os.Exit(0)
	}
}

// Callable is a registered function, invokable locally for testing or
// remotely through its sandbox.
type Callable struct {
	entry   *registry.Entry
	timeout time.Duration
}

// CallableName and Dependencies implement sandbox.Member, letting a
// Callable take part in tuple formation without sandbox needing to know
// about this package.
func (c *Callable) CallableName() string  { return c.entry.Name }
func (c *Callable) Dependencies() []string { return c.entry.Dependencies() }

// Option configures Register.
type Option func(*registerConfig)

type registerConfig struct {
	packages []string
	timeout  time.Duration
}

// WithPackages declares explicit dependencies in addition to whatever the
// static import scan infers.
func WithPackages(pkgs ...string) Option {
	return func(c *registerConfig) { c.packages = append(c.packages, pkgs...) }
}

// WithTimeout sets the timeout ceiling passed to the sandbox worker when the
// worker is launched. The worker checks it only once per call, at the
// invocation boundary before the callable starts; a running call is never
// interrupted.
func WithTimeout(d time.Duration) Option {
	return func(c *registerConfig) { c.timeout = d }
}

// Register declares a sandboxed callable under a stable name. The name must
// be unique process-wide and is what a worker uses to resolve the function
// it was asked to run - Go has no way to ship the function body itself
// across the sandbox boundary, so every process that might act as a worker
// for this callable (in practice: the same binary, copied into its
// sandbox) must call Register with the same name before Bootstrap runs.
func Register(name string, fn Func, opts ...Option) *Callable {
	cfg := registerConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	entry := &registry.Entry{
		Name:     name,
		Fn:       fn,
		Explicit: dedupeSorted(cfg.packages),
	}
	entry.Inferred = depscan.Extract(defaultLogger, name, fn)
	registry.Register(entry)

	return &Callable{entry: entry, timeout: cfg.timeout}
}

// wireArgs and wireNamedArgs replace any registered-callable argument with
// its wire-safe registry.Ref before a call record is encoded; a *Callable
// holds a function value and msgpack can't serialize that.
func wireArgs(positional []any) []any {
	out := make([]any, len(positional))
	for i, a := range positional {
		out[i] = wireArg(a)
	}
	return out
}

func wireNamedArgs(named map[string]any) map[string]any {
	if named == nil {
		return nil
	}
	out := make(map[string]any, len(named))
	for k, a := range named {
		out[k] = wireArg(a)
	}
	return out
}

func wireArg(a any) any {
	if m, ok := a.(sandbox.Member); ok {
		return registry.Ref{Name: m.CallableName()}
	}
	return a
}

func dedupeSorted(in []string) []string {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Call invokes the callable with positional arguments, running it inside
// its sandbox unless this call is itself already executing inside one (in
// which case it runs in-process, sharing that sandbox).
func (c *Callable) Call(args ...any) (any, error) {
	return c.CallKW(args, nil)
}

// CallKW invokes the callable with both positional and named arguments.
func (c *Callable) CallKW(positional []any, named map[string]any) (any, error) {
	if envflag.IsDaemon() {
		return c.entry.Fn(call.Args{Positional: positional, Named: named})
	}

	members := []sandbox.Member{c}
	for _, a := range positional {
		if m, ok := a.(sandbox.Member); ok {
			members = append(members, m)
		}
	}
	for _, a := range named {
		if m, ok := a.(sandbox.Member); ok {
			members = append(members, m)
		}
	}
	tuple := sandbox.FormTuple(members...)

	ctx := context.Background()
	provisioner := sandbox.NewProvisioner(workDir, defaultLogger)
	id, dir, err := provisioner.Resolve(ctx, tuple)
	if err != nil {
		return nil, err
	}

	return transport.Dispatch(ctx, transport.Request{
		WorkDir:    workDir,
		SandboxDir: dir,
		SandboxID:  id,
		Callable:   c.entry.Name,
		Positional: wireArgs(positional),
		Named:      wireNamedArgs(named),
		Timeout:    c.timeout,
	})
}
