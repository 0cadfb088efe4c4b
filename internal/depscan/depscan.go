// Package depscan statically inspects a registered function's own source
// file to infer which packages it imports and actually uses, the Go
// equivalent of the original system's ast.parse over inspect.getsource.
//
// Go has no runtime source-reflection of arbitrary functions, so this
// package pins a function value to a file and line via
// runtime.FuncForPC/reflect, then reparses that file with go/parser and
// walks only the enclosing function declaration or literal - not the whole
// file - so that two functions sharing a file don't inherit each other's
// dependencies.
package depscan

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"reflect"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/colinhart/tuplebox/internal/call"
	"github.com/colinhart/tuplebox/internal/obslog"
)

// CodecDependency is forced into every inferred set: whatever the inference
// pass finds, the wire codec itself is always needed inside the sandbox.
const CodecDependency = "github.com/vmihailenco/msgpack/v5"

var versionSuffix = regexp.MustCompile(`^v[0-9]+$`)

// Extract returns the sorted set of package paths a registered function
// depends on. A source-read failure is logged as a warning, never returned
// as an error - the original system treats it the same way, falling back to
// whatever explicit dependencies the caller supplied.
func Extract(logger obslog.Logger, name string, fn call.Func) []string {
	deps := map[string]struct{}{CodecDependency: {}}

	imports, ok := importsOf(fn)
	if !ok && logger != nil {
		logger.Warn(name + ": source unavailable, inferring no package imports")
	}
	for _, imp := range imports {
		deps[imp] = struct{}{}
	}

	out := make([]string, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func importsOf(fn call.Func) ([]string, bool) {
	pc := reflect.ValueOf(fn).Pointer()
	rf := runtime.FuncForPC(pc)
	if rf == nil {
		return nil, false
	}
	file, line := rf.FileLine(pc)
	if file == "" {
		return nil, false
	}
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, false
	}

	fset := token.NewFileSet()
	astFile, err := parser.ParseFile(fset, file, src, 0)
	if err != nil {
		return nil, false
	}

	target := enclosingFunc(fset, astFile, line)
	if target == nil {
		// The function value points at a line that isn't inside any
		// declaration we can see (e.g. a generated or vendored symbol);
		// that's not a parse failure, just nothing to infer.
		return nil, true
	}

	named := importNames(astFile)
	used := map[string]struct{}{}
	ast.Inspect(target, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		ident, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		if path, ok := named[ident.Name]; ok {
			used[path] = struct{}{}
		}
		return true
	})

	out := make([]string, 0, len(used))
	for p := range used {
		out = append(out, p)
	}
	return out, true
}

// enclosingFunc returns the smallest FuncDecl or FuncLit that spans line,
// i.e. the most deeply nested one - matching the narrowest scope a Python
// ast.walk over inspect.getsource(fn) would have seen.
func enclosingFunc(fset *token.FileSet, file *ast.File, line int) ast.Node {
	var best ast.Node
	bestSpan := token.Pos(-1)

	consider := func(n ast.Node) {
		start := fset.Position(n.Pos()).Line
		end := fset.Position(n.End()).Line
		if line < start || line > end {
			return
		}
		span := n.End() - n.Pos()
		if bestSpan == -1 || span < bestSpan {
			best = n
			bestSpan = span
		}
	}

	ast.Inspect(file, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.FuncDecl, *ast.FuncLit:
			consider(n)
		}
		return true
	})
	return best
}

// importNames maps the identifier a file uses to refer to an import (its
// explicit alias, or the conventional last path segment) to the import
// path. Blank ("_") and dot (".") imports are excluded: neither introduces a
// name a SelectorExpr could reference, the closest Go analogue to "relative
// imports contribute nothing" in the original extractor.
func importNames(file *ast.File) map[string]string {
	out := map[string]string{}
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		var alias string
		if imp.Name != nil {
			alias = imp.Name.Name
		} else {
			alias = defaultIdent(path)
		}
		if alias == "_" || alias == "." {
			continue
		}
		out[alias] = path
	}
	return out
}

func defaultIdent(path string) string {
	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]
	if len(segments) > 1 && versionSuffix.MatchString(last) {
		last = segments[len(segments)-2]
	}
	return last
}
