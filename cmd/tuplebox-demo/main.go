// Command tuplebox-demo is a worked example of the tuplebox library: it
// registers a data loader and an assessment function, then runs the
// assessment against the loader, letting tuplebox form the tuple, provision
// the shared sandbox, and dispatch both calls.
package main

import (
	"github.com/colinhart/tuplebox"
)

func main() {
	// Must run before anything else: if this process was re-executed as a
	// sandbox worker, Bootstrap serves forever and never returns.
	tuplebox.Bootstrap()
	Execute()
}
