// Package envflag carries the single environment-variable trampoline that
// stops a registered callable from re-entering the sandbox machinery once
// it is already running inside a worker process.
package envflag

import "os"

// InDaemon is set in a worker process's environment for the lifetime of the
// process, including any subprocess it spawns.
const InDaemon = "TUPLEBOX_IN_DAEMON"

// IsDaemon reports whether the calling goroutine is already executing inside
// a sandbox worker.
func IsDaemon() bool {
	return os.Getenv(InDaemon) == "1"
}

// MarkDaemon flips the trampoline on. Called once, at worker startup.
func MarkDaemon() {
	os.Setenv(InDaemon, "1")
}
