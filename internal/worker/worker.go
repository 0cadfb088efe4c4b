// Package worker is the sandbox side of the system: a process that re-execs
// itself from the very binary the client copied into the sandbox directory,
// binds its two sockets, and serves exactly the calls its registry knows
// about. It plays the role of ml3/runner/daemon.py's embedded DAEMON_CODE,
// but since Go has no script-to-subprocess trick, the "daemon code" is this
// same compiled binary, re-launched under a different argv[0] via
// docker/docker's pkg/reexec - a process self-exec helper with nothing
// container-specific about it.
package worker

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/colinhart/tuplebox/internal/call"
	"github.com/colinhart/tuplebox/internal/codec"
	"github.com/colinhart/tuplebox/internal/envflag"
	"github.com/colinhart/tuplebox/internal/ndarray"
	"github.com/colinhart/tuplebox/internal/registry"
	"github.com/colinhart/tuplebox/internal/shm"
	"github.com/docker/docker/pkg/reexec"
	"github.com/google/uuid"
)

// Name is the registered reexec entry point. os.Args[0] is set to this when
// the sandbox-copied binary is launched as a worker.
const Name = "tuplebox-worker"

const (
	envRPC     = "TUPLEBOX_RPC_SOCK"
	envStream  = "TUPLEBOX_STREAM_SOCK"
	envWindows = "TUPLEBOX_IS_WINDOWS"
	envTimeout = "TUPLEBOX_TIMEOUT"
)

func init() {
	reexec.Register(Name, serve)
}

// MaybeRun must be the first call in main(). If this process was re-executed
// as a worker, it calls serve() (which never returns) and reports true;
// otherwise it returns false immediately and the caller proceeds as a
// normal client process.
func MaybeRun() bool {
	return reexec.Init()
}

// Launch starts a worker subprocess for sandboxDir/sandboxID and blocks
// until both its endpoints are ready (or 10s elapse), matching
// start_daemon()'s poll loop in the original system.
func Launch(ctx context.Context, workDir, sandboxDir, sandboxID string, timeout time.Duration) (rpcPath, streamPath string, err error) {
	rpcPath = filepath.Join(workDir, sandboxID+".rpc.sock")
	streamPath = filepath.Join(workDir, sandboxID+".stream.sock")
	isWindows := runtime.GOOS == "windows"

	// exec.CommandContext(ctx, path) sets both Path and Args[0] to path; we
	// need Args[0] to be the reexec dispatch name instead, so it's
	// overwritten below. Path still points at the sandbox's copied
	// interpreter.
	cmd := exec.CommandContext(ctx, binaryPath(sandboxDir))
	cmd.Args = []string{Name}
	cmd.Env = append(os.Environ(),
		envRPC+"="+rpcPath,
		envStream+"="+streamPath,
		envWindows+"="+boolFlag(isWindows),
		envTimeout+"="+strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64),
	)
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("worker: launch sandbox %s: %w", sandboxID, err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if endpointReady(rpcPath) && endpointReady(streamPath) {
			return rpcPath, streamPath, nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return "", "", fmt.Errorf("worker: sandbox %s did not become ready within 10s", sandboxID)
}

func binaryPath(sandboxDir string) string {
	name := "worker"
	if runtime.GOOS == "windows" {
		name = "worker.exe"
	}
	return filepath.Join(sandboxDir, "bin", name)
}

func endpointReady(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// serve is the reexec entry point. It runs forever, accepting one
// control+stream connection pair at a time.
func serve() {
	envflag.MarkDaemon()

	rpcLocator := os.Getenv(envRPC)
	streamLocator := os.Getenv(envStream)
	isWindows := os.Getenv(envWindows) == "1"
	timeoutSec, _ := strconv.ParseFloat(os.Getenv(envTimeout), 64)

	rpcListener, err := bind(rpcLocator, isWindows)
	if err != nil {
		return
	}
	streamListener, err := bind(streamLocator, isWindows)
	if err != nil {
		return
	}

	for {
		rpcConn, err := rpcListener.Accept()
		if err != nil {
			continue
		}
		streamConn, err := streamListener.Accept()
		if err != nil {
			rpcConn.Close()
			continue
		}
		handle(rpcConn, streamConn, timeoutSec)
	}
}

// bind opens the control or stream endpoint. On POSIX this is a Unix-domain
// socket at a fixed path (any stale file there is unlinked first); on
// Windows there is no portable equivalent, so it binds an OS-chosen
// loopback TCP port and writes that port number to the locator path for the
// client to read back.
func bind(locator string, isWindows bool) (net.Listener, error) {
	if isWindows {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		port := ln.Addr().(*net.TCPAddr).Port
		if err := os.WriteFile(locator, []byte(strconv.Itoa(port)), 0o600); err != nil {
			ln.Close()
			return nil, err
		}
		return ln, nil
	}
	os.Remove(locator)
	return net.Listen("unix", locator)
}

func handle(rpcConn, streamConn net.Conn, timeoutSec float64) {
	defer rpcConn.Close()
	defer streamConn.Close()

	payload, err := codec.ReadFrame(rpcConn)
	if err != nil {
		return
	}
	rec, err := codec.DecodeCall(payload)
	if err != nil {
		sendReply(rpcConn, codec.Reply{Status: "ERR", ErrMessage: "malformed call record"})
		return
	}

	entry, ok := registry.Lookup(rec.Callable)
	if !ok {
		sendReply(rpcConn, codec.Reply{
			Status:     "ERR",
			ErrMessage: "unknown callable: " + rec.Callable,
			Traceback:  rec.Callable + " is not registered in this sandbox",
		})
		return
	}

	restoreOut, restoreErr := os.Stdout, os.Stderr
	pr, pw, pipeErr := os.Pipe()
	if pipeErr == nil {
		os.Stdout, os.Stderr = pw, pw
	}

	fw := &codec.FrameWriter{Conn: streamConn}
	pumpDone := make(chan struct{})
	if pipeErr == nil {
		go func() {
			buf := make([]byte, 32*1024)
			for {
				n, rerr := pr.Read(buf)
				if n > 0 {
					fw.Write(buf[:n])
				}
				if rerr != nil {
					break
				}
			}
			close(pumpDone)
		}()
	}

	reply := invoke(entry, rec, timeoutSec)

	if pipeErr == nil {
		pw.Close()
		<-pumpDone
		pr.Close()
	}
	os.Stdout, os.Stderr = restoreOut, restoreErr

	sendReply(rpcConn, reply)
}

func invoke(entry *registry.Entry, rec codec.CallRecord, timeoutSec float64) (reply codec.Reply) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			reply = codec.Reply{
				Status:     "ERR",
				ErrMessage: fmt.Sprint(r),
				Traceback:  fmt.Sprintf("panic in %s: %v\n%s", rec.Callable, r, debug.Stack()),
			}
		}
	}()

	if timeoutSec > 0 && time.Since(start) > time.Duration(timeoutSec*float64(time.Second)) {
		return codec.Reply{Status: "ERR", ErrMessage: "timeout", Traceback: rec.Callable + ": execution timed out before starting"}
	}

	positional, named := registry.ResolveRefs(rec.Positional, rec.Named)
	result, err := entry.Fn(call.Args{Positional: positional, Named: named})
	if err != nil {
		return codec.Reply{Status: "ERR", ErrMessage: err.Error(), Traceback: fmt.Sprintf("%s: %v", rec.Callable, err)}
	}

	if arr, ok := result.(ndarray.Array); ok {
		return shmReply(rec.Callable, arr)
	}
	return codec.Reply{Status: "OK", Value: result}
}

func shmReply(callable string, arr ndarray.Array) codec.Reply {
	name := uuid.NewString()
	if err := shm.Create(shmDir(), name, arr.Data); err != nil {
		return codec.Reply{Status: "ERR", ErrMessage: err.Error(), Traceback: fmt.Sprintf("%s: shared memory create: %v", callable, err)}
	}
	return codec.Reply{Status: "SHM", SHMName: name, Shape: arr.Shape, Dtype: arr.Dtype}
}

// shmDir derives the per-sandbox shared-memory directory from the control
// socket's locator path, so the worker never needs a separate env var for
// it.
func shmDir() string {
	base := filepath.Base(os.Getenv(envRPC))
	id := strings.TrimSuffix(base, ".rpc.sock")
	return filepath.Join(filepath.Dir(os.Getenv(envRPC)), id+".shm")
}

func sendReply(conn net.Conn, reply codec.Reply) {
	payload, err := codec.EncodeReply(reply)
	if err != nil {
		return
	}
	_ = codec.WriteFrame(conn, payload)
}
