// Package transport is the client side of the protocol: it launches a
// sandbox worker if one isn't already running for a given sandbox ID, opens
// its control and stream channels, and carries one call across them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/colinhart/tuplebox/internal/codec"
	"github.com/colinhart/tuplebox/internal/ndarray"
	"github.com/colinhart/tuplebox/internal/shm"
	"github.com/colinhart/tuplebox/internal/worker"
)

// Request is everything Dispatch needs to place one call.
type Request struct {
	WorkDir    string
	SandboxDir string
	SandboxID  string
	Callable   string
	Positional []any
	Named      map[string]any
	Timeout    time.Duration
}

type launched struct {
	rpcPath    string
	streamPath string
}

var (
	launchMu sync.Mutex
	launches = map[string]*launched{}
)

// ensureWorker is idempotent per sandbox ID for the lifetime of this
// process: the first caller for a given ID pays the launch cost, every
// later caller reuses the same endpoints.
func ensureWorker(ctx context.Context, req Request) (*launched, error) {
	launchMu.Lock()
	defer launchMu.Unlock()

	if l, ok := launches[req.SandboxID]; ok {
		return l, nil
	}

	rpcPath, streamPath, err := worker.Launch(ctx, req.WorkDir, req.SandboxDir, req.SandboxID, req.Timeout)
	if err != nil {
		return nil, err
	}
	l := &launched{rpcPath: rpcPath, streamPath: streamPath}
	launches[req.SandboxID] = l
	return l, nil
}

// Dispatch places one call against req's sandbox and returns its decoded
// result: a plain value for "OK", a *ndarray.Array for "SHM", or an error
// wrapping the remote traceback for "ERR".
func Dispatch(ctx context.Context, req Request) (any, error) {
	l, err := ensureWorker(ctx, req)
	if err != nil {
		return nil, err
	}

	rpcConn, err := dial(l.rpcPath)
	if err != nil {
		return nil, fmt.Errorf("transport: connect control channel: %w", err)
	}
	defer rpcConn.Close()

	streamConn, err := dial(l.streamPath)
	if err != nil {
		return nil, fmt.Errorf("transport: connect stream channel: %w", err)
	}
	defer streamConn.Close()

	go readStream(streamConn)

	payload, err := codec.EncodeCall(codec.CallRecord{Callable: req.Callable, Positional: req.Positional, Named: req.Named})
	if err != nil {
		return nil, fmt.Errorf("transport: encode call: %w", err)
	}
	if err := codec.WriteFrame(rpcConn, payload); err != nil {
		return nil, fmt.Errorf("transport: send call: %w", err)
	}

	respPayload, err := codec.ReadFrame(rpcConn)
	if err != nil {
		return nil, errors.New("transport: sandbox worker closed the control channel unexpectedly")
	}
	reply, err := codec.DecodeReply(respPayload)
	if err != nil {
		return nil, fmt.Errorf("transport: decode reply: %w", err)
	}

	switch reply.Status {
	case "OK":
		return reply.Value, nil
	case "SHM":
		return attachArray(req, reply)
	case "ERR":
		return nil, fmt.Errorf("exception inside sandbox %s:\n%s", req.SandboxID, reply.Traceback)
	default:
		return nil, fmt.Errorf("transport: unrecognized reply status %q", reply.Status)
	}
}

func attachArray(req Request, reply codec.Reply) (*ndarray.Array, error) {
	dir := filepath.Join(req.WorkDir, req.SandboxID+".shm")
	size := ndarray.ByteSize(reply.Shape, reply.Dtype)
	data, closer, err := shm.Attach(dir, reply.SHMName, size)
	if err != nil {
		return nil, fmt.Errorf("transport: attach shared array: %w", err)
	}
	return ndarray.NewShared(reply.Shape, reply.Dtype, data, closer), nil
}

// dial connects to a worker endpoint: a Unix-domain socket path on POSIX,
// or a file holding an OS-chosen port number on Windows.
func dial(locator string) (net.Conn, error) {
	if runtime.GOOS == "windows" {
		data, err := os.ReadFile(locator)
		if err != nil {
			return nil, err
		}
		port := strings.TrimSpace(string(data))
		return net.Dial("tcp", "127.0.0.1:"+port)
	}
	return net.Dial("unix", locator)
}
