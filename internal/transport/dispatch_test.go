package transport

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/colinhart/tuplebox/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWorker binds a pair of Unix sockets and answers exactly one call with
// the given reply, standing in for a real sandbox worker.
func fakeWorker(t *testing.T, reply codec.Reply) (rpcPath, streamPath string) {
	t.Helper()
	dir := t.TempDir()
	rpcPath = filepath.Join(dir, "fake.rpc.sock")
	streamPath = filepath.Join(dir, "fake.stream.sock")

	rpcLn, err := net.Listen("unix", rpcPath)
	require.NoError(t, err)
	streamLn, err := net.Listen("unix", streamPath)
	require.NoError(t, err)

	go func() {
		rpcConn, err := rpcLn.Accept()
		if err != nil {
			return
		}
		defer rpcConn.Close()
		streamConn, err := streamLn.Accept()
		if err != nil {
			return
		}
		defer streamConn.Close()

		if _, err := codec.ReadFrame(rpcConn); err != nil {
			return
		}
		payload, _ := codec.EncodeReply(reply)
		_ = codec.WriteFrame(rpcConn, payload)
	}()

	t.Cleanup(func() {
		rpcLn.Close()
		streamLn.Close()
	})
	return rpcPath, streamPath
}

func seedLaunch(t *testing.T, sandboxID, rpcPath, streamPath string) {
	t.Helper()
	launchMu.Lock()
	launches[sandboxID] = &launched{rpcPath: rpcPath, streamPath: streamPath}
	launchMu.Unlock()
	t.Cleanup(func() {
		launchMu.Lock()
		delete(launches, sandboxID)
		launchMu.Unlock()
	})
}

func TestDispatchOK(t *testing.T) {
	rpcPath, streamPath := fakeWorker(t, codec.Reply{Status: "OK", Value: int64(42)})
	seedLaunch(t, "sandbox-ok", rpcPath, streamPath)

	result, err := Dispatch(context.Background(), Request{SandboxID: "sandbox-ok", Callable: "answer"})
	require.NoError(t, err)
	assert.EqualValues(t, 42, result)
}

func TestDispatchERR(t *testing.T) {
	rpcPath, streamPath := fakeWorker(t, codec.Reply{Status: "ERR", ErrMessage: "boom", Traceback: "boom trace"})
	seedLaunch(t, "sandbox-err", rpcPath, streamPath)

	_, err := Dispatch(context.Background(), Request{SandboxID: "sandbox-err", Callable: "boom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom trace")
}

func TestDispatchSHM(t *testing.T) {
	workDir := t.TempDir()
	shmDir := filepath.Join(workDir, "sandbox-shm.shm")
	require.NoError(t, os.MkdirAll(shmDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(shmDir, "seg-1"), []byte{0, 0, 0, 0, 0, 0, 240, 63}, 0o600)) // float64(1.0) little-endian

	rpcPath, streamPath := fakeWorker(t, codec.Reply{Status: "SHM", SHMName: "seg-1", Shape: []int{1}, Dtype: "float64"})
	seedLaunch(t, "sandbox-shm", rpcPath, streamPath)

	result, err := Dispatch(context.Background(), Request{WorkDir: workDir, SandboxID: "sandbox-shm", Callable: "matrix"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0}, mustFloat64Array(t, result))
}

func mustFloat64Array(t *testing.T, v any) []float64 {
	t.Helper()
	arr, ok := v.(interface{ Float64() []float64 })
	require.True(t, ok, "expected an array-like result, got %T", v)
	return arr.Float64()
}
