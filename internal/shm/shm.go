// Package shm implements file-backed shared-memory segments used to hand a
// large array result from a sandbox worker to its client without putting the
// element bytes on the RPC wire. The mmap plumbing is lifted from
// e2b-dev-infra's block-storage cache (pkg/cache/mmap.go), which maps a file
// with the same edsrzf/mmap-go + golang.org/x/sys/unix pairing.
//
// "Zero-copy" here describes the wire: the control channel only ever carries
// a segment name, shape and dtype. The attach side still makes one local
// copy out of the mapped region before unmapping, so the segment can be
// unlinked immediately afterward without racing a future page fault against
// a removed file.
package shm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

func segmentPath(dir, name string) string {
	return filepath.Join(dir, name)
}

// Create writes data into a new named segment under dir, sized exactly to
// len(data). The worker side calls this once per array result.
func Create(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("shm: create segment dir: %w", err)
	}
	path := segmentPath(dir, name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("shm: open segment %s: %w", name, err)
	}
	defer f.Close()

	if len(data) == 0 {
		return nil
	}
	if err := f.Truncate(int64(len(data))); err != nil {
		return fmt.Errorf("shm: size segment %s: %w", name, err)
	}

	region, err := mmap.MapRegion(f, len(data), unix.PROT_READ|unix.PROT_WRITE, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("shm: map segment %s: %w", name, err)
	}
	copy(region, data)
	if err := region.Flush(); err != nil {
		region.Unmap()
		return fmt.Errorf("shm: flush segment %s: %w", name, err)
	}
	return region.Unmap()
}

// Attach maps the named segment, copies its contents into a freshly
// allocated heap slice, unmaps it, and returns a closer that unlinks the
// backing file. Callers invoke the closer once they are done with the
// returned bytes (ndarray.NewShared wires this to Array.Close).
func Attach(dir, name string, size int) (data []byte, closer func() error, err error) {
	path := segmentPath(dir, name)

	if size == 0 {
		return nil, func() error { return os.Remove(path) }, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("shm: open segment %s: %w", name, err)
	}
	defer f.Close()

	region, err := mmap.MapRegion(f, size, unix.PROT_READ|unix.PROT_WRITE, mmap.RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("shm: map segment %s: %w", name, err)
	}
	out := make([]byte, size)
	copy(out, region)
	if err := region.Unmap(); err != nil {
		return nil, nil, fmt.Errorf("shm: unmap segment %s: %w", name, err)
	}

	return out, func() error { return os.Remove(path) }, nil
}
