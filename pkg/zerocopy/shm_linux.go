//go:build linux

package zerocopy

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sysvRegion attaches a real System V shared-memory segment via
// shmget(2)/shmat(2), grounded on runZeroInc-sockstats's GOOS-suffixed
// syscall adapters (pkg/tcpinfo/tcpinfo_linux.go) for the pattern of a
// platform file isolating raw unix syscalls behind a small interface.
type sysvRegion struct {
	id   int
	addr uintptr
	size int
}

func attachSysV(key int, size uint32) (ShmRegion, error) {
	id, err := unix.Shmget(key, int(size), unix.IPC_CREAT|0o600)
	if err != nil {
		return nil, fmt.Errorf("shmget: %w", err)
	}
	addr, err := unix.Shmat(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("shmat: %w", err)
	}
	return &sysvRegion{id: id, addr: addr, size: int(size)}, nil
}

func (r *sysvRegion) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(r.addr)), r.size)
}

func (r *sysvRegion) Detach() error {
	if r.addr == 0 {
		return nil
	}
	err := unix.Shmdt(r.addr)
	r.addr = 0
	return err
}
