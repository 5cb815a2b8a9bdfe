// Package shmem provides the OS-backed named shared-memory mapping and the
// named edge-triggered event used to wake a blocked consumer. Names are
// given at the portable "Local\\Name" layer and translated to this
// platform's native namespace: a file under /dev/shm for the mapping.
package shmem

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// posixName strips the reserved-local prefix used by the wire protocol and
// substitutes path separators, mirroring how the portable name layer maps
// onto a POSIX shared-memory namespace.
func posixName(name string) string {
	const prefix = `Local\`
	name = strings.TrimPrefix(name, prefix)
	name = strings.ReplaceAll(name, `\`, "_")
	return "/" + name
}

// Region is a movable, non-copyable handle to a named OS mapping. The zero
// value is closed.
type Region struct {
	mu   sync.Mutex
	data []byte
	fd   int
	name string
}

// Create allocates a new named shared-memory region of size bytes
// (producer side). Any previous region of this name is unlinked first so a
// stale mapping left behind by a crashed producer doesn't leak.
func Create(name string, size int) (*Region, error) {
	path := posixName(name)

	_ = unix.Unlink(path[1:])
	shmPath := "/dev/shm" + path

	_ = unix.Unlink(shmPath)
	fd, err := unix.Open(shmPath, unix.O_CREAT|unix.O_RDWR|unix.O_TRUNC, 0o666)
	if err != nil {
		return nil, fmt.Errorf("shmem: create %q: %w", name, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		unix.Unlink(shmPath)
		return nil, fmt.Errorf("shmem: truncate %q: %w", name, err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		unix.Unlink(shmPath)
		return nil, fmt.Errorf("shmem: mmap %q: %w", name, err)
	}

	return &Region{data: data, fd: fd, name: shmPath}, nil
}

// Open attaches to an existing named region (consumer side). Fails if no
// region with this name exists.
func Open(name string, size int) (*Region, error) {
	shmPath := "/dev/shm" + posixName(name)

	fd, err := unix.Open(shmPath, unix.O_RDWR, 0o666)
	if err != nil {
		return nil, fmt.Errorf("shmem: open %q: %w", name, err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shmem: mmap %q: %w", name, err)
	}

	return &Region{data: data, fd: fd}, nil
}

// Data returns the mapped memory, or nil if not mapped.
func (r *Region) Data() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// IsOpen reports whether the region currently holds a mapping.
func (r *Region) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data != nil
}

// Close unmaps the region and releases the underlying file descriptor.
// Only the creator (the side that called Create) unlinks the backing
// object from the filesystem namespace.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	unix.Close(r.fd)
	r.fd = -1
	if r.name != "" {
		unix.Unlink(r.name)
		r.name = ""
	}
	return err
}
