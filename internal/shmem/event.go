package shmem

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// NamedEvent is a named, edge-triggered, auto-reset cross-process signal.
// One Signal wakes at most one Wait; the wait returns with the signaled
// state immediately reset, mirroring Windows CreateEvent(manualReset=false)
// semantics. On this platform the name resolves to a FIFO under /tmp:
// unlike an eventfd (which has no cross-process name), a named FIFO can be
// opened independently by producer and consumer and still coordinate by
// path, which is the property the wire protocol actually needs.
type NamedEvent struct {
	fd      atomic.Int64 // -1 when closed; read lock-free from the RT thread
	path    string
	creator bool
}

func eventPath(name string) string {
	return "/tmp" + posixName(name) + ".event"
}

// CreateEvent creates the named event (producer side).
func CreateEvent(name string) (*NamedEvent, error) {
	path := eventPath(name)
	_ = unix.Unlink(path)
	if err := unix.Mkfifo(path, 0o666); err != nil {
		return nil, fmt.Errorf("shmem: mkfifo %q: %w", name, err)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		unix.Unlink(path)
		return nil, fmt.Errorf("shmem: open event %q: %w", name, err)
	}
	e := &NamedEvent{path: path, creator: true}
	e.fd.Store(int64(fd))
	return e, nil
}

// OpenEvent attaches to an existing named event (consumer side). Fails if
// the producer has not created it yet.
func OpenEvent(name string) (*NamedEvent, error) {
	path := eventPath(name)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("shmem: open event %q: %w", name, err)
	}
	e := &NamedEvent{path: path}
	e.fd.Store(int64(fd))
	return e, nil
}

// Signal wakes at most one waiter. Safe to call from the RT thread: the
// descriptor is loaded lock-free and the write is a single non-blocking
// syscall, tolerant of a full pipe (the consumer will simply re-check on
// its next poll).
func (e *NamedEvent) Signal() {
	fd := e.fd.Load()
	if fd < 0 {
		return
	}
	var b [1]byte
	_, _ = unix.Write(int(fd), b[:])
}

// Wait blocks until signaled or timeoutMs elapses, returning whether the
// event was signaled. Consumes every pending signal on success, leaving
// the event reset.
func (e *NamedEvent) Wait(timeoutMs int) bool {
	fd := e.fd.Load()
	if fd < 0 {
		return false
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil || n <= 0 {
		return false
	}
	var buf [64]byte
	read, err := unix.Read(int(fd), buf[:])
	if err != nil || read == 0 {
		return false
	}
	for read == len(buf) {
		if read, err = unix.Read(int(fd), buf[:]); err != nil {
			break
		}
	}
	return true
}

// IsOpen reports whether the event holds a valid descriptor.
func (e *NamedEvent) IsOpen() bool {
	return e.fd.Load() >= 0
}

// Close releases the descriptor. The creator also removes the FIFO from
// the filesystem namespace.
func (e *NamedEvent) Close() error {
	fd := e.fd.Swap(-1)
	if fd < 0 {
		return nil
	}
	err := unix.Close(int(fd))
	if e.creator && e.path != "" {
		unix.Unlink(e.path)
	}
	return err
}
