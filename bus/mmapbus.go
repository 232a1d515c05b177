// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build linux

package bus

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MMapWord is a Word backed by a memory-mapped device file — typically
// /dev/mem on a board where the FPGA fabric's bus slave is exposed at a
// fixed physical address, or a regular file standing in for it during
// integration testing. It is the hosted-Linux analogue of a bare-metal
// direct pointer dereference over a raw register address: same
// word-at-a-time, mutex-guarded shape, mmap instead of unsafe.Pointer.
type MMapWord struct {
	mu   sync.Mutex
	mem  []byte
	base uint32
}

// OpenMMapWord maps size bytes of path starting at offset, which on Linux
// is typically the physical base address of the FPGA bus window within
// /dev/mem. base is recorded so addr arguments to ReadWord/WriteWord can
// be absolute physical addresses rather than offsets into the mapping.
func OpenMMapWord(path string, offset int64, size uint32, base uint32) (*MMapWord, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("bus: open %s: %w", path, err)
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), offset, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("bus: mmap %s: %w", path, err)
	}

	return &MMapWord{mem: mem, base: base}, nil
}

// Close unmaps the underlying region.
func (m *MMapWord) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return unix.Munmap(m.mem)
}

func (m *MMapWord) off(addr uint32) uint32 {
	return addr - m.base
}

func (m *MMapWord) ReadWord(addr uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.off(addr)
	return binary.NativeEndian.Uint32(m.mem[o : o+4])
}

func (m *MMapWord) WriteWord(addr uint32, word uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.off(addr)
	binary.NativeEndian.PutUint32(m.mem[o:o+4], word)
}

// MMapBytes is a Bytes view over the same kind of mapping, used for CPU
// address space reads.
type MMapBytes struct {
	mu   sync.Mutex
	mem  []byte
	base uint32
}

// OpenMMapBytes maps size bytes of path at offset for byte-addressable
// reads.
func OpenMMapBytes(path string, offset int64, size uint32, base uint32) (*MMapBytes, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("bus: open %s: %w", path, err)
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), offset, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("bus: mmap %s: %w", path, err)
	}

	return &MMapBytes{mem: mem, base: base}, nil
}

func (m *MMapBytes) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return unix.Munmap(m.mem)
}

func (m *MMapBytes) ReadAt(addr uint32, buf []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := addr - m.base
	for i := range buf {
		buf[i] = m.mem[(uint32(o)+uint32(i))%uint32(len(m.mem))]
	}
}
