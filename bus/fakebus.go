// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package bus

import "encoding/binary"

// FakeWord is an in-memory Word backed by a plain byte slice, used by
// tests and by the demo daemon's -bus=fake mode. Swap, when non-nil, is
// applied to every word on both read and write to simulate a bus that
// delivers words in a platform-dependent order different from the wire's
// big-endian convention — exercising the normalization the read/write
// codecs are responsible for.
type FakeWord struct {
	Mem  []byte
	Swap func(uint32) uint32
}

// NewFakeWord allocates a zeroed FakeWord of the given byte size.
func NewFakeWord(size uint32) *FakeWord {
	return &FakeWord{Mem: make([]byte, size)}
}

func (f *FakeWord) ReadWord(addr uint32) uint32 {
	w := binary.BigEndian.Uint32(f.Mem[addr : addr+4])
	if f.Swap != nil {
		w = f.Swap(w)
	}
	return w
}

func (f *FakeWord) WriteWord(addr uint32, word uint32) {
	if f.Swap != nil {
		word = f.Swap(word)
	}
	binary.BigEndian.PutUint32(f.Mem[addr:addr+4], word)
}

// FakeBytes is an in-memory Bytes backed by a plain byte slice that wraps
// on out-of-range reads, matching CPU.ReadAt's allowance for reads to
// wrap or alias beyond the backing region.
type FakeBytes struct {
	Mem []byte
}

func NewFakeBytes(size uint32) *FakeBytes {
	return &FakeBytes{Mem: make([]byte, size)}
}

func (f *FakeBytes) ReadAt(addr uint32, buf []byte) {
	for i := range buf {
		buf[i] = f.Mem[(addr+uint32(i))%uint32(len(f.Mem))]
	}
}
