// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package bus implements the memory gateway: word-aligned access to FPGA
// address space and byte-addressable access to CPU address space, on top
// of a pair of small external-collaborator interfaces (Word, Bytes) that
// stand in for read_fpga_word/write_fpga_word.
//
// The gateway itself never byte-swaps: it is the codecs in package
// transfer that normalize to wire order, by always decomposing a word
// MSB-first regardless of what Word.ReadWord happened to return. This
// package's job is purely alignment and bounds, in the idiom this
// project has always used for register access — thin, mutex-free,
// panic on a caller contract violation rather than returning an error
// for something that should never happen given a correctly validated
// open.
package bus

import "fmt"

// Word is the external collaborator for a single 32-bit-aligned,
// 32-bit-wide access to FPGA address space. Implementations may return
// the word in whatever order the underlying bus naturally delivers it;
// normalization to wire order happens one layer up.
type Word interface {
	ReadWord(addr uint32) uint32
	WriteWord(addr uint32, word uint32)
}

// Bytes is the external collaborator for byte-addressable CPU memory.
// Only reads are defined: CPU space is read-only through this core.
type Bytes interface {
	ReadAt(addr uint32, buf []byte)
}

// FPGA is the word-aligned gateway onto FPGA address space.
type FPGA struct {
	Word Word
	// Size is the region's byte size, used for GET bounds enforcement.
	// Zero means "unbounded", used for CPU-style access where no size
	// is known.
	Size uint32
}

// ReadWord reads the 32-bit word at addr. addr must already be 4-byte
// aligned: the resolver aligns OFF before any transfer begins, and
// ReadWord panics on an unaligned addr as a caller contract violation.
func (f FPGA) ReadWord(addr uint32) uint32 {
	if addr%4 != 0 {
		panic(fmt.Sprintf("bus: unaligned FPGA read at %#x", addr))
	}
	return f.Word.ReadWord(addr)
}

// WriteWord writes word at addr, which must be 4-byte aligned.
func (f FPGA) WriteWord(addr uint32, word uint32) {
	if addr%4 != 0 {
		panic(fmt.Sprintf("bus: unaligned FPGA write at %#x", addr))
	}
	f.Word.WriteWord(addr, word)
}

// CPU is the byte-addressable, read-only gateway onto CPU memory.
type CPU struct {
	Bytes Bytes
}

// ReadAt fills buf from addr. CPU reads are allowed to wrap/alias beyond
// any notional region size: this core performs no CPU-side bounds
// check, trusting the external collaborator.
func (c CPU) ReadAt(addr uint32, buf []byte) {
	c.Bytes.ReadAt(addr, buf)
}
