// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package transfer

import (
	"fmt"

	"github.com/redwire-labs/gwtftp/bus"
)

// bytesPerHexdumpLine is the number of source bytes rendered per line of
// a CPU-space hexdump.
const bytesPerHexdumpLine = 16

// BytesBinary is the GET /cpu.ADDR.LEN OCTET producer: raw bytes read
// straight from CPU address space.
type BytesBinary struct {
	cpu       bus.CPU
	addr      uint32
	remaining uint32
}

// NewBytesBinary returns a producer reading length bytes starting at addr.
func NewBytesBinary(cpu bus.CPU, addr uint32, length uint32) *BytesBinary {
	return &BytesBinary{cpu: cpu, addr: addr, remaining: length}
}

func (b *BytesBinary) Produce(out []byte) int {
	n := len(out)
	if uint32(n) > b.remaining {
		n = int(b.remaining)
	}
	if n == 0 {
		return 0
	}

	b.cpu.ReadAt(b.addr, out[:n])
	b.addr += uint32(n)
	b.remaining -= uint32(n)

	return n
}

// BytesText is the GET /cpu.ADDR.LEN TEXT producer: a classic hexdump,
// 16 source bytes per line, each rendered as two uppercase hex digits
// separated by single spaces, prefixed by an 8-digit relative label that
// counts from zero regardless of the source address.
type BytesText struct {
	cpu       bus.CPU
	addr      uint32
	remaining uint32
	label     uint32

	lineBuf []byte
	lineIdx int
	done    bool
}

// NewBytesText returns a hexdump producer reading length bytes from addr.
func NewBytesText(cpu bus.CPU, addr uint32, length uint32) *BytesText {
	return &BytesText{cpu: cpu, addr: addr, remaining: length}
}

func (b *BytesText) Produce(out []byte) int {
	produced := 0

	for produced < len(out) {
		if b.lineBuf == nil || b.lineIdx >= len(b.lineBuf) {
			if !b.fetchLine() {
				return produced
			}
		}

		n := copy(out[produced:], b.lineBuf[b.lineIdx:])
		b.lineIdx += n
		produced += n
	}

	return produced
}

func (b *BytesText) fetchLine() bool {
	if b.done || b.remaining == 0 {
		b.done = true
		return false
	}

	n := b.remaining
	if n > bytesPerHexdumpLine {
		n = bytesPerHexdumpLine
	}

	chunk := make([]byte, n)
	b.cpu.ReadAt(b.addr, chunk)
	b.addr += n
	b.remaining -= n

	line := fmt.Sprintf("%08X:", b.label)
	for _, c := range chunk {
		line += fmt.Sprintf(" %02X", c)
	}
	line += "\n"

	b.label += bytesPerHexdumpLine
	b.lineBuf = []byte(line)
	b.lineIdx = 0

	return true
}
