// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package catalog reads and builds the packed, length-prefixed directory
// of gateware device descriptors. The catalog is static for a given
// gateware image: this package only knows how to iterate and look devices
// up in it, never how it came to be in memory (that remains an external
// collaborator, see resolver.Deps.Catalog).
package catalog

import (
	"encoding/binary"
	"errors"

	"github.com/redwire-labs/gwtftp/bits"
)

// ErrMalformed is returned by iteration when an entry runs past the end of
// the blob (a truncated name or a short fixed payload).
var ErrMalformed = errors.New("catalog: malformed entry")

// entryFixedLen is the size, in bytes, of an entry's fixed-layout tail:
// a big-endian offset word, a big-endian length word and a one-byte type
// code.
const entryFixedLen = 4 + 4 + 1

// Device describes one entry of the catalog: a printable name, its base
// offset within FPGA address space, its length in bytes, a type code and
// whether PUT is disallowed against it.
type Device struct {
	Name     string
	Offset   uint32 // two low bits already masked off
	Length   uint32 // bytes
	Type     uint8
	ReadOnly bool
}

// Catalog is an in-memory, parsed view over the packed device directory.
// Raw holds the entry bytes with the 16-bit length prefix already
// stripped off.
type Catalog struct {
	Raw []byte
}

// Parse wraps a wire-format catalog blob (2-byte big-endian length prefix
// followed by that many bytes of packed entries) for iteration. It does
// not copy or validate entries eagerly — malformed entries surface from
// Iterator.Next or Lookup.
func Parse(wire []byte) (*Catalog, error) {
	if len(wire) < 2 {
		return nil, ErrMalformed
	}

	n := binary.BigEndian.Uint16(wire)
	if int(n) > len(wire)-2 {
		return nil, ErrMalformed
	}

	return &Catalog{Raw: wire[2 : 2+int(n)]}, nil
}

// WireBytes renders the catalog back into its wire form: a 2-byte
// big-endian length followed by Raw, exactly length+2 bytes. This is what
// the listing-binary read codec streams verbatim.
func (c *Catalog) WireBytes() []byte {
	out := make([]byte, 2+len(c.Raw))
	binary.BigEndian.PutUint16(out, uint16(len(c.Raw)))
	copy(out[2:], c.Raw)
	return out
}

// Iterator walks a Catalog's entries in order.
type Iterator struct {
	rest []byte
}

// Iterate begins a fresh walk over c's entries.
func (c *Catalog) Iterate() *Iterator {
	return &Iterator{rest: c.Raw}
}

// Next decodes the next entry. ok is false once the catalog is exhausted;
// err is non-nil if the blob is truncated mid-entry.
func (it *Iterator) Next() (dev Device, ok bool, err error) {
	if len(it.rest) == 0 {
		return Device{}, false, nil
	}

	nul := indexByte(it.rest, 0)
	if nul < 0 || nul+1+entryFixedLen > len(it.rest) {
		return Device{}, false, ErrMalformed
	}

	name := string(it.rest[:nul])
	tail := it.rest[nul+1:]

	offsetWord := binary.BigEndian.Uint32(tail[0:4])
	length := binary.BigEndian.Uint32(tail[4:8])
	typ := tail[8]

	dev = Device{
		Name:     name,
		Offset:   bits.Mask(offsetWord, 2),
		Length:   length,
		Type:     typ,
		ReadOnly: offsetWord&1 != 0,
	}

	it.rest = tail[entryFixedLen:]

	return dev, true, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// Lookup scans the catalog linearly for name (the catalog is small and
// static, so this is never a performance concern) and returns its
// descriptor.
func (c *Catalog) Lookup(name string) (Device, bool) {
	it := c.Iterate()

	for {
		dev, ok, err := it.Next()
		if err != nil || !ok {
			return Device{}, false
		}
		if dev.Name == name {
			return dev, true
		}
	}
}

// Build packs devices into a Catalog using the NUL-terminated-name entry
// layout this package reads. It is used by tests and by the demo daemon
// to construct a catalog without requiring a real gateware image; the
// external catalog store (resolver.Deps.Catalog) is free to supply
// entries built some other way, as long as the wire bytes match this
// layout.
func Build(devices []Device) *Catalog {
	var raw []byte

	for _, d := range devices {
		offsetWord := d.Offset &^ 0x3
		if d.ReadOnly {
			offsetWord |= 1
		}

		raw = append(raw, d.Name...)
		raw = append(raw, 0)

		var tail [entryFixedLen]byte
		binary.BigEndian.PutUint32(tail[0:4], offsetWord)
		binary.BigEndian.PutUint32(tail[4:8], d.Length)
		tail[8] = d.Type

		raw = append(raw, tail[:]...)
	}

	return &Catalog{Raw: raw}
}
