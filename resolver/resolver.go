// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package resolver parses a requested filename and mode into a bound
// Transfer: it is the glue between the filename grammar a client speaks
// and the codecs in package transfer. Everything it touches beyond that
// — the catalog, the two memory-mapped address spaces, an optional
// temperature source — is an external collaborator supplied by Deps.
package resolver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redwire-labs/gwtftp/bus"
	"github.com/redwire-labs/gwtftp/catalog"
	"github.com/redwire-labs/gwtftp/transfer"
)

// ErrNotFound covers every resolution failure: unknown command, unknown
// device, malformed offset/length, or a disallowed direction. The engine
// maps any error from Open to a protocol-level file-not-found or
// access-violation response; the core draws no further distinction.
var ErrNotFound = errors.New("resolver: not found")

// ErrBounds is a resolution failure specifically about a computed range
// exceeding its resource, wrapped under ErrNotFound for callers that only
// care about the open/no-open distinction.
var ErrBounds = fmt.Errorf("resolver: out of bounds: %w", ErrNotFound)

// ErrReadOnly reports a PUT rejected because the target is read-only.
var ErrReadOnly = fmt.Errorf("resolver: read-only: %w", ErrNotFound)

// Deps collects every external collaborator the resolver needs. Catalog,
// FPGA and CPU are required; Banner defaults to transfer.DefaultBanner
// when empty; Temperature is optional and gates /temp entirely when nil.
type Deps struct {
	Catalog *catalog.Catalog
	FPGA    bus.FPGA
	CPU     bus.CPU

	// FPGABase and CPUBase are the absolute addresses corresponding to
	// offset 0 in each address space. Devices store offsets already
	// relative to FPGA space, so FPGABase is normally 0; CPUBase exists
	// for deployments where CPU memory is mapped at a nonzero base.
	FPGABase uint32
	CPUBase  uint32

	Banner string

	// Temperature, when non-nil, reports the board's current temperature
	// in millidegrees Celsius. Its absence makes /temp behave like an
	// unknown path rather than a hardware-specific compile-time choice.
	Temperature func() (millicelsius int32, ok bool)
}

func (d Deps) banner() string {
	if d.Banner == "" {
		return transfer.DefaultBanner
	}
	return d.Banner
}

// Open parses filename under mode and direction (write=true means PUT),
// and returns a bound Transfer ready for the engine to drive, or an error
// wrapping ErrNotFound.
func Open(deps Deps, filename string, mode transfer.Mode, write bool) (*transfer.Transfer, error) {
	binary := mode == transfer.ModeOctet

	switch {
	case filename == "/help":
		if write {
			return nil, fmt.Errorf("%w: PUT /help", ErrReadOnly)
		}
		return &transfer.Transfer{Binary: binary, Producer: transfer.NewHelp(deps.banner())}, nil

	case filename == "/listdev":
		if write {
			return nil, fmt.Errorf("%w: PUT /listdev", ErrReadOnly)
		}
		if binary {
			return &transfer.Transfer{Binary: true, Producer: transfer.NewListingBinary(deps.Catalog)}, nil
		}
		return &transfer.Transfer{Binary: false, Producer: transfer.NewListingText(deps.Catalog)}, nil

	case filename == "/temp":
		if write {
			return nil, fmt.Errorf("%w: PUT /temp", ErrReadOnly)
		}
		if binary {
			return nil, fmt.Errorf("%w: /temp is TEXT-only", ErrNotFound)
		}
		if deps.Temperature == nil {
			return nil, fmt.Errorf("%w: /temp", ErrNotFound)
		}
		milli, ok := deps.Temperature()
		if !ok {
			return nil, fmt.Errorf("%w: /temp unavailable", ErrNotFound)
		}
		return &transfer.Transfer{Binary: binary, Producer: transfer.NewHelp(fmt.Sprintf("%d\n", milli))}, nil

	case strings.HasPrefix(filename, "/fpga."):
		return openMemory(deps, filename[len("/fpga."):], region{
			isFPGA: true, base: deps.FPGABase, size: deps.FPGA.Size,
		}, mode, write)

	case strings.HasPrefix(filename, "/cpu."):
		if write {
			return nil, fmt.Errorf("%w: PUT /cpu", ErrReadOnly)
		}
		return openMemory(deps, filename[len("/cpu."):], region{
			isFPGA: false, base: deps.CPUBase,
		}, mode, write)

	case strings.HasPrefix(filename, "/dev/"):
		return openDevice(deps, filename[len("/dev/"):], mode, write)

	case filename != "" && filename[0] != '/':
		return openDevice(deps, filename, mode, write)
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
}

// region describes which address space a memory-opener request targets.
type region struct {
	isFPGA bool
	base   uint32
	size   uint32 // 0 means "no bound enforced" (CPU space)
}

// openDevice implements the device opener algorithm: split on the
// first '.', look the name up in the catalog, enforce read-only and
// bounds, and bind the matching FPGA-word codec pair. The filename's
// OFF/LEN here count in words; the catalog's byte Offset/Length are
// converted accordingly.
func openDevice(deps Deps, devref string, mode transfer.Mode, write bool) (*transfer.Transfer, error) {
	name, rest, _ := strings.Cut(devref, ".")

	dev, ok := deps.Catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: device %q", ErrNotFound, name)
	}
	if write && dev.ReadOnly {
		return nil, fmt.Errorf("%w: device %q", ErrReadOnly, name)
	}

	var off, length uint32
	var haveLen bool
	var err error
	if rest != "" {
		off, length, haveLen, err = parseOffLen(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}

	deviceWordLen := dev.Length / 4

	if !write {
		if !haveLen || length == 0 {
			if off >= deviceWordLen {
				return nil, fmt.Errorf("%w: device %q offset past end", ErrBounds, name)
			}
			length = deviceWordLen - off
		}
		if off+length > deviceWordLen {
			return nil, fmt.Errorf("%w: device %q range", ErrBounds, name)
		}
	}

	cursor := deps.FPGABase + dev.Offset + off*4
	fpga := deps.FPGA

	t := &transfer.Transfer{Write: write, Binary: mode == transfer.ModeOctet}

	if !write {
		if t.Binary {
			t.Producer = transfer.NewFPGAWordsBinary(fpga, cursor, length*4)
		} else {
			t.Producer = transfer.NewFPGAWordsText(fpga, cursor, length*4)
		}
		return t, nil
	}

	if t.Binary {
		t.Consumer = transfer.NewFPGAWordsBinaryWriter(fpga, cursor, -1)
	} else {
		t.Consumer = transfer.NewFPGAWordsTextWriter(fpga, cursor, -1)
	}
	return t, nil
}

// openMemory implements the memory opener algorithm for both /fpga and
// /cpu requests: OFF/LEN here count in bytes, unlike openDevice's
// word-counted fields, and LEN is always aligned up to a multiple of 4.
func openMemory(deps Deps, ref string, r region, mode transfer.Mode, write bool) (*transfer.Transfer, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: missing offset", ErrNotFound)
	}

	offStr, lenStr, hasLen := strings.Cut(ref, ".")

	off, err := parseHex(offStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	length := uint32(1)
	if write {
		hasLen = false
	}
	if hasLen {
		length, err = parseHex(lenStr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}

	off &^= 0x3
	length = (length + 3) &^ 0x3

	if !write {
		if length == 0 {
			return nil, fmt.Errorf("%w: zero length", ErrBounds)
		}
		if r.isFPGA && r.size != 0 && off+length > r.size {
			return nil, fmt.Errorf("%w: range exceeds region", ErrBounds)
		}
	}

	cursor := r.base + off
	t := &transfer.Transfer{Write: write, Binary: mode == transfer.ModeOctet}

	if !write {
		if r.isFPGA {
			if t.Binary {
				t.Producer = transfer.NewFPGAWordsBinary(deps.FPGA, cursor, length)
			} else {
				t.Producer = transfer.NewFPGAWordsText(deps.FPGA, cursor, length)
			}
		} else {
			if t.Binary {
				t.Producer = transfer.NewBytesBinary(deps.CPU, cursor, length)
			} else {
				t.Producer = transfer.NewBytesText(deps.CPU, cursor, length)
			}
		}
		return t, nil
	}

	// write=true only reaches here for /fpga (CPU PUT is rejected before
	// openMemory is called).
	remaining := int64(r.size) - int64(off)
	if r.size == 0 {
		remaining = -1
	}
	if t.Binary {
		t.Consumer = transfer.NewFPGAWordsBinaryWriter(deps.FPGA, cursor, remaining)
	} else {
		t.Consumer = transfer.NewFPGAWordsTextWriter(deps.FPGA, cursor, remaining)
	}
	return t, nil
}

// parseOffLen parses a devref tail of the form "OFF" or "OFF.LEN", both
// 1-8 hex digits.
func parseOffLen(s string) (off, length uint32, haveLen bool, err error) {
	offStr, lenStr, hasLen := strings.Cut(s, ".")

	off, err = parseHex(offStr)
	if err != nil {
		return 0, 0, false, err
	}
	if hasLen {
		length, err = parseHex(lenStr)
		if err != nil {
			return 0, 0, false, err
		}
		haveLen = true
	}
	return off, length, haveLen, nil
}

// parseHex parses 1-8 hex digits, rejecting empty strings and anything
// that isn't pure hex (the filename grammar's "hex" production).
func parseHex(s string) (uint32, error) {
	if s == "" || len(s) > 8 {
		return 0, fmt.Errorf("invalid hex field %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex field %q: %w", s, err)
	}
	return uint32(v), nil
}
