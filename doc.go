// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package gwtftp exposes a gateware target's internal resources — FPGA
// register space, CPU memory, a device catalog and a help banner — as a
// hierarchical virtual filesystem served over a TFTP-style GET/PUT
// protocol.
//
// The package itself is the thin façade tying together the independently
// testable pieces: [github.com/redwire-labs/gwtftp/bus] for word-aligned
// hardware access, [github.com/redwire-labs/gwtftp/catalog] for the device
// directory, [github.com/redwire-labs/gwtftp/transfer] for the per-transfer
// codecs and [github.com/redwire-labs/gwtftp/resolver] for filename
// resolution. [github.com/redwire-labs/gwtftp/engine] drives all of the
// above from a real UDP socket; it is deliberately not part of the core.
package gwtftp

import (
	"github.com/redwire-labs/gwtftp/resolver"
	"github.com/redwire-labs/gwtftp/transfer"
)

// Deps collects the external collaborators the core resolver consumes, see
// resolver.Deps for field-level documentation.
type Deps = resolver.Deps

// Open resolves filename against deps and, on success, returns the
// transfer ready to be driven by an engine. mode selects TEXT ("netascii"
// or "ascii" per the wire protocol) vs OCTET; write selects PUT vs GET.
//
// Open never blocks and never touches hardware beyond what is required to
// validate bounds (for device lookups the catalog is scanned, nothing on
// the FPGA/CPU bus is read or written until the first Produce/Consume
// call).
func Open(deps resolver.Deps, filename string, mode transfer.Mode, write bool) (*transfer.Transfer, error) {
	return resolver.Open(deps, filename, mode, write)
}
