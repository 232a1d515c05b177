// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package transfer implements the per-transfer state machine: the object
// threaded through every chunk callback of one GET or PUT, and the
// streaming codecs (producers for GET, consumers for PUT) that drive it.
//
// Each codec kind gets its own small, typed struct rather than one
// monomorphic state object with untyped scratch fields, dispatched
// through the Producer and Consumer interfaces below rather than a
// hand-rolled sum type. This lets each codec carry exactly the
// private fields it needs (a catalog iterator here, a line buffer there)
// instead of a handful of fields reused for unrelated purposes across
// codecs.
package transfer

// Mode selects the wire encoding of a transfer: TEXT (ASCII, hexdumps and
// line-oriented listings/banners) or OCTET (raw bytes).
type Mode int

const (
	ModeText Mode = iota
	ModeOctet
)

// LineBufCap is the capacity of the per-transfer line buffer of the text
// write codec (FPGAWordsTextWriter); a line longer than this fails with
// ErrLineOverflow. The text read codecs build each line as its own slice
// and do not use it. The protocol requires at least 288 bytes (the widest
// possible listing line plus the widest hexdump line); 512 leaves
// headroom above that and equals the engine's block size.
const LineBufCap = 512

// Producer is a GET-side streaming codec. Produce fills up to len(out)
// bytes and returns how many it actually wrote. Returning fewer bytes
// than requested signals end-of-transfer; the caller must not invoke
// Produce again afterwards.
type Producer interface {
	Produce(out []byte) (n int)
}

// Consumer is a PUT-side streaming codec. Consume walks an entire packet
// chain (a transfer's network layer delivers one or more fragments per
// call) and returns how many bytes it accepted. A non-nil error is fatal
// to the transfer: the engine aborts without rolling back any hardware
// writes already performed — see the write-overflow error policy in the
// project's requirements.
type Consumer interface {
	Consume(chain [][]byte) (n int, err error)
}

// Transfer is the object an engine holds for the lifetime of one GET or
// PUT. It never blocks and is fully serializable across calls: nothing
// about it depends on goroutine-local stack state.
type Transfer struct {
	// Write is true for PUT, false for GET. Binary is true for OCTET,
	// false for TEXT. Both are fixed at open.
	Write  bool
	Binary bool

	Producer Producer
	Consumer Consumer
}

// Produce delegates to the bound Producer. It panics if called on a
// write transfer or one with no Producer bound — a resolver bug, not a
// runtime condition an engine needs to recover from.
func (t *Transfer) Produce(out []byte) int {
	return t.Producer.Produce(out)
}

// Consume delegates to the bound Consumer.
func (t *Transfer) Consume(chain [][]byte) (int, error) {
	return t.Consumer.Consume(chain)
}
