// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package transfer

// DefaultBanner is served by GET /help when no deployment-specific text is
// supplied. It is plain ASCII and is streamed verbatim in either mode.
const DefaultBanner = `gwtftp - gateware file transfer

paths:
  /help                 this text
  /listdev              device catalog listing
  /temp                 board temperature, if available
  /dev/NAME[.OFF[.LEN]] named device, OFF and LEN in hex words
  /fpga.OFF[.LEN]       raw FPGA register space, OFF/LEN in hex bytes
  /cpu.ADDR[.LEN]       raw CPU memory, read-only

modes:
  octet   raw bytes
  netascii/text   hex text, one line per chunk where applicable
`

// Help is the GET /help producer: it streams a fixed ASCII banner.
type Help struct {
	banner []byte
	pos    int
}

// NewHelp returns a Help producer over banner.
func NewHelp(banner string) *Help {
	return &Help{banner: []byte(banner)}
}

func (h *Help) Produce(out []byte) int {
	n := copy(out, h.banner[h.pos:])
	h.pos += n
	return n
}
