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

	"github.com/redwire-labs/gwtftp/catalog"
	"github.com/redwire-labs/gwtftp/hexcodec"
)

// ListingBinary is the GET /listdev OCTET producer: the catalog's raw wire
// bytes, streamed verbatim.
type ListingBinary struct {
	data []byte
	pos  int
}

// NewListingBinary returns a ListingBinary producer over cat's wire form.
func NewListingBinary(cat *catalog.Catalog) *ListingBinary {
	return &ListingBinary{data: cat.WireBytes()}
}

func (l *ListingBinary) Produce(out []byte) int {
	n := copy(out, l.data[l.pos:])
	l.pos += n
	return n
}

// ListingText is the GET /listdev TEXT producer. It renders one line per
// catalog entry as it is needed rather than building the whole listing up
// front, so an arbitrarily large catalog never costs more than one line's
// worth of memory beyond the transfer's own line buffer.
//
// lineIdx uses -1 as the "nothing buffered yet" sentinel for the very
// first call; afterwards lineIdx == len(lineBuf) means the current line
// is fully drained and the next Produce call must fetch another entry.
type ListingText struct {
	it      *catalog.Iterator
	lineBuf []byte
	lineIdx int
	done    bool
}

// NewListingText returns a ListingText producer walking cat from the start.
func NewListingText(cat *catalog.Catalog) *ListingText {
	return &ListingText{it: cat.Iterate(), lineIdx: -1}
}

func (l *ListingText) Produce(out []byte) int {
	produced := 0

	for produced < len(out) {
		if l.lineIdx < 0 || l.lineIdx >= len(l.lineBuf) {
			if !l.fetchLine() {
				return produced
			}
		}

		n := copy(out[produced:], l.lineBuf[l.lineIdx:])
		l.lineIdx += n
		produced += n
	}

	return produced
}

func (l *ListingText) fetchLine() bool {
	if l.done {
		return false
	}

	dev, ok, err := l.it.Next()
	if err != nil || !ok {
		l.done = true
		return false
	}

	mode := byte('3')
	if dev.ReadOnly {
		mode = '1'
	}

	l.lineBuf = []byte(fmt.Sprintf("%s\t%c\t%s\t%s\t%d\n",
		dev.Name, mode, hexcodec.FormatMinimal(dev.Offset), hexcodec.FormatMinimal(dev.Length), dev.Type))
	l.lineIdx = 0

	return true
}
