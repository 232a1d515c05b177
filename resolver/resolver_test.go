// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package resolver

import (
	"bytes"
	"errors"
	"testing"

	"github.com/redwire-labs/gwtftp/bus"
	"github.com/redwire-labs/gwtftp/catalog"
	"github.com/redwire-labs/gwtftp/transfer"
)

func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func testDeps(fpgaSize uint32) (Deps, *bus.FakeWord) {
	mem := bus.NewFakeWord(fpgaSize)
	copy(mem.Mem, seq(int(fpgaSize)))

	cat := catalog.Build([]catalog.Device{
		{Name: "A", Offset: 0x100, Length: 0x20, Type: 5, ReadOnly: false},
		{Name: "RO", Offset: 0x200, Length: 0x10, Type: 6, ReadOnly: true},
	})

	return Deps{
		Catalog: cat,
		FPGA:    bus.FPGA{Word: mem, Size: fpgaSize},
		CPU:     bus.CPU{Bytes: bus.NewFakeBytes(64)},
	}, mem
}

func drainProducer(t *testing.T, p transfer.Producer) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 5)
	for {
		n := p.Produce(buf)
		out = append(out, buf[:n]...)
		if n < len(buf) {
			break
		}
	}
	return out
}

func TestOpenUnknownDevice(t *testing.T) {
	deps, _ := testDeps(0x300)
	_, err := Open(deps, "/dev/unknown_name", transfer.ModeText, false)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestOpenPutReadOnlyDeviceFails(t *testing.T) {
	deps, _ := testDeps(0x300)
	_, err := Open(deps, "/dev/RO", transfer.ModeOctet, true)
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("err = %v, want ErrReadOnly", err)
	}
}

func TestOpenPutCPUFails(t *testing.T) {
	deps, _ := testDeps(0x300)
	_, err := Open(deps, "/cpu.0.4", transfer.ModeOctet, true)
	if err == nil {
		t.Fatal("expected error on PUT /cpu")
	}
}

func TestOpenFPGATextScenario(t *testing.T) {
	deps, _ := testDeps(64)
	tr, err := Open(deps, "/fpga.0.10", transfer.ModeText, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	got := string(drainProducer(t, tr.Producer))
	want := "00000000: 00010203 04050607 08090A0B 0C0D0E0F\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestOpenFPGAOctetScenario(t *testing.T) {
	deps, _ := testDeps(64)
	tr, err := Open(deps, "/fpga.0.10", transfer.ModeOctet, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	got := drainProducer(t, tr.Producer)
	want := seq(16)
	if !bytes.Equal(got, want) {
		t.Errorf("got %X, want %X", got, want)
	}
}

func TestOpenFPGAPutTextScenario(t *testing.T) {
	deps, mem := testDeps(256)
	tr, err := Open(deps, "/fpga.40", transfer.ModeText, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	body := []byte("label: DEADBEEF CAFEBABE\nmore: 12345678\n")
	if _, err := tr.Consume([][]byte{body}); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	fpga := bus.FPGA{Word: mem, Size: 256}
	if got := fpga.ReadWord(0x40); got != 0xDEADBEEF {
		t.Errorf("0x40 = %#x", got)
	}
	if got := fpga.ReadWord(0x44); got != 0xCAFEBABE {
		t.Errorf("0x44 = %#x", got)
	}
	if got := fpga.ReadWord(0x48); got != 0x12345678 {
		t.Errorf("0x48 = %#x", got)
	}
}

func TestOpenFPGAPutOctetDropsPartialWord(t *testing.T) {
	deps, mem := testDeps(64)
	tr, err := Open(deps, "/fpga.0", transfer.ModeOctet, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	payload := []byte{0x01, 0x02, 0x03, 0x04, 0xAA, 0xBB, 0xCC}
	n, err := tr.Consume([][]byte{payload})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if n != len(payload) {
		t.Errorf("consumed %d, want %d", n, len(payload))
	}

	fpga := bus.FPGA{Word: mem, Size: 64}
	if got := fpga.ReadWord(0); got != 0x01020304 {
		t.Errorf("word 0 = %#x", got)
	}
	// testDeps seeds memory with a byte sequence, so an unwritten word 1
	// still holds its original 04 05 06 07.
	if got := fpga.ReadWord(4); got != 0x04050607 {
		t.Errorf("word 1 = %#x, want 0x04050607 (partial word dropped)", got)
	}
}

func TestOpenDeviceBoundsEnforcement(t *testing.T) {
	deps, _ := testDeps(0x300)

	// device A has a 0x20-byte (8-word) length; OFF+LEN <= 8 must succeed.
	if _, err := Open(deps, "/dev/A.0.8", transfer.ModeOctet, false); err != nil {
		t.Errorf("A.0.8 should succeed: %v", err)
	}
	// OFF+LEN > 8 words must fail.
	if _, err := Open(deps, "/dev/A.0.9", transfer.ModeOctet, false); !errors.Is(err, ErrBounds) {
		t.Errorf("A.0.9 err = %v, want ErrBounds", err)
	}
}

func TestOpenHelp(t *testing.T) {
	deps, _ := testDeps(0x300)
	tr, err := Open(deps, "/help", transfer.ModeText, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := string(drainProducer(t, tr.Producer))
	if got != transfer.DefaultBanner {
		t.Errorf("got %d bytes, want default banner", len(got))
	}
}

func TestOpenTempAbsentByDefault(t *testing.T) {
	deps, _ := testDeps(0x300)
	_, err := Open(deps, "/temp", transfer.ModeText, false)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestOpenTempPresent(t *testing.T) {
	deps, _ := testDeps(0x300)
	deps.Temperature = func() (int32, bool) { return 42500, true }

	tr, err := Open(deps, "/temp", transfer.ModeText, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := string(drainProducer(t, tr.Producer))
	if got != "42500\n" {
		t.Errorf("got %q, want %q", got, "42500\n")
	}
}

func TestOpenBareDeviceName(t *testing.T) {
	deps, _ := testDeps(0x300)
	if _, err := Open(deps, "A", transfer.ModeOctet, false); err != nil {
		t.Errorf("bare name A should resolve as /dev/A: %v", err)
	}
}
