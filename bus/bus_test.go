// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package bus

import "testing"

func TestFPGAReadWriteRoundTrip(t *testing.T) {
	f := FPGA{Word: NewFakeWord(16), Size: 16}

	f.WriteWord(4, 0xCAFEBABE)
	if got := f.ReadWord(4); got != 0xCAFEBABE {
		t.Errorf("ReadWord(4) = %#x, want 0xCAFEBABE", got)
	}
}

func TestFPGAUnalignedReadPanics(t *testing.T) {
	f := FPGA{Word: NewFakeWord(16), Size: 16}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unaligned read")
		}
	}()
	f.ReadWord(1)
}

func TestFPGAUnalignedWritePanics(t *testing.T) {
	f := FPGA{Word: NewFakeWord(16), Size: 16}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unaligned write")
		}
	}()
	f.WriteWord(2, 0)
}

func TestFakeWordSwapRoundTrip(t *testing.T) {
	// a byte-swapping bus still round-trips through ReadWord/WriteWord;
	// the swap only changes what's observable by peeking at Mem
	// directly, never the logical word seen by a caller.
	w := NewFakeWord(8)
	w.Swap = func(v uint32) uint32 {
		return v<<24 | (v&0xff00)<<8 | (v>>8)&0xff00 | v>>24
	}

	f := FPGA{Word: w, Size: 8}
	f.WriteWord(0, 0x01020304)

	if got := f.ReadWord(0); got != 0x01020304 {
		t.Errorf("ReadWord(0) = %#x, want 0x01020304", got)
	}
}

func TestCPUReadAt(t *testing.T) {
	mem := NewFakeBytes(8)
	for i := range mem.Mem {
		mem.Mem[i] = byte(0x10 + i)
	}
	cpu := CPU{Bytes: mem}

	buf := make([]byte, 4)
	cpu.ReadAt(2, buf)

	want := []byte{0x12, 0x13, 0x14, 0x15}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("buf[%d] = %#x, want %#x", i, buf[i], want[i])
		}
	}
}

func TestCPUReadAtWraps(t *testing.T) {
	mem := NewFakeBytes(4)
	for i := range mem.Mem {
		mem.Mem[i] = byte(i)
	}
	cpu := CPU{Bytes: mem}

	buf := make([]byte, 6)
	cpu.ReadAt(2, buf)

	want := []byte{2, 3, 0, 1, 2, 3}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("buf[%d] = %#x, want %#x", i, buf[i], want[i])
		}
	}
}
