// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package engine

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/redwire-labs/gwtftp/bus"
	"github.com/redwire-labs/gwtftp/catalog"
	"github.com/redwire-labs/gwtftp/resolver"
	"github.com/redwire-labs/gwtftp/transfer"
)

func testServer(t *testing.T) (addr string, cancel func()) {
	t.Helper()

	deps := resolver.Deps{
		Catalog: catalog.Build(nil),
		FPGA:    bus.FPGA{Word: bus.NewFakeWord(64), Size: 64},
		CPU:     bus.CPU{Bytes: bus.NewFakeBytes(64)},
	}

	srv := NewServer(deps)
	srv.Timeout = 200 * time.Millisecond
	srv.RetryLimit = 3

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}

	ctx, cancelFn := context.WithCancel(context.Background())

	go func() {
		buf := make([]byte, 2048)
		for {
			n, raddr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if !srv.allow(raddr) {
				continue
			}
			pkt := append([]byte(nil), buf[:n]...)
			go srv.handleRequest(pkt, raddr)
		}
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return conn.LocalAddr().String(), cancelFn
}

func TestEndToEndGetHelp(t *testing.T) {
	addr, cancel := testServer(t)
	defer cancel()

	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		t.Fatalf("ResolveUDPAddr: %v", err)
	}

	client, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer client.Close()

	req := append([]byte{0, 1}, []byte("/help\x00octet\x00")...)
	if _, err := client.WriteTo(req, raddr); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	var full []byte
	block := uint16(1)
	buf := make([]byte, 2048)

	for {
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, from, err := client.ReadFrom(buf)
		if err != nil {
			t.Fatalf("ReadFrom: %v", err)
		}

		gotBlock, payload, err := decodeData(buf[:n])
		if err != nil {
			t.Fatalf("decodeData: %v", err)
		}
		if gotBlock != block {
			t.Fatalf("block = %d, want %d", gotBlock, block)
		}

		full = append(full, payload...)

		ack := encodeAck(block)
		if _, err := client.WriteTo(ack, from); err != nil {
			t.Fatalf("WriteTo ack: %v", err)
		}

		if len(payload) < blockSize {
			break
		}
		block++
	}

	if string(full) != transfer.DefaultBanner {
		t.Errorf("got %d bytes, want %d bytes of default banner", len(full), len(transfer.DefaultBanner))
	}
}

func TestEndToEndPutFpga(t *testing.T) {
	addr, cancel := testServer(t)
	defer cancel()

	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		t.Fatalf("ResolveUDPAddr: %v", err)
	}

	client, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer client.Close()

	req := append([]byte{0, 2}, []byte("/fpga.0\x00octet\x00")...)
	if _, err := client.WriteTo(req, raddr); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	buf := make([]byte, 4)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, from, err := client.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom ack0: %v", err)
	}
	if ackBlock, err := decodeAck(buf[:n]); err != nil || ackBlock != 0 {
		t.Fatalf("ack0 = %v, %v", ackBlock, err)
	}

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := encodeData(1, payload)
	if _, err := client.WriteTo(data, from); err != nil {
		t.Fatalf("WriteTo data: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err = client.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom ack1: %v", err)
	}
	if ackBlock, err := decodeAck(buf[:n]); err != nil || ackBlock != 1 {
		t.Fatalf("ack1 = %v, %v", ackBlock, err)
	}
}
