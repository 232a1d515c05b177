// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build linux

// Command gwtftpd runs the demo gateware file-transfer daemon: it wires
// the core resolver and codecs to a real UDP socket via package engine.
// Its -bus=mmap path assumes a Linux /dev/mem-style host, so the
// binary itself is restricted to GOOS=linux; the rest of the module
// (and package netstack's bare-metal build) is unaffected.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	// Registers /debug/charts/* on http.DefaultServeMux for live
	// runtime-metrics graphs; inert unless -debug starts a listener on
	// DefaultServeMux.
	_ "github.com/mkevac/debugcharts"

	"github.com/redwire-labs/gwtftp/bus"
	"github.com/redwire-labs/gwtftp/catalog"
	"github.com/redwire-labs/gwtftp/engine"
	"github.com/redwire-labs/gwtftp/resolver"
)

func main() {
	listen := flag.String("listen", ":6969", "UDP address to serve the file-transfer protocol on")
	debugAddr := flag.String("debug", "", "if set, address to serve /debug/charts and /debug/pprof on")
	busKind := flag.String("bus", "fake", "memory backend: fake or mmap")
	mmapPath := flag.String("mmap-path", "/dev/mem", "device file to mmap when -bus=mmap")
	mmapOffset := flag.Int64("mmap-offset", 0, "file offset to mmap when -bus=mmap")
	fpgaSize := flag.Uint64("fpga-size", 1<<16, "FPGA address space size in bytes")
	cpuSize := flag.Uint64("cpu-size", 1<<20, "CPU address space size in bytes")
	flag.Parse()

	deps, closeBus, err := buildDeps(*busKind, *mmapPath, *mmapOffset, uint32(*fpgaSize), uint32(*cpuSize))
	if err != nil {
		log.Fatalf("gwtftpd: %v", err)
	}
	if closeBus != nil {
		defer closeBus()
	}

	if *debugAddr != "" {
		go func() {
			log.Printf("gwtftpd: debug endpoint on %s", *debugAddr)
			if err := http.ListenAndServe(*debugAddr, nil); err != nil {
				log.Printf("gwtftpd: debug endpoint: %v", err)
			}
		}()
	}

	srv := engine.NewServer(deps)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("gwtftpd: listening on %s (bus=%s)", *listen, *busKind)
	if err := srv.ListenAndServe(ctx, *listen); err != nil {
		log.Fatalf("gwtftpd: %v", err)
	}
}

// buildDeps assembles resolver.Deps from the selected bus backend. The
// fake backend needs no hardware and seeds a small demo catalog so the
// daemon is immediately useful against nothing but itself; the mmap
// backend is the hosted-Linux deployment path.
func buildDeps(busKind, mmapPath string, mmapOffset int64, fpgaSize, cpuSize uint32) (resolver.Deps, func(), error) {
	switch busKind {
	case "fake":
		fpga := bus.NewFakeWord(fpgaSize)
		cpu := bus.NewFakeBytes(cpuSize)

		cat := catalog.Build([]catalog.Device{
			{Name: "leds", Offset: 0x000, Length: 0x10, Type: 1, ReadOnly: false},
			{Name: "version", Offset: 0x010, Length: 0x04, Type: 2, ReadOnly: true},
		})

		return resolver.Deps{
			Catalog: cat,
			FPGA:    bus.FPGA{Word: fpga, Size: fpgaSize},
			CPU:     bus.CPU{Bytes: cpu},
		}, nil, nil

	case "mmap":
		fpga, err := bus.OpenMMapWord(mmapPath, mmapOffset, fpgaSize, 0)
		if err != nil {
			return resolver.Deps{}, nil, fmt.Errorf("mmap fpga: %w", err)
		}
		cpu, err := bus.OpenMMapBytes(mmapPath, mmapOffset+int64(fpgaSize), cpuSize, 0)
		if err != nil {
			fpga.Close()
			return resolver.Deps{}, nil, fmt.Errorf("mmap cpu: %w", err)
		}

		cat := catalog.Build(nil)

		closeFn := func() {
			fpga.Close()
			cpu.Close()
		}

		return resolver.Deps{
			Catalog: cat,
			FPGA:    bus.FPGA{Word: fpga, Size: fpgaSize},
			CPU:     bus.CPU{Bytes: cpu},
		}, closeFn, nil

	default:
		return resolver.Deps{}, nil, fmt.Errorf("unknown -bus %q (want fake or mmap)", busKind)
	}
}
