// https://github.com/redwire-labs/gwtftp
//
// Copyright (c) Redwire Labs
// https://redwire.dev
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago

// Package netstack wires a gvisor userspace network stack onto a USB
// Ethernet link, for bare-metal deployments with no kernel network stack
// underneath them. It hands back a net.PacketConn so package engine can
// drive it exactly like a hosted UDP socket.
package netstack

import (
	"fmt"
	"net"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/adapters/gonet"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/network/arp"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
	"gvisor.dev/gvisor/pkg/tcpip/transport/icmp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/tcp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"
	"gvisor.dev/gvisor/pkg/waiter"
)

// Config describes the link-layer addressing a Stack is built over. MTU
// defaults to 1500 and QueueDepth to 256 when zero.
type Config struct {
	HostMAC   string
	DeviceMAC string
	IP        string
	MTU       uint32
	QueueDepth int
}

// Stack is a running gvisor network stack bound to one NIC, with a
// channel.Endpoint that the caller's USB/Ethernet driver feeds inbound
// frames into and drains outbound frames from.
type Stack struct {
	stack *stack.Stack
	link  *channel.Endpoint
	addr  tcpip.Address
	nic   tcpip.NICID
}

const defaultNIC tcpip.NICID = 1

// New builds a Stack from cfg. It performs no I/O: the caller is
// responsible for pumping Ethernet frames between Link() and its own
// link-layer driver (e.g. a USB CDC-ECM gadget).
func New(cfg Config) (*Stack, error) {
	if cfg.MTU == 0 {
		cfg.MTU = 1500
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = 256
	}

	linkAddr, err := tcpip.ParseMACAddress(cfg.DeviceMAC)
	if err != nil {
		return nil, fmt.Errorf("netstack: device MAC: %w", err)
	}

	addr := tcpip.Address(net.ParseIP(cfg.IP).To4())
	if addr == "" {
		return nil, fmt.Errorf("netstack: invalid IP %q", cfg.IP)
	}

	s := stack.New(stack.Options{
		NetworkProtocols: []stack.NetworkProtocol{
			ipv4.NewProtocol(),
			arp.NewProtocol(),
		},
		TransportProtocols: []stack.TransportProtocol{
			tcp.NewProtocol(),
			udp.NewProtocol(),
			icmp.NewProtocol4(),
		},
	})

	link := channel.New(cfg.QueueDepth, cfg.MTU, linkAddr)

	if err := s.CreateNIC(defaultNIC, link); err != nil {
		return nil, fmt.Errorf("netstack: create NIC: %v", err)
	}
	if err := s.AddAddress(defaultNIC, arp.ProtocolNumber, arp.ProtocolAddress); err != nil {
		return nil, fmt.Errorf("netstack: add ARP address: %v", err)
	}
	if err := s.AddAddress(defaultNIC, ipv4.ProtocolNumber, addr); err != nil {
		return nil, fmt.Errorf("netstack: add IPv4 address: %v", err)
	}

	subnet, err := tcpip.NewSubnet("\x00\x00\x00\x00", "\x00\x00\x00\x00")
	if err != nil {
		return nil, fmt.Errorf("netstack: subnet: %v", err)
	}
	s.SetRouteTable([]tcpip.Route{{Destination: subnet, NIC: defaultNIC}})

	return &Stack{stack: s, link: link, addr: addr, nic: defaultNIC}, nil
}

// Link exposes the channel endpoint the caller's Ethernet driver must
// pump: inbound frames via InjectInbound, outbound frames via the
// endpoint's dispatch channel.
func (s *Stack) Link() *channel.Endpoint {
	return s.link
}

// ListenUDP binds a gonet.PacketConn on port, suitable for
// engine.Server.Serve.
func (s *Stack) ListenUDP(port uint16) (net.PacketConn, error) {
	fullAddr := tcpip.FullAddress{Addr: s.addr, Port: port, NIC: s.nic}

	conn, err := gonet.DialUDP(s.stack, &fullAddr, nil, ipv4.ProtocolNumber)
	if err != nil {
		return nil, fmt.Errorf("netstack: listen udp: %w", err)
	}
	return conn, nil
}

// ListenICMP binds an ICMP echo endpoint, so the board answers pings
// alongside the application protocol and stays reachable for basic
// connectivity checks.
func (s *Stack) ListenICMP() error {
	var wq waiter.Queue

	fullAddr := tcpip.FullAddress{Addr: s.addr, NIC: s.nic}
	ep, err := s.stack.NewEndpoint(icmp.ProtocolNumber4, ipv4.ProtocolNumber, &wq)
	if err != nil {
		return fmt.Errorf("netstack: icmp endpoint: %w", err)
	}
	return ep.Bind(fullAddr)
}
