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
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/redwire-labs/gwtftp/resolver"
	"github.com/redwire-labs/gwtftp/transfer"
)

// Server is the demo engine: a UDP listener that decodes the initial
// RRQ/WRQ on a well-known port, hands each accepted transfer off to its
// own ephemeral socket (mirroring how real TFTP servers behave), and
// drives block-numbered DATA/ACK exchange against whatever Transfer the
// resolver bound.
type Server struct {
	Deps resolver.Deps

	// RetryLimit is how many times a DATA or ACK is retransmitted before
	// the engine gives up on a transfer. Timeout is how long it waits
	// for a reply before retransmitting.
	RetryLimit int
	Timeout    time.Duration

	// RatePerSecond and RateBurst configure the per-remote-address
	// request throttle applied to incoming RRQ/WRQ packets; requests
	// beyond the burst are silently dropped rather than queued, so a
	// noisy client loses packets instead of starving others.
	RatePerSecond float64
	RateBurst     int

	Logger *log.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer returns a Server with sane defaults over deps.
func NewServer(deps resolver.Deps) *Server {
	return &Server{
		Deps:          deps,
		RetryLimit:    5,
		Timeout:       2 * time.Second,
		RatePerSecond: 50,
		RateBurst:     20,
		Logger:        log.Default(),
		limiters:      make(map[string]*rate.Limiter),
	}
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

// allow reports whether a packet from addr may proceed, applying a
// per-address token bucket. A throttled request is dropped with no
// response, exactly like an unreachable server from the client's point
// of view; it never mutates transfer state since no transfer is opened
// yet.
func (s *Server) allow(addr net.Addr) bool {
	key := addr.String()

	s.mu.Lock()
	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.RatePerSecond), s.RateBurst)
		s.limiters[key] = lim
	}
	s.mu.Unlock()

	return lim.Allow()
}

// ListenAndServe accepts RRQ/WRQ packets on a UDP socket bound to addr
// until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	return s.Serve(ctx, conn)
}

// Serve accepts RRQ/WRQ packets on an already-bound PacketConn until ctx
// is canceled. This is the entry point bare-metal deployments use: a
// gvisor-backed gonet.PacketConn from package netstack satisfies
// net.PacketConn just as well as a hosted UDP socket.
func (s *Server) Serve(ctx context.Context, conn net.PacketConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 2048)
	for {
		n, raddr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		if !s.allow(raddr) {
			continue
		}

		pkt := append([]byte(nil), buf[:n]...)
		go s.handleRequest(pkt, raddr)
	}
}

func (s *Server) handleRequest(pkt []byte, raddr net.Addr) {
	req, err := parseRequest(pkt)
	if err != nil {
		s.logf("engine: malformed request from %s: %v", raddr, err)
		return
	}

	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		s.logf("engine: ephemeral socket: %v", err)
		return
	}
	defer conn.Close()

	tr, err := resolver.Open(s.Deps, req.filename, req.mode, req.write)
	if err != nil {
		s.logf("engine: open %q failed: %v", req.filename, err)
		conn.WriteTo(encodeError(errFileNotFound, errString(err)), raddr)
		return
	}

	if req.write {
		s.serveWrite(conn, raddr, tr)
	} else {
		s.serveRead(conn, raddr, tr)
	}
}

// serveRead drives a GET: produce a block, send it, wait for its ACK,
// retransmitting on timeout, until a short block ends the transfer.
func (s *Server) serveRead(conn net.PacketConn, raddr net.Addr, tr *transfer.Transfer) {
	block := uint16(1)

	for {
		payload := make([]byte, blockSize)
		n := tr.Produce(payload)
		payload = payload[:n]
		pkt := encodeData(block, payload)

		acked := false
		respBuf := make([]byte, 4)

		for attempt := 0; attempt <= s.RetryLimit && !acked; attempt++ {
			if _, err := conn.WriteTo(pkt, raddr); err != nil {
				s.logf("engine: write data: %v", err)
				return
			}

			conn.SetReadDeadline(time.Now().Add(s.Timeout))
			rn, from, err := conn.ReadFrom(respBuf)
			if err != nil {
				continue // timeout: retransmit
			}
			if !sameAddr(from, raddr) {
				attempt--
				continue
			}

			gotBlock, derr := decodeAck(respBuf[:rn])
			if derr == nil && gotBlock == block {
				acked = true
			}
		}

		if !acked {
			s.logf("engine: GET to %s abandoned after %d retries", raddr, s.RetryLimit)
			return
		}

		if n < blockSize {
			return
		}
		block++
	}
}

// serveWrite drives a PUT: ACK block 0 to start the exchange, then
// consume each DATA block and ACK it in turn, retransmitting the last
// ACK on timeout, until a short block ends the transfer.
func (s *Server) serveWrite(conn net.PacketConn, raddr net.Addr, tr *transfer.Transfer) {
	block := uint16(0)

	for {
		ackPkt := encodeAck(block)
		dataBuf := make([]byte, 4+blockSize)

		gotData := false
		var payload []byte

		for attempt := 0; attempt <= s.RetryLimit && !gotData; attempt++ {
			if _, err := conn.WriteTo(ackPkt, raddr); err != nil {
				s.logf("engine: write ack: %v", err)
				return
			}

			conn.SetReadDeadline(time.Now().Add(s.Timeout))
			n, from, err := conn.ReadFrom(dataBuf)
			if err != nil {
				continue // timeout: retransmit ack
			}
			if !sameAddr(from, raddr) {
				attempt--
				continue
			}

			gotBlock, p, derr := decodeData(dataBuf[:n])
			if derr != nil {
				attempt--
				continue
			}
			if gotBlock != block+1 {
				// stale retransmission of a block we've already
				// accepted: re-ack and keep waiting for the real next
				// block without counting it against the retry budget.
				attempt--
				continue
			}

			payload = append([]byte(nil), p...)
			gotData = true
		}

		if !gotData {
			s.logf("engine: PUT from %s abandoned after %d retries", raddr, s.RetryLimit)
			return
		}

		if _, err := tr.Consume([][]byte{payload}); err != nil {
			s.logf("engine: write rejected from %s: %v", raddr, err)
			conn.WriteTo(encodeError(errAccessViolation, errString(err)), raddr)
			return
		}

		block++

		if len(payload) < blockSize {
			conn.WriteTo(encodeAck(block), raddr)
			return
		}
	}
}

func sameAddr(a, b net.Addr) bool {
	ua, ok1 := a.(*net.UDPAddr)
	ub, ok2 := b.(*net.UDPAddr)
	if ok1 && ok2 {
		return ua.IP.Equal(ub.IP) && ua.Port == ub.Port
	}
	return a.String() == b.String()
}
