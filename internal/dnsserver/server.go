// Package dnsserver implements spec.md §4.F: bind a UDP socket, drive the
// wire codec and resolver over each datagram, and send the reply to the
// datagram's origin. Grounded on the lineage's internal/server/server.go
// for the Config/New/Start/Stop shape and atomic stat counters, and on
// koppeln's own src/dns/server.rs for the decode-resolve-encode-send
// sequence itself.
package dnsserver

import (
	"context"
	"errors"
	"log"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kunerd/koppeln/internal/codec"
	"github.com/kunerd/koppeln/internal/dnsmsg"
	"github.com/kunerd/koppeln/internal/korrelate"
	"github.com/kunerd/koppeln/internal/metrics"
	"github.com/kunerd/koppeln/internal/pool"
	"github.com/kunerd/koppeln/internal/resolver"
	"github.com/kunerd/koppeln/internal/rrl"
	"github.com/kunerd/koppeln/internal/store"
	"github.com/kunerd/koppeln/internal/worker"
)

// Config holds the DNS server loop's configuration.
type Config struct {
	// Addr is the UDP listen address, e.g. "127.0.0.1:53".
	Addr string

	// SOA is the immutable zone authority data answered for SOA queries.
	SOA dnsmsg.SOA

	// Workers bounds the goroutine pool handling decoded datagrams.
	// Zero selects worker.Config's own default.
	Workers int

	// RRL configures response rate limiting. The zero value disables it
	// (Config.RRL.Enabled defaults to false unless set explicitly).
	RRL rrl.Config
}

// Server binds one UDP socket and answers queries against a shared store.
type Server struct {
	cfg   Config
	store *store.Store
	conn  *net.UDPConn
	pool  *worker.Pool
	rrl   *rrl.Limiter
	korr  *korrelate.Correlator
	codec *codec.Codec

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	queries   atomic.Uint64
	answers   atomic.Uint64
	errors    atomic.Uint64
	nxdomains atomic.Uint64
}

// New constructs a Server bound to s, the shared record store. It does not
// open the socket; call Start for that.
func New(cfg Config, s *store.Store) (*Server, error) {
	korr, err := korrelate.New()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:    cfg,
		store:  s,
		pool:   worker.NewPool(worker.Config{Workers: cfg.Workers}),
		rrl:    rrl.NewLimiter(cfg.RRL),
		korr:   korr,
		codec:  codec.New(),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start binds the UDP socket and begins serving. It returns once the
// socket is bound; the receive loop runs in a background goroutine.
func (s *Server) Start() error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.Addr)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	s.conn = conn

	s.wg.Add(1)
	go s.loop()

	return nil
}

// Stop closes the socket and waits for in-flight datagrams to finish
// processing.
func (s *Server) Stop() {
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
	}
	s.wg.Wait()
	s.pool.Close()
	s.rrl.Close()
}

// Stats is a snapshot of the server's atomic counters, for periodic
// logging by cmd/koppelnd.
type Stats struct {
	Queries   uint64
	Answers   uint64
	Errors    uint64
	NXDomains uint64
}

func (s *Server) Stats() Stats {
	return Stats{
		Queries:   s.queries.Load(),
		Answers:   s.answers.Load(),
		Errors:    s.errors.Load(),
		NXDomains: s.nxdomains.Load(),
	}
}

func (s *Server) loop() {
	defer s.wg.Done()

	for {
		buf := pool.GetDatagram()

		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			pool.PutDatagram(buf)
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return
			}
			log.Printf("dnsserver: read error: %v", err)
			s.errors.Add(1)
			continue
		}

		datagram := append([]byte(nil), buf[:n]...)
		pool.PutDatagram(buf)

		// Framing happens here, in the single-threaded read loop, not in
		// the worker pool: spec.md §4.C's codec is stateful and not safe
		// for concurrent use, so exactly one goroutine ever calls Decode.
		req, ok, err := s.codec.Decode(datagram)
		if err != nil {
			log.Printf("dnsserver: decode error from %s: %v", addr, err)
			s.errors.Add(1)
			continue
		}
		if !ok {
			// Incomplete: a datagram shorter than its own header or
			// question. Each UDP datagram is one whole message, so the
			// rest never arrives; drop it and start a fresh codec so its
			// bytes are not prepended to the next client's datagram.
			s.codec = codec.New()
			continue
		}

		// SubmitAsync queues the job and returns without waiting for it,
		// so this single read loop never serializes datagrams behind one
		// another's handling.
		submitErr := s.pool.SubmitAsync(s.ctx, worker.JobFunc(func(ctx context.Context) error {
			s.handleDatagram(req, addr)
			return nil
		}))
		if submitErr != nil {
			// Queue full or pool closed: drop the datagram. The client
			// will retry, matching spec.md §7's "store contention... on
			// the DNS side, logged and the datagram is effectively
			// dropped" policy extended to worker-pool backpressure.
			log.Printf("dnsserver: dropping datagram from %s: %v", addr, submitErr)
			s.errors.Add(1)
		}
	}
}

func (s *Server) handleDatagram(req dnsmsg.Request, addr *net.UDPAddr) {
	s.queries.Add(1)

	clientAddr, ok := netip.AddrFromSlice(addr.IP)
	if !ok {
		clientAddr = netip.IPv4Unspecified()
	}
	clientAddr = clientAddr.Unmap()

	qname := ""
	if req.IsStandard() {
		qname = req.Question.Name
	}

	start := time.Now()
	snapshot := s.store.Snapshot()
	resp := resolver.Resolve(s.cfg.SOA, snapshot, req)
	snapshot.Release()

	corrID := s.korr.ID(qname, clientAddr)
	metrics.DNSResolveDuration.WithLabelValues(rcodeLabel(responseRcode(resp))).Observe(time.Since(start).Seconds())

	if action := s.checkRateLimit(clientAddr, qname, resp); action == rrl.ActionDrop {
		metrics.DNSRateLimited.WithLabelValues("drop").Inc()
		return
	} else if action == rrl.ActionSlip {
		metrics.DNSRateLimited.WithLabelValues("slip").Inc()
		resp.Slip = true
	}

	s.recordOutcome(resp)

	if _, err := s.conn.WriteToUDP(resp.Encode(), addr); err != nil {
		log.Printf("dnsserver: write error to %s (id=%s): %v", addr, corrID, err)
		s.errors.Add(1)
	}
}

// checkRateLimit mirrors the lineage's shouldRateLimit: the response is
// categorized by its own rcode/answer count after resolution, not guessed
// from the query beforehand.
func (s *Server) checkRateLimit(addr netip.Addr, qname string, resp dnsmsg.Response) rrl.Action {
	if s.rrl == nil {
		return rrl.ActionAllow
	}

	answers := 0
	if resp.IsStandard() {
		answers = len(resp.Answer)
	}

	category := rrl.CategorizeResponse(int(responseRcode(resp)), answers)
	return s.rrl.Check(net.IP(addr.AsSlice()), qname, 0, category)
}

func (s *Server) recordOutcome(resp dnsmsg.Response) {
	rcode := responseRcode(resp)

	metrics.DNSQueries.WithLabelValues(rcodeLabel(rcode)).Inc()
	s.answers.Add(1)
	if rcode == dnsmsg.RcodeNameError {
		s.nxdomains.Add(1)
	}
}

// responseRcode extracts the rcode from either response shape, for the
// latency histogram's label (spec.md §9: NotImplemented replies still carry
// a meaningful rcode, namely the one NewNotImplementedResponse sets).
func responseRcode(resp dnsmsg.Response) dnsmsg.Rcode {
	if resp.IsStandard() {
		return resp.Rcode
	}
	return resp.Raw.Rcode
}

func rcodeLabel(r dnsmsg.Rcode) string {
	switch r {
	case dnsmsg.RcodeNoError:
		return "noerror"
	case dnsmsg.RcodeFormatError:
		return "formerr"
	case dnsmsg.RcodeServerFailure:
		return "servfail"
	case dnsmsg.RcodeNameError:
		return "nxdomain"
	case dnsmsg.RcodeNotImplemented:
		return "notimp"
	case dnsmsg.RcodeRefused:
		return "refused"
	default:
		return "other"
	}
}
