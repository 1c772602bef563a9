// Package codec implements spec.md §4.C: the stateful frame codec sitting
// between the UDP socket and the stateless wire parser (internal/dnsmsg).
// It is modeled on koppeln's original tokio_util::codec::Decoder impl
// (_examples/original_source/src/dns/codec.rs), translated from a
// BytesMut-owning trait method into a Go type that owns its own buffer:
// bytes accumulate across calls to Decode until a full message (or a
// decode error) is available, then the codec resets itself and is ready
// for the next message.
//
// A single UDP datagram is always a complete message in production use,
// so in practice Decode resolves on its very first call per datagram. The
// multi-call buffering exists for the same reason it exists in the
// original: it is the part of the component that has to be testable in
// isolation, byte by byte, independent of however the socket happens to
// hand bytes over.
package codec

import (
	"errors"

	"github.com/kunerd/koppeln/internal/dnsmsg"
)

// State names a position in spec.md §4.C's state machine.
type State int

const (
	// StateEmpty is the codec's resting state: no bytes buffered.
	StateEmpty State = iota
	// StatePartialHeader means fewer than 12 bytes are buffered.
	StatePartialHeader
	// StatePartialBody means the header is buffered but the question body
	// is not, and the buffer is awaiting more bytes.
	StatePartialBody
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePartialHeader:
		return "partial-header"
	case StatePartialBody:
		return "partial-body"
	default:
		return "unknown"
	}
}

const headerSize = 12

// Codec accumulates bytes across Decode calls until a full dnsmsg.Request
// can be produced or the bytes are rejected as malformed. It is not safe
// for concurrent use: spec.md §4.F drives exactly one Codec from its
// single-threaded receive loop, handing decoded requests off to the
// worker pool only after framing is done.
type Codec struct {
	buf   []byte
	state State
}

// New returns a Codec in StateEmpty.
func New() *Codec {
	return &Codec{state: StateEmpty}
}

// State reports the codec's current position in the state machine.
func (c *Codec) State() State {
	return c.state
}

// Decode appends chunk to the codec's buffered bytes and attempts to
// extract one complete request, implementing spec.md §4.C's contract:
//
//   - (Request{}, false, nil): not enough data yet. The codec keeps the
//     bytes buffered and waits for a later Decode call to supply the
//     rest.
//   - (req, true, nil): a StandardQuery or Unsupported request was fully
//     decoded. Per spec.md §4.C ("DNS over UDP is one message per
//     datagram"), any bytes beyond the ones the request needed are
//     discarded along with it, and the codec returns to StateEmpty.
//   - (Request{}, false, err): the buffered bytes are malformed. The
//     buffer is cleared so the codec can recover, and it returns to
//     StateEmpty.
func (c *Codec) Decode(chunk []byte) (dnsmsg.Request, bool, error) {
	c.buf = append(c.buf, chunk...)

	if len(c.buf) == 0 {
		c.state = StateEmpty
		return dnsmsg.Request{}, false, nil
	}

	if len(c.buf) < headerSize {
		c.state = StatePartialHeader
		return dnsmsg.Request{}, false, nil
	}

	c.state = StatePartialBody

	req, err := dnsmsg.Parse(c.buf)
	if err == nil {
		c.reset()
		return req, true, nil
	}

	if errors.Is(err, dnsmsg.ErrIncomplete) {
		return dnsmsg.Request{}, false, nil
	}

	c.reset()
	return dnsmsg.Request{}, false, err
}

// reset discards any buffered bytes and returns the codec to StateEmpty.
func (c *Codec) reset() {
	c.buf = nil
	c.state = StateEmpty
}
