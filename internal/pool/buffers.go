// Package pool provides sync.Pool-backed byte buffers for the UDP
// responder, so a burst of datagrams does not force a fresh allocation
// per packet. Adapted from the lineage's message/buffer pool package: the
// dns.Msg-specific pool is gone (there is no such type in this codebase),
// leaving the byte-buffer pool, sized to spec.md §6's 512-byte datagram
// ceiling — this server neither produces nor expects anything larger.
package pool

import "sync"

// DatagramSize is the one buffer size this service needs.
const DatagramSize = 512

var datagramPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DatagramSize)
		return &buf
	},
}

// GetDatagram returns a DatagramSize-length buffer for reading one UDP
// datagram into.
func GetDatagram() []byte {
	bufPtr := datagramPool.Get().(*[]byte)
	return (*bufPtr)[:DatagramSize]
}

// PutDatagram returns buf to the pool. Buffers with an unexpected
// capacity are dropped rather than pooled.
func PutDatagram(buf []byte) {
	if cap(buf) != DatagramSize {
		return
	}
	buf = buf[:DatagramSize]
	datagramPool.Put(&buf)
}

// ResetPool discards the current pool, releasing everything it holds.
// Useful under memory pressure or between test runs.
func ResetPool() {
	datagramPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, DatagramSize)
			return &buf
		},
	}
}
