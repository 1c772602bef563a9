// Package korrelate derives short, non-reversible correlation IDs for log
// lines about a single DNS query, so the decode/resolve/encode/send
// sequence for one query can be grepped together without ever printing a
// client's raw address into the logs. Re-homed from the lineage's
// DNS-Cookie implementation (internal/cookie/cookie.go), whose
// siphash-keyed-hash pattern fits this role exactly even though DNS
// Cookies themselves (EDNS(0)) are out of this service's scope; the
// process-start key generation follows the lineage's
// internal/random/secure.go crypto/rand idiom.
package korrelate

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/netip"

	"github.com/dchest/siphash"
)

// Correlator derives correlation IDs using a per-process random key, so
// IDs cannot be correlated across process restarts or guessed externally.
type Correlator struct {
	k0, k1 uint64
}

// New generates a fresh random siphash key from crypto/rand.
func New() (*Correlator, error) {
	var key [16]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("korrelate: generate key: %w", err)
	}

	return &Correlator{
		k0: beUint64(key[0:8]),
		k1: beUint64(key[8:16]),
	}, nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// ID derives a short correlation tag from a query name and the client
// address's network prefix (never the full address, to keep the ID from
// reversing to an individual client).
func (c *Correlator) ID(qname string, client netip.Addr) string {
	prefixBits := 24
	if client.Is6() {
		prefixBits = 56
	}

	prefix, err := client.Prefix(prefixBits)
	if err != nil {
		prefix = netip.PrefixFrom(client, client.BitLen())
	}

	data := append([]byte(qname), prefix.String()...)
	sum := siphash.Hash(c.k0, c.k1, data)

	var b [4]byte
	b[0] = byte(sum >> 24)
	b[1] = byte(sum >> 16)
	b[2] = byte(sum >> 8)
	b[3] = byte(sum)

	return hex.EncodeToString(b[:])
}
