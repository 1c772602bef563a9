// Package store implements the shared in-memory record store: spec.md
// §3's "mapping from subdomain key to subdomain entry, plus the zone
// origin" and §4.D's public operations. It is the one piece of shared
// mutable state in the whole service (spec.md §5): the UDP responder
// holds it in read mode per resolution, the HTTP handler holds it in
// write mode only around a single IP-field assignment.
package store

import (
	"errors"
	"net/netip"
	"strings"
	"sync"
)

// ErrUnknownSubdomain is returned by SetIPv4/SetIPv6 when name does not
// resolve to a pre-registered subdomain key. The store never creates new
// keys at runtime (spec.md §3 Lifecycle, §4.D).
var ErrUnknownSubdomain = errors.New("store: unknown subdomain")

// Entry is spec.md §3's subdomain entry: an optional IPv4 address, an
// optional IPv6 address, and an authorization token. Token is set once at
// construction from configuration and never changes.
type Entry struct {
	IPv4  netip.Addr
	IPv6  netip.Addr
	Token string
}

// Store is the origin-scoped, fixed-keyset map described in spec.md §4.D.
// The zero value is not usable; construct with New.
type Store struct {
	mu      sync.RWMutex
	origin  string
	entries map[string]*Entry
}

// New constructs a Store for the given zone origin (e.g.
// "dyn.example.com") from a set of pre-registered subdomain keys (e.g.
// "test" for "test.dyn.example.com"). entries is owned by the returned
// Store; callers must not retain or mutate it afterwards.
func New(origin string, entries map[string]*Entry) *Store {
	if entries == nil {
		entries = make(map[string]*Entry)
	}
	return &Store{origin: strings.ToLower(origin), entries: entries}
}

// Origin returns the configured zone origin.
func (s *Store) Origin() string {
	return s.origin
}

// key strips the zone-origin suffix and its separating dot from name,
// per spec.md §3/§9: "the source's strip_suffix requires both the suffix
// and a trailing dot before it; preserve this." The origin itself (no
// separator) maps to the empty key. Matching is case-insensitive; name is
// expected to carry its trailing dot (as produced by internal/dnsmsg).
func (s *Store) key(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSuffix(name, "."))
	origin := strings.TrimSuffix(s.origin, ".")

	if n == origin {
		return "", true
	}

	suffix := "." + origin
	if !strings.HasSuffix(n, suffix) {
		return "", false
	}

	return n[:len(n)-len(suffix)], true
}

// Snapshot is a read-locked view sufficient to resolve one query; it is
// released by calling Release, which must happen before any serialization
// or socket I/O (spec.md §5: "lock scope must NOT include serialization
// or socket I/O").
type Snapshot struct {
	s *Store
}

// Snapshot acquires a shared (read) lock on the store and returns a view
// over it. Callers must call Release exactly once.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	return Snapshot{s: s}
}

// Release releases the read lock acquired by Snapshot.
func (sn Snapshot) Release() {
	sn.s.mu.RUnlock()
}

// Get implements spec.md §4.D's get(name): strips the zone-origin suffix;
// if name is not under the origin, returns (Entry{}, false); otherwise looks
// up the remaining key. Must be called between Snapshot and Release.
func (sn Snapshot) Get(name string) (Entry, bool) {
	key, ok := sn.s.key(name)
	if !ok {
		return Entry{}, false
	}

	e, ok := sn.s.entries[key]
	if !ok {
		return Entry{}, false
	}

	return *e, true
}

// SetIPv4 implements spec.md §4.D/§4.G: update the IPv4 field of an
// existing, pre-registered subdomain under a write lock. It never creates
// a new key (spec.md invariant I3) and preserves the entry's token.
func (s *Store) SetIPv4(name string, addr netip.Addr) error {
	return s.set(name, func(e *Entry) { e.IPv4 = addr })
}

// SetIPv6 is the IPv6 counterpart of SetIPv4.
func (s *Store) SetIPv6(name string, addr netip.Addr) error {
	return s.set(name, func(e *Entry) { e.IPv6 = addr })
}

func (s *Store) set(name string, mutate func(*Entry)) error {
	key, ok := s.key(name)
	if !ok {
		return ErrUnknownSubdomain
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return ErrUnknownSubdomain
	}

	mutate(e)
	return nil
}

// Token returns the authorization token registered for name, and whether
// name maps to a pre-registered subdomain at all. Used by the HTTP
// handler to check authorization before it knows whether to write.
func (s *Store) Token(name string) (string, bool) {
	key, ok := s.key(name)
	if !ok {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	return e.Token, true
}
