// Package resolver implements the pure resolution function spec.md
// §4.E/§9 specifies: (soa, store_snapshot, query) -> response. It performs
// no I/O and acquires no locks itself; the caller (internal/dnsserver)
// owns the store.Snapshot lifetime around the call.
package resolver

import (
	"github.com/kunerd/koppeln/internal/dnsmsg"
	"github.com/kunerd/koppeln/internal/store"
)

// Resolve implements spec.md §4.E's five-step algorithm exactly, including
// the documented edge case: a subdomain that exists but has no address set
// for the requested family yields NameError, not NoError with an empty
// answer.
func Resolve(soa dnsmsg.SOA, snapshot store.Snapshot, req dnsmsg.Request) dnsmsg.Response {
	if !req.IsStandard() {
		return dnsmsg.NewNotImplementedResponse(req.Raw)
	}

	q := req.Question
	// A qdcount=0 StandardQuery (internal/dnsmsg parser.go's standardQuery
	// path for that case) carries no real question to echo back: invariant
	// I4 requires qd_count=0 in that case, not a fabricated qd_count=1.
	hasQuestion := req.Header.QDCount > 0
	var answer []dnsmsg.ResourceRecord

	switch q.Type {
	case dnsmsg.QTypeA:
		if e, ok := snapshot.Get(q.Name); ok && e.IPv4.IsValid() {
			answer = append(answer, dnsmsg.NewARecord(q.Name, e.IPv4))
		}
	case dnsmsg.QTypeAAAA:
		if e, ok := snapshot.Get(q.Name); ok && e.IPv6.IsValid() {
			answer = append(answer, dnsmsg.NewAAAARecord(q.Name, e.IPv6))
		}
	case dnsmsg.QTypeSOA:
		if sameName(q.Name, soa.MName) {
			answer = append(answer, dnsmsg.NewSOARecord(q.Name, soa))
		}
	default:
		// Unknown/unsupported qtype: spec.md §4.E step 2 — treat as "no
		// such records" (NoError, empty answer), not NotImplemented.
		return dnsmsg.NewStandardResponse(req.Header, q, hasQuestion, dnsmsg.RcodeNoError, nil)
	}

	rcode := dnsmsg.RcodeNoError
	if len(answer) == 0 {
		rcode = dnsmsg.RcodeNameError
	}

	return dnsmsg.NewStandardResponse(req.Header, q, hasQuestion, rcode, answer)
}

func sameName(a, b string) bool {
	return trimDot(a) == trimDot(b)
}

func trimDot(s string) string {
	if s != "" && s[len(s)-1] == '.' {
		return lower(s[:len(s)-1])
	}
	return lower(s)
}

func lower(s string) string {
	out := []byte(s)
	for i, b := range out {
		if b >= 'A' && b <= 'Z' {
			out[i] = b + ('a' - 'A')
		}
	}
	return string(out)
}
