package dnsmsg

import "net/netip"

// SOA is the immutable Start-of-Authority data for the managed zone,
// loaded once from configuration (internal/settings) and never mutated.
type SOA struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// ResourceRecord is the tagged variant spec.md §3 describes: exactly one
// of the three Record fields is meaningful, selected by Type.
type ResourceRecord struct {
	Type QType
	Name string
	TTL  uint32

	// Set when Type == QTypeA.
	IPv4 netip.Addr
	// Set when Type == QTypeAAAA.
	IPv6 netip.Addr
	// Set when Type == QTypeSOA.
	SOA SOA
}

const defaultAnswerTTL = 15

// NewARecord builds an A answer with the default 15-second TTL spec.md
// §4.B specifies.
func NewARecord(name string, addr netip.Addr) ResourceRecord {
	return ResourceRecord{Type: QTypeA, Name: name, TTL: defaultAnswerTTL, IPv4: addr}
}

// NewAAAARecord builds an AAAA answer with the default 15-second TTL.
func NewAAAARecord(name string, addr netip.Addr) ResourceRecord {
	return ResourceRecord{Type: QTypeAAAA, Name: name, TTL: defaultAnswerTTL, IPv6: addr}
}

// NewSOARecord builds an SOA answer with ttl=minimum per spec.md §4.B.
func NewSOARecord(name string, soa SOA) ResourceRecord {
	return ResourceRecord{Type: QTypeSOA, Name: name, TTL: soa.Minimum, SOA: soa}
}

// Response is the sum type spec.md §9 asks for, mirroring Request:
// StandardResponse carries the echoed question and answer list,
// NotImplementedResponse carries only a header.
type Response struct {
	standard bool

	// Set when IsStandard() is true.
	Header      Header
	Rcode       Rcode
	Question    Question
	HasQuestion bool
	Answer      []ResourceRecord

	// Slip, when true, forces the truncated bit and an empty answer
	// section regardless of datagram size. Set by the caller (the rate
	// limiter) rather than by Resolve; Encode honors it the same way it
	// honors the 512-byte overflow case.
	Slip bool

	// Set when IsStandard() is false.
	Raw RawHeader
}

func (r Response) IsStandard() bool { return r.standard }

// NewStandardResponse builds a StandardResponse per spec.md §4.E step 1:
// id/tc/rd/qd_count copied from the request header, aa forced true, ra
// forced false, tc forced false.
func NewStandardResponse(h Header, q Question, hasQuestion bool, rcode Rcode, answer []ResourceRecord) Response {
	return Response{
		standard:    true,
		Header:      h,
		Rcode:       rcode,
		Question:    q,
		HasQuestion: hasQuestion,
		Answer:      answer,
	}
}

// NewNotImplementedResponse builds the reply for an Unsupported request:
// the raw header is carried through with aa/tc/ra forced and rcode set to
// NotImplemented, per spec.md §4.F.
func NewNotImplementedResponse(raw RawHeader) Response {
	raw.QR = true
	raw.AuthoritativeAnswer = true
	raw.Truncated = false
	raw.RecursionAvailable = false
	raw.Rcode = RcodeNotImplemented
	raw.ANCount = 0
	raw.NSCount = 0
	raw.ARCount = 0
	return Response{standard: false, Raw: raw}
}
