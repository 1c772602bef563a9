package dnsmsg

import "errors"

// Decode errors. Incomplete is a normal continuation signal for the frame
// codec (internal/codec), never logged as a failure. ParseError means the
// bytes after the header are malformed and the datagram is dropped.
var (
	ErrIncomplete = errors.New("dnsmsg: incomplete message")
	ErrParseError = errors.New("dnsmsg: malformed message")
	ErrCompressed = errors.New("dnsmsg: compressed name in query (not supported on input)")
)

const (
	maxLabelLength  = 63
	maxDomainLength = 255
)
