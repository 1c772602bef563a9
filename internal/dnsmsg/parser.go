package dnsmsg

import "fmt"

// Parse implements spec.md §4.A. It returns:
//   - (Request, nil) on a fully decoded StandardQuery or Unsupported request.
//   - (Request{}, ErrIncomplete) if buf is shorter than the header, or the
//     header parsed but the question body is truncated.
//   - (Request{}, ErrParseError) if the bytes after the header are
//     malformed (bad label, bad qclass, or a compressed name), or if a
//     standard query's qdcount is greater than 1. No request is returned
//     in that case, so no FormatError reply is built from it.
//
// Only opcode 0 (StandardQuery) is parsed past the header; every other
// opcode yields Unsupported with the raw header intact, since the only
// thing a NotImplemented reply needs is id and rd.
func Parse(buf []byte) (Request, error) {
	if len(buf) < headerSize {
		return Request{}, ErrIncomplete
	}

	raw := decodeRawHeader(buf)

	if raw.Opcode != OpCodeStandardQuery {
		return unsupported(raw), nil
	}

	if raw.QDCount > 1 {
		// spec.md §4.A: qdcount > 1 is a hard format error, not a
		// request with more than one question to parse.
		return Request{}, ErrParseError
	}

	h := Header{
		ID:               raw.ID,
		Truncated:        raw.Truncated,
		RecursionDesired: raw.RecursionDesired,
		QDCount:          raw.QDCount,
	}

	if raw.QDCount == 0 {
		return standardQuery(h, Question{}), nil
	}

	q, _, err := parseQuestion(buf, headerSize)
	if err != nil {
		return Request{}, err
	}

	return standardQuery(h, q), nil
}

// parseQuestion parses one question-section entry starting at offset,
// returning the parsed question and the offset immediately after it.
func parseQuestion(buf []byte, offset int) (Question, int, error) {
	labels, name, offset, err := parseName(buf, offset)
	if err != nil {
		return Question{}, 0, err
	}

	if offset+4 > len(buf) {
		return Question{}, 0, ErrIncomplete
	}

	qtype := QType(uint16(buf[offset])<<8 | uint16(buf[offset+1]))
	qclass := QClass(uint16(buf[offset+2])<<8 | uint16(buf[offset+3]))
	offset += 4

	if !validQClass(qclass) {
		return Question{}, 0, ErrParseError
	}

	return Question{Labels: labels, Name: name, Type: qtype, Class: qclass}, offset, nil
}

// parseName parses a sequence of length-prefixed labels terminated by a
// zero byte. No label-pointer decompression is performed: a length byte
// with either of its top two bits set is rejected outright, since queries
// accepted by this codec never compress (spec.md §4.A).
func parseName(buf []byte, offset int) (labels []string, name string, next int, err error) {
	total := 0

	for {
		if offset >= len(buf) {
			return nil, "", 0, ErrIncomplete
		}

		length := int(buf[offset])

		if length&0xC0 != 0 {
			return nil, "", 0, fmt.Errorf("%w: %w", ErrParseError, ErrCompressed)
		}

		if length == 0 {
			offset++
			break
		}

		if length > maxLabelLength {
			return nil, "", 0, ErrParseError
		}

		offset++
		if offset+length > len(buf) {
			return nil, "", 0, ErrIncomplete
		}

		label := buf[offset : offset+length]
		if err := validateLabel(label); err != nil {
			return nil, "", 0, err
		}

		labels = append(labels, string(label))
		total += length + 1
		if total > maxDomainLength {
			return nil, "", 0, ErrParseError
		}

		offset += length
	}

	if len(labels) == 0 {
		return labels, ".", offset, nil
	}

	joined := labels[0]
	for _, l := range labels[1:] {
		joined += "." + l
	}
	joined += "."

	return labels, joined, offset, nil
}
