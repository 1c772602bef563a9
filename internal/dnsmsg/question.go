package dnsmsg

// QType is the query/record type field. Unrecognized values are preserved
// as their raw numeric QType rather than rejected at parse time: an unknown
// qtype is a question the resolver can legally answer "no such records" to
// (NoError, empty answer), not a malformed message.
type QType uint16

const (
	QTypeA     QType = 1
	QTypeNS    QType = 2
	QTypeCNAME QType = 5
	QTypeSOA   QType = 6
	QTypeMX    QType = 15
	QTypeAAAA  QType = 28
	QTypeALL   QType = 255
)

// QClass is the query/record class field.
type QClass uint16

const (
	QClassIN QClass = 1
	QClassCS QClass = 2
	QClassCH QClass = 3
	QClassHS QClass = 4
)

// validQClass reports whether c is one of the four recognized classes.
// Any other value is a ParseError per spec.
func validQClass(c QClass) bool {
	switch c {
	case QClassIN, QClassCS, QClassCH, QClassHS:
		return true
	default:
		return false
	}
}

// Question is a parsed question-section entry: the original label
// sequence, the reconstructed dot-joined name, and the qtype/qclass pair.
type Question struct {
	Labels []string
	Name   string
	Type   QType
	Class  QClass
}

// isLabelByte reports whether b is a valid interior byte for a label:
// ASCII letter, digit, or hyphen.
func isLabelByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '-'
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// validateLabel enforces spec.md §3/§4.A: a label must start with an ASCII
// letter and contain only letters, digits, and internal hyphens.
func validateLabel(label []byte) error {
	if len(label) == 0 || len(label) > maxLabelLength {
		return ErrParseError
	}
	if !isLetter(label[0]) {
		return ErrParseError
	}
	for _, b := range label[1:] {
		if !isLabelByte(b) {
			return ErrParseError
		}
	}
	return nil
}
