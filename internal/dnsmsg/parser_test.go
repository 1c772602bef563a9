package dnsmsg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildQuery assembles a minimal standard query for "test.dyn.example.com"
// type A class IN, mirroring the byte-level fixtures used throughout
// koppeln's original parser tests.
func buildQuery(id uint16, qdcount uint16, opcode OpCode) []byte {
	buf := make([]byte, headerSize)
	buf[0] = byte(id >> 8)
	buf[1] = byte(id)
	buf[2] = byte(opcode) << 3
	buf[4] = byte(qdcount >> 8)
	buf[5] = byte(qdcount)

	if qdcount == 0 {
		return buf
	}

	for _, label := range []string{"test", "dyn", "example", "com"} {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	buf = append(buf, 0)
	buf = append(buf, 0, 1) // qtype A
	buf = append(buf, 0, 1) // qclass IN

	return buf
}

func TestParseStandardQuery(t *testing.T) {
	buf := buildQuery(0x1234, 1, OpCodeStandardQuery)

	req, err := Parse(buf)
	require.NoError(t, err)
	require.True(t, req.IsStandard())
	require.Equal(t, uint16(0x1234), req.Header.ID)
	require.Equal(t, "test.dyn.example.com.", req.Question.Name)
	require.Equal(t, QTypeA, req.Question.Type)
	require.Equal(t, QClassIN, req.Question.Class)
}

func TestParseUnsupportedOpcode(t *testing.T) {
	buf := buildQuery(0x42, 0, OpCodeServerStatus)

	req, err := Parse(buf)
	require.NoError(t, err)
	require.False(t, req.IsStandard())
	require.Equal(t, uint16(0x42), req.Raw.ID)
	require.Equal(t, OpCodeServerStatus, req.Raw.Opcode)
}

func TestParseTooShortIsIncomplete(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x01, 0x02})
	require.ErrorIs(t, err, ErrIncomplete)
}

func TestParseQDCountGreaterThanOneIsFormatError(t *testing.T) {
	buf := buildQuery(1, 2, OpCodeStandardQuery)

	_, err := Parse(buf)
	require.ErrorIs(t, err, ErrParseError)
}

func TestParseRejectsLabelNotStartingWithLetter(t *testing.T) {
	buf := make([]byte, headerSize)
	buf[5] = 1
	buf = append(buf, 3)
	buf = append(buf, "1ab"...)
	buf = append(buf, 0, 0, 1, 0, 1)

	_, err := Parse(buf)
	require.ErrorIs(t, err, ErrParseError)
}

func TestParseRejectsCompressionPointer(t *testing.T) {
	buf := make([]byte, headerSize)
	buf[5] = 1
	buf = append(buf, 0xC0, 0x0C, 0, 1, 0, 1)

	_, err := Parse(buf)
	require.ErrorIs(t, err, ErrParseError)
}

func TestParseIncompleteQuestionBody(t *testing.T) {
	full := buildQuery(7, 1, OpCodeStandardQuery)

	for i := headerSize; i < len(full); i++ {
		_, err := Parse(full[:i])
		require.ErrorIs(t, err, ErrIncomplete, "prefix length %d", i)
	}

	req, err := Parse(full)
	require.NoError(t, err)
	require.True(t, req.IsStandard())
}

func TestParseRejectsBadQClass(t *testing.T) {
	buf := make([]byte, headerSize)
	buf[5] = 1
	buf = append(buf, 4)
	buf = append(buf, "test"...)
	buf = append(buf, 0, 0, 1, 0, 9)

	_, err := Parse(buf)
	require.ErrorIs(t, err, ErrParseError)
}
