package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kunerd/koppeln/internal/dnsmsg"
)

// buildQuery assembles a minimal StandardQuery datagram for "example.test.com".
func buildQuery(id uint16) []byte {
	buf := make([]byte, headerSize)
	buf[0], buf[1] = byte(id>>8), byte(id)
	buf[5] = 1 // qdcount=1

	for _, label := range []string{"example", "test", "com"} {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	buf = append(buf, 0, 0, 1, 0, 1) // root label, qtype=A, qclass=IN
	return buf
}

// TestSlowSenderByteByByte mirrors the original source's slow_sender_sends_
// rest_of_data_incomlete test: feeding a single Codec one byte at a time
// yields None on every call but the last, then exactly one Some(request).
func TestSlowSenderByteByByte(t *testing.T) {
	c := New()
	full := buildQuery(1234)

	for i := 0; i < len(full)-1; i++ {
		req, ok, err := c.Decode(full[i : i+1])
		require.NoError(t, err)
		require.False(t, ok, "byte %d should not yet complete the message", i)
		require.Equal(t, dnsmsg.Request{}, req)
	}

	req, ok, err := c.Decode(full[len(full)-1:])
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, req.IsStandard())
	require.Equal(t, uint16(1234), req.Header.ID)
	require.Equal(t, "example.test.com.", req.Question.Name)
}

// TestSlowSenderPartialHeaderThenRest mirrors slow_sender: the first chunk
// is smaller than the 12-byte header and must yield None, reporting
// StatePartialHeader in between.
func TestSlowSenderPartialHeaderThenRest(t *testing.T) {
	c := New()
	full := buildQuery(99)

	_, ok, err := c.Decode(full[:11])
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, StatePartialHeader, c.State())

	req, ok, err := c.Decode(full[11:])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint16(99), req.Header.ID)
	require.Equal(t, StateEmpty, c.State())
}

// TestSlowSenderSendsRestOfData mirrors slow_sender_sends_rest_of_data: a
// full header followed by the rest of the question body in a second call.
func TestSlowSenderSendsRestOfData(t *testing.T) {
	c := New()
	full := buildQuery(7)

	_, ok, err := c.Decode(full[:headerSize])
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, StatePartialBody, c.State())

	req, ok, err := c.Decode(full[headerSize:])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint16(7), req.Header.ID)
}

// TestDecodeThenEmptyIsNoneAgain checks spec.md §4.C's "None thereafter":
// once a request has been emitted, the codec is back in StateEmpty and an
// empty follow-up call reports incomplete rather than replaying the old
// request.
func TestDecodeThenEmptyIsNoneAgain(t *testing.T) {
	c := New()
	full := buildQuery(1)

	_, ok, err := c.Decode(full)
	require.NoError(t, err)
	require.True(t, ok)

	req, ok, err := c.Decode(nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, dnsmsg.Request{}, req)
}

// TestDecodeDiscardsTrailingBytes exercises spec.md §4.C's "remaining
// trailing bytes are discarded" rule: bytes appended after a complete
// message are dropped along with it rather than kept for the next Decode.
func TestDecodeDiscardsTrailingBytes(t *testing.T) {
	c := New()
	withTrailer := append(buildQuery(5), "garbage-from-a-different-datagram"...)

	req, ok, err := c.Decode(withTrailer)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint16(5), req.Header.ID)
	require.Equal(t, StateEmpty, c.State())

	_, ok, err = c.Decode(nil)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestDecodeParseErrorClearsBuffer checks that a malformed message (a
// compressed name, which this codec never accepts on input) clears the
// buffer so the next datagram decodes cleanly rather than being corrupted
// by the previous one's leftover bytes.
func TestDecodeParseErrorClearsBuffer(t *testing.T) {
	c := New()

	bad := make([]byte, headerSize)
	bad[5] = 1 // qdcount=1
	bad = append(bad, 0xC0, 0x0C, 0, 1, 0, 1)

	_, ok, err := c.Decode(bad)
	require.Error(t, err)
	require.False(t, ok)
	require.Equal(t, StateEmpty, c.State())

	req, ok, err := c.Decode(buildQuery(2))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint16(2), req.Header.ID)
}

// TestDecodeUnsupportedOpcodeConsumesHeaderOnly checks that a non-standard
// opcode yields Some(Unsupported(header)) as soon as the header is
// available, discarding whatever else the datagram carries.
func TestDecodeUnsupportedOpcodeConsumesHeaderOnly(t *testing.T) {
	c := New()

	buf := make([]byte, headerSize)
	buf[0], buf[1] = 0, 42
	buf[2] = byte(dnsmsg.OpCodeServerStatus) << 3
	buf = append(buf, "trailing garbage that must be discarded"...)

	req, ok, err := c.Decode(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, req.IsStandard())
	require.Equal(t, uint16(42), req.Raw.ID)
	require.Equal(t, StateEmpty, c.State())
}
