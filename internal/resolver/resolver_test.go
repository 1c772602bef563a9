package resolver

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kunerd/koppeln/internal/dnsmsg"
	"github.com/kunerd/koppeln/internal/store"
)

func testSOA() dnsmsg.SOA {
	return dnsmsg.SOA{
		MName:   "dyn.example.com.",
		RName:   "hostmaster.dyn.example.com.",
		Serial:  2026072901,
		Refresh: 3600,
		Retry:   600,
		Expire:  604800,
		Minimum: 60,
	}
}

// buildStandardQuery constructs a StandardQuery Request the way
// dnsmsg.Parse would, without depending on wire bytes.
func buildStandardQuery(id uint16, name string, qtype dnsmsg.QType) dnsmsg.Request {
	buf := make([]byte, 12)
	buf[0] = byte(id >> 8)
	buf[1] = byte(id)
	buf[5] = 1
	for _, label := range splitDots(name) {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	buf = append(buf, 0)
	buf = append(buf, byte(qtype>>8), byte(qtype))
	buf = append(buf, 0, 1)

	req, err := dnsmsg.Parse(buf)
	if err != nil {
		panic(err)
	}
	return req
}

func splitDots(name string) []string {
	if len(name) > 0 && name[len(name)-1] == '.' {
		name = name[:len(name)-1]
	}
	var labels []string
	start := 0
	for i := 0; i <= len(name); i++ {
		if i == len(name) || name[i] == '.' {
			labels = append(labels, name[start:i])
			start = i + 1
		}
	}
	return labels
}

func TestScenario1_UnknownName(t *testing.T) {
	s := store.New("dyn.example.com", map[string]*store.Entry{"test": {Token: "super_secure"}})
	sn := s.Snapshot()
	defer sn.Release()

	resp := Resolve(testSOA(), sn, buildStandardQuery(1, "unknown.dyn.example.com.", dnsmsg.QTypeA))

	require.True(t, resp.IsStandard())
	require.Equal(t, dnsmsg.RcodeNameError, resp.Rcode)
	require.Len(t, resp.Answer, 0)
}

func TestScenario2_SubdomainExistsNoIPv4(t *testing.T) {
	s := store.New("dyn.example.com", map[string]*store.Entry{"test": {Token: "super_secure"}})
	sn := s.Snapshot()
	defer sn.Release()

	resp := Resolve(testSOA(), sn, buildStandardQuery(2, "test.dyn.example.com.", dnsmsg.QTypeA))

	require.Equal(t, dnsmsg.RcodeNameError, resp.Rcode)
	require.Len(t, resp.Answer, 0)
}

func TestScenario3_AfterUpdateResolvesToNewIP(t *testing.T) {
	s := store.New("dyn.example.com", map[string]*store.Entry{"test": {Token: "super_secure"}})
	require.NoError(t, s.SetIPv4("test.dyn.example.com.", netip.MustParseAddr("1.2.3.4")))

	sn := s.Snapshot()
	defer sn.Release()

	resp := Resolve(testSOA(), sn, buildStandardQuery(3, "test.dyn.example.com.", dnsmsg.QTypeA))

	require.Equal(t, dnsmsg.RcodeNoError, resp.Rcode)
	require.Len(t, resp.Answer, 1)
	require.Equal(t, uint32(15), resp.Answer[0].TTL)
	require.Equal(t, netip.MustParseAddr("1.2.3.4"), resp.Answer[0].IPv4)
}

// TestQDCountZeroDoesNotEchoAQuestion covers invariant I4: a StandardQuery
// with no question (qdcount=0) must come back with HasQuestion=false, not
// a fabricated question echoed with qd_count=1.
func TestQDCountZeroDoesNotEchoAQuestion(t *testing.T) {
	buf := make([]byte, 12)
	buf[0], buf[1] = 0, 9
	// opcode left at 0 (StandardQuery); qdcount (buf[4:6]) left at 0.

	req, err := dnsmsg.Parse(buf)
	require.NoError(t, err)
	require.True(t, req.IsStandard())

	s := store.New("dyn.example.com", map[string]*store.Entry{"test": {Token: "super_secure"}})
	sn := s.Snapshot()
	defer sn.Release()

	resp := Resolve(testSOA(), sn, req)
	require.True(t, resp.IsStandard())
	require.False(t, resp.HasQuestion)
}

func TestScenario6_UnsupportedOpcode(t *testing.T) {
	buf := make([]byte, 12)
	buf[0], buf[1] = 0, 0x42
	buf[2] = byte(dnsmsg.OpCodeServerStatus) << 3

	req, err := dnsmsg.Parse(buf)
	require.NoError(t, err)

	resp := Resolve(testSOA(), store.Snapshot{}, req)
	require.False(t, resp.IsStandard())
	require.Equal(t, dnsmsg.RcodeNotImplemented, resp.Raw.Rcode)
	require.Equal(t, uint16(0x42), resp.Raw.ID)
}

func TestScenario7_SOA(t *testing.T) {
	s := store.New("dyn.example.com", map[string]*store.Entry{"test": {Token: "super_secure"}})
	sn := s.Snapshot()
	defer sn.Release()

	resp := Resolve(testSOA(), sn, buildStandardQuery(7, "dyn.example.com.", dnsmsg.QTypeSOA))
	require.Equal(t, dnsmsg.RcodeNoError, resp.Rcode)
	require.Len(t, resp.Answer, 1)
	require.Equal(t, dnsmsg.QTypeSOA, resp.Answer[0].Type)

	resp2 := Resolve(testSOA(), sn, buildStandardQuery(8, "test.dyn.example.com.", dnsmsg.QTypeSOA))
	require.Equal(t, dnsmsg.RcodeNameError, resp2.Rcode)
}
