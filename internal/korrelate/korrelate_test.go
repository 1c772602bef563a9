package korrelate

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDIsDeterministicWithinProcess(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	addr := netip.MustParseAddr("192.0.2.1")
	id1 := c.ID("test.dyn.example.com.", addr)
	id2 := c.ID("test.dyn.example.com.", addr)

	require.Equal(t, id1, id2)
	require.Len(t, id1, 8)
}

func TestIDDiffersAcrossCorrelators(t *testing.T) {
	c1, err := New()
	require.NoError(t, err)
	c2, err := New()
	require.NoError(t, err)

	addr := netip.MustParseAddr("192.0.2.1")
	// Keys are random; this isn't guaranteed to differ, but collisions of
	// a 32-bit tag across two independent random 128-bit keys are
	// astronomically unlikely, so treat equality as a real failure.
	require.NotEqual(t, c1.ID("test.dyn.example.com.", addr), c2.ID("test.dyn.example.com.", addr))
}

func TestIDUsesPrefixNotFullAddress(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	a := netip.MustParseAddr("192.0.2.1")
	b := netip.MustParseAddr("192.0.2.250")

	require.Equal(t, c.ID("test.dyn.example.com.", a), c.ID("test.dyn.example.com.", b))
}
