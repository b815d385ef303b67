package machine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestString(s string) *ObjString {
	return &ObjString{Chars: s, Hash: hashString(s)}
}

func TestTableSetGetDelete(t *testing.T) {
	var tb table
	k := newTestString("answer")

	_, ok := tb.Get(k)
	require.False(t, ok)

	require.True(t, tb.Set(k, Number(42)), "first insert must report a new key")
	require.False(t, tb.Set(k, Number(43)), "overwrite must not report a new key")

	v, ok := tb.Get(k)
	require.True(t, ok)
	require.Equal(t, Number(43), v)

	require.True(t, tb.Delete(k))
	require.False(t, tb.Delete(k), "second delete must be a no-op")
	_, ok = tb.Get(k)
	require.False(t, ok)
}

func TestTableTombstonePreservesProbeChain(t *testing.T) {
	var tb table
	keys := make([]*ObjString, 0, 16)
	for i := 0; i < 16; i++ {
		k := newTestString(fmt.Sprintf("key-%d", i))
		keys = append(keys, k)
		tb.Set(k, Number(float64(i)))
	}

	// deleting every other key leaves tombstones in the probe chains; the
	// remaining keys must all still be found
	for i := 0; i < 16; i += 2 {
		require.True(t, tb.Delete(keys[i]))
	}
	for i := 1; i < 16; i += 2 {
		v, ok := tb.Get(keys[i])
		require.True(t, ok, "key %d lost after neighboring deletes", i)
		require.Equal(t, Number(float64(i)), v)
	}

	// reinserting a deleted key must reuse a tombstone rather than grow
	// the live count
	count := tb.count
	tb.Set(keys[0], Number(100))
	require.Equal(t, count, tb.count)
}

func TestTableGrowthDropsTombstones(t *testing.T) {
	var tb table
	keys := make([]*ObjString, 0, 8)
	for i := 0; i < 5; i++ {
		k := newTestString(fmt.Sprintf("key-%d", i))
		keys = append(keys, k)
		tb.Set(k, Number(float64(i)))
	}
	for i := 0; i < 3; i++ {
		tb.Delete(keys[i])
	}
	require.Equal(t, 5, tb.count, "tombstones still count toward the load factor")

	// rehashing copies live entries only, so the count drops back to the
	// number of keys actually present
	tb.adjustCapacity(32)
	require.Equal(t, 2, tb.count)
	for i := 3; i < 5; i++ {
		v, ok := tb.Get(keys[i])
		require.True(t, ok)
		require.Equal(t, Number(float64(i)), v)
	}
	for i := 0; i < 3; i++ {
		_, ok := tb.Get(keys[i])
		require.False(t, ok)
	}
}

func TestTableDeleteMatchesByIdentityNotContent(t *testing.T) {
	var tb table
	k := newTestString("name")
	tb.Set(k, Number(1))

	other := newTestString("name")
	require.False(t, tb.Delete(other), "identical content but distinct object must not match")
	_, ok := tb.Get(k)
	require.True(t, ok)
}

func TestFindStringMatchesByContent(t *testing.T) {
	var tb table
	k := newTestString("interned")
	tb.Set(k, Bool(true))

	require.Same(t, k, tb.findString("interned", hashString("interned")))
	require.Nil(t, tb.findString("missing", hashString("missing")))
}
