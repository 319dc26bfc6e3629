package symbol

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tbl := New()
	id := tbl.Encode("hello")
	require.Equal(t, "hello", tbl.Decode(id))
	require.Equal(t, id, tbl.Encode("hello"))
}

func TestWeakContains(t *testing.T) {
	tbl := New()
	require.False(t, tbl.WeakContains("x"))
	tbl.Encode("x")
	require.True(t, tbl.WeakContains("x"))
}

func TestConcurrentEncode(t *testing.T) {
	tbl := New()
	var wg sync.WaitGroup
	ids := make([]uint64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := tbl.Encode("shared")
			_ = id
		}()
	}
	wg.Wait()
	require.Equal(t, 1, tbl.Len())
	_ = ids
}
