package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Pudrick/Souffle-mod/domain"
)

func mkTuple(vals ...int64) domain.Tuple {
	t := make(domain.Tuple, len(vals))
	for i, v := range vals {
		t[i] = domain.FromSigned(v)
	}
	return t
}

func twoSigned() []domain.Type { return []domain.Type{domain.Signed, domain.Signed} }

func TestInsertScanOrder(t *testing.T) {
	ix := New(Order{0, 1}, twoSigned())
	ix.Insert(mkTuple(3, 0))
	ix.Insert(mkTuple(1, 0))
	ix.Insert(mkTuple(2, 0))

	var seen []int64
	ix.Scan(func(tup domain.Tuple) bool {
		seen = append(seen, tup[0].Signed())
		return true
	})
	require.Equal(t, []int64{1, 2, 3}, seen)
}

func TestContainsAndErase(t *testing.T) {
	ix := New(Order{0, 1}, twoSigned())
	tup := mkTuple(5, 6)
	require.False(t, ix.Contains(tup))
	ix.Insert(tup)
	require.True(t, ix.Contains(tup))
	require.True(t, ix.Erase(tup))
	require.False(t, ix.Contains(tup))
	require.False(t, ix.Erase(tup))
}

func TestRangeScanInclusive(t *testing.T) {
	ix := New(Order{0, 1}, twoSigned())
	for _, v := range []int64{1, 2, 3, 4, 5} {
		ix.Insert(mkTuple(v, 0))
	}
	low := mkTuple(2, domain.SignedMin.Signed())
	high := mkTuple(4, domain.SignedMax.Signed())
	var seen []int64
	ix.RangeScan(low, high, func(tup domain.Tuple) bool {
		seen = append(seen, tup[0].Signed())
		return true
	})
	require.Equal(t, []int64{2, 3, 4}, seen)
}

func TestPartitionCoversAllTuples(t *testing.T) {
	ix := New(Order{0}, []domain.Type{domain.Signed})
	for i := int64(0); i < 37; i++ {
		ix.Insert(mkTuple(i))
	}
	parts := ix.Partition(8)
	total := 0
	for _, p := range parts {
		p(func(domain.Tuple) bool {
			total++
			return true
		})
	}
	require.Equal(t, 37, total)
	require.LessOrEqual(t, len(parts), 8)
}

func TestDuplicateInsertIsNoOp(t *testing.T) {
	ix := New(Order{0}, []domain.Type{domain.Signed})
	ix.Insert(mkTuple(1))
	ix.Insert(mkTuple(1))
	require.Equal(t, 1, ix.Len())
}
