package btree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndSearch(t *testing.T) {
	var bt BTree
	bt.Insert(5, 50)
	bt.Insert(3, 30)
	bt.Insert(8, 80)

	v, ok := bt.Search(3)
	require.True(t, ok)
	assert.Equal(t, uint64(30), v)

	_, ok = bt.Search(100)
	assert.False(t, ok)
}

func TestInsertUpsertOverwritesInPlace(t *testing.T) {
	var bt BTree
	bt.Insert(1, 10)
	bt.Insert(1, 99)

	assert.Equal(t, 1, bt.Len())
	v, ok := bt.Search(1)
	require.True(t, ok)
	assert.Equal(t, uint64(99), v)
}

func TestSplitsUnderMultipleInserts(t *testing.T) {
	var bt BTree
	for i := uint64(0); i < 100; i++ {
		bt.Insert(i, i*10)
	}
	assert.Equal(t, 100, bt.Len())
	assert.Greater(t, bt.Height(), 1)

	for i := uint64(0); i < 100; i++ {
		v, ok := bt.Search(i)
		require.True(t, ok)
		assert.Equal(t, i*10, v)
	}
}

func TestMinMax(t *testing.T) {
	var bt BTree
	_, _, ok := bt.Min()
	assert.False(t, ok)

	for _, k := range []uint64{5, 1, 9, 3, 7} {
		bt.Insert(k, k)
	}
	minK, _, ok := bt.Min()
	require.True(t, ok)
	assert.Equal(t, uint64(1), minK)

	maxK, _, ok := bt.Max()
	require.True(t, ok)
	assert.Equal(t, uint64(9), maxK)
}

func TestForEachAscending(t *testing.T) {
	var bt BTree
	keys := []uint64{9, 1, 5, 3, 7, 2, 8, 4, 6}
	for _, k := range keys {
		bt.Insert(k, k)
	}

	var seen []uint64
	bt.ForEach(func(k, v uint64) bool {
		seen = append(seen, k)
		return true
	})

	sorted := append([]uint64(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	assert.Equal(t, sorted, seen)
}

func TestForEachStopsEarly(t *testing.T) {
	var bt BTree
	for i := uint64(0); i < 20; i++ {
		bt.Insert(i, i)
	}
	count := 0
	bt.ForEach(func(k, v uint64) bool {
		count++
		return count < 5
	})
	assert.Equal(t, 5, count)
}

func TestRangeInclusive(t *testing.T) {
	var bt BTree
	for i := uint64(0); i < 20; i++ {
		bt.Insert(i, i*2)
	}

	var got []uint64
	bt.Range(5, 10, func(k, v uint64) bool {
		got = append(got, k)
		assert.Equal(t, k*2, v)
		return true
	})
	assert.Equal(t, []uint64{5, 6, 7, 8, 9, 10}, got)
}

func TestDeleteRebalances(t *testing.T) {
	var bt BTree
	for i := uint64(0); i < 50; i++ {
		bt.Insert(i, i)
	}
	for i := uint64(0); i < 30; i++ {
		require.True(t, bt.Delete(i))
	}
	assert.Equal(t, 20, bt.Len())
	for i := uint64(30); i < 50; i++ {
		_, ok := bt.Search(i)
		assert.True(t, ok)
	}
	for i := uint64(0); i < 30; i++ {
		_, ok := bt.Search(i)
		assert.False(t, ok)
	}
}

func TestDeleteMissingKeyReturnsFalse(t *testing.T) {
	var bt BTree
	bt.Insert(1, 1)
	assert.False(t, bt.Delete(2))
	assert.Equal(t, 1, bt.Len())
}

// TestAgainstReferenceMap fuzzes a random sequence of inserts/deletes
// against a plain map, asserting the tree's size agrees at every step and
// its contents and order agree at the end.
func TestAgainstReferenceMap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var bt BTree
	ref := make(map[uint64]uint64)

	for i := 0; i < 5000; i++ {
		key := uint64(rng.Intn(200))
		if rng.Intn(3) == 0 {
			delete(ref, key)
			bt.Delete(key)
		} else {
			val := uint64(rng.Int63())
			ref[key] = val
			bt.Insert(key, val)
		}

		require.Equal(t, len(ref), bt.Len())
	}

	for key, want := range ref {
		got, ok := bt.Search(key)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	var seen []uint64
	bt.ForEach(func(k, v uint64) bool {
		seen = append(seen, k)
		assert.Equal(t, ref[k], v)
		return true
	})
	assert.Equal(t, len(ref), len(seen))
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}
}

func TestCursorAscending(t *testing.T) {
	var bt BTree
	keys := []uint64{9, 1, 5, 3, 7, 2, 8, 4, 6}
	for _, k := range keys {
		bt.Insert(k, k*10)
	}

	c := bt.CursorFirst()
	var got []uint64
	for c.Valid() {
		got = append(got, c.Key())
		assert.Equal(t, c.Key()*10, c.Value())
		c.Next()
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestCursorEmptyTree(t *testing.T) {
	var bt BTree
	c := bt.CursorFirst()
	assert.False(t, c.Valid())
}
