package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshPage() Page {
	buf := make([]byte, Size)
	p := New(buf)
	p.Init()
	return p
}

func TestInitLayout(t *testing.T) {
	p := freshPage()
	assert.Equal(t, 0, p.NumRecords())
	assert.Equal(t, Size-HeaderSize, p.FreeSpace())
}

func TestInsertAndGet(t *testing.T) {
	p := freshPage()

	slot, err := p.Insert([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 0, slot)

	slot2, err := p.Insert([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 1, slot2)

	v, ok, err := p.Get(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(v))

	v, ok, err = p.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "world", string(v))
}

func TestGetOutOfBounds(t *testing.T) {
	p := freshPage()
	_, _, err := p.Get(0)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err2 := p.Insert([]byte("x"))
	require.NoError(t, err2)
	_, _, err = p.Get(5)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestDeleteTombstones(t *testing.T) {
	p := freshPage()
	slot, _ := p.Insert([]byte("gone"))

	require.NoError(t, p.Delete(slot))
	v, ok, err := p.Get(slot)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)

	err = p.Delete(slot + 1)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestCanInsertAndOutOfSpace(t *testing.T) {
	p := freshPage()
	big := make([]byte, Size)
	assert.False(t, p.CanInsert(len(big)))
	_, err := p.Insert(big)
	assert.ErrorIs(t, err, ErrOutOfSpace)
}

func TestDefragmentDropsTombstonesAndRenumbers(t *testing.T) {
	p := freshPage()
	s0, _ := p.Insert([]byte("a"))
	s1, _ := p.Insert([]byte("b"))
	s2, _ := p.Insert([]byte("c"))
	require.NoError(t, p.Delete(s1))

	freeBefore := p.FreeSpace()
	p.Defragment(nil)
	assert.Greater(t, p.FreeSpace(), freeBefore)
	assert.Equal(t, 2, p.NumRecords())

	v, ok, err := p.Get(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", string(v))

	v, ok, err = p.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", string(v))

	_ = s0
	_ = s2
}

func TestDefragmentReclaimsAllSpaceAfterDeletingEverything(t *testing.T) {
	p := freshPage()
	for i := 0; i < 3; i++ {
		_, err := p.Insert(make([]byte, 1500))
		if err != nil {
			break
		}
	}
	// delete everything, defragment, then confirm the space is reclaimed.
	for i := 0; i < p.NumRecords(); i++ {
		p.Delete(i)
	}
	p.Defragment(nil)
	assert.Equal(t, 0, p.NumRecords())
	assert.Equal(t, Size-HeaderSize, p.FreeSpace())
}
