package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameTableFindFreeFrame(t *testing.T) {
	ft := NewFrameTable(3)

	frame, ok := ft.FindFreeFrame()
	require.True(t, ok, "empty table has a free frame")
	assert.Equal(t, uint32(0), frame, "lowest id first")

	ft.Occupy(0, 7, PermReadOnly)
	ft.Occupy(2, 9, PermReadOnly)
	frame, ok = ft.FindFreeFrame()
	require.True(t, ok)
	assert.Equal(t, uint32(1), frame, "only frame 1 is free")

	ft.Occupy(1, 4, PermReadWrite)
	_, ok = ft.FindFreeFrame()
	assert.False(t, ok, "full table has no free frame")
	assert.Equal(t, uint32(3), ft.Resident())

	ft.Vacate(0)
	frame, ok = ft.FindFreeFrame()
	require.True(t, ok)
	assert.Equal(t, uint32(0), frame)
}

func TestFrameTableOccupyVacate(t *testing.T) {
	ft := NewFrameTable(2)

	ft.Occupy(1, 5, PermReadOnly)
	page, perm, ok := ft.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint32(5), page)
	assert.Equal(t, PermReadOnly, perm)
	assert.True(t, ft.Referenced(1), "occupy sets the reference flag")

	ft.SetPermission(1, PermReadWrite)
	_, perm, _ = ft.Get(1)
	assert.Equal(t, PermReadWrite, perm)
	assert.Equal(t, uint32(1), ft.Resident(), "upgrade keeps resident count")

	page, perm = ft.Vacate(1)
	assert.Equal(t, uint32(5), page)
	assert.Equal(t, PermReadWrite, perm)

	_, perm, ok = ft.Get(1)
	assert.False(t, ok)
	assert.Equal(t, PermAbsent, perm)
	assert.False(t, ft.Referenced(1), "vacate clears the reference flag")
	assert.Equal(t, uint32(0), ft.Resident())

	// Vacating an empty frame is harmless
	ft.Vacate(1)
	assert.Equal(t, uint32(0), ft.Resident())
}

func TestFrameTableReferenceFlags(t *testing.T) {
	ft := NewFrameTable(2)
	ft.Occupy(0, 1, PermReadOnly)

	ft.ClearReference(0)
	assert.False(t, ft.Referenced(0))

	ft.Reference(0)
	assert.True(t, ft.Referenced(0))
	assert.False(t, ft.Referenced(1))
}
