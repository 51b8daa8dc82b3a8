package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeUnknown, "unknown"},
		{TypeHeap, "heap"},
		{TypeStack, "stack"},
		{TypeStatic, "static"},
		{TypeGuess, "guess"},
		{Type(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestParseType(t *testing.T) {
	for i := 0; i < NumTypes; i++ {
		typ := Type(i)
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	got, err := ParseType(" HEAP ")
	require.NoError(t, err)
	assert.Equal(t, TypeHeap, got)

	_, err = ParseType("register")
	assert.Error(t, err)
}

func TestObject_Bounds(t *testing.T) {
	o := New(0x1000, 0x1007, TypeHeap, "buf")

	assert.Equal(t, uintptr(8), o.Size())
	assert.True(t, o.Contains(0x1000, 0x1003))
	assert.True(t, o.Contains(0x1000, 0x1007))
	assert.False(t, o.Contains(0x1004, 0x100b))
	assert.True(t, o.Overlaps(0x1004, 0x100b))
	assert.True(t, o.Overlaps(0x0ff0, 0x1000))
	assert.False(t, o.Overlaps(0x1008, 0x1010))
	assert.True(t, o.SameBounds(0x1000, 0x1007))
	assert.Equal(t, `heap[0x1000,0x1007] "buf"`, o.String())
}

func TestClampArithmetic(t *testing.T) {
	assert.Equal(t, uintptr(0x1003), ClampSize(0x1000, 4))
	assert.Equal(t, uintptr(0x1000), ClampSize(0x1000, 0), "size zero is one byte")
	assert.Equal(t, MaxAddr, ClampSize(MaxAddr-1, 16))
	assert.Equal(t, MaxAddr, ClampSize(MaxAddr, 1))

	assert.Equal(t, uintptr(10), ClampAdd(4, 6))
	assert.Equal(t, MaxAddr, ClampAdd(MaxAddr-2, 3))

	assert.Equal(t, uintptr(4), ClampSub(10, 6))
	assert.Equal(t, uintptr(0), ClampSub(3, 6))
}
