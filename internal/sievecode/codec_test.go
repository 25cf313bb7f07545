package sievecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntegerRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 63, 64, 127, 128, 16384, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range values {
		w := NewWriter()
		w.EmitInteger(v)
		r := NewReader(w.Bytes())
		got, err := r.ReadInteger()
		require.NoError(t, err)
		require.Equal(t, v, got, "round trip of %d", v)
		require.Equal(t, w.Len(), r.Pos(), "cursor must advance exactly")
	}
}

func TestIntegerSequenceCursorAdvancesExactly(t *testing.T) {
	w := NewWriter()
	values := []uint64{1, 2, 300, 70000, 5}
	for _, v := range values {
		w.EmitInteger(v)
	}
	r := NewReader(w.Bytes())
	for _, want := range values {
		got, err := r.ReadInteger()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.Equal(t, w.Len(), r.Pos())
}

func TestStringRoundTripWithEmbeddedNUL(t *testing.T) {
	s := "hello\x00world\x00\x00!"
	w := NewWriter()
	w.EmitString(s)
	r := NewReader(w.Bytes())
	got, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestStringMissingTrailingZeroFails(t *testing.T) {
	w := NewWriter()
	w.EmitInteger(3)
	w.EmitData([]byte("abc"))
	// no trailing zero sentinel appended
	r := NewReader(w.Bytes())
	_, err := r.ReadString()
	require.Error(t, err)
}

func TestStringListRoundTrip(t *testing.T) {
	list := []string{"Subject", "spam", ""}
	w := NewWriter()
	w.EmitStringList(list)
	r := NewReader(w.Bytes())
	got, err := r.ReadStringList()
	require.NoError(t, err)
	require.Equal(t, list, got)
}

func TestOffsetResolveRoundTrip(t *testing.T) {
	w := NewWriter()
	anchor := w.EmitOffset()
	w.EmitData([]byte{1, 2, 3, 4, 5})
	require.NoError(t, w.ResolveOffset(anchor))

	r := NewReader(w.Bytes())
	r.Seek(anchor)
	off, err := r.ReadOffset()
	require.NoError(t, err)
	require.EqualValues(t, 5+4, off) // distance from anchor to end of stream
}

func TestObjectOperandCoreAndExtension(t *testing.T) {
	w := NewWriter()
	w.EmitObject(Object{Class: ClassComparator, Core: true, Code: 1})
	w.EmitObject(Object{Class: ClassMatchType, Core: false, ExtIndex: 3, SubCode: 7})

	r := NewReader(w.Bytes())
	core, err := r.ReadObject(ClassComparator)
	require.NoError(t, err)
	require.True(t, core.Core)
	require.Equal(t, 1, core.Code)

	ext, err := r.ReadObject(ClassMatchType)
	require.NoError(t, err)
	require.False(t, ext.Core)
	require.Equal(t, 3, ext.ExtIndex)
	require.Equal(t, 7, ext.SubCode)
}

func TestObjectOperandClassMismatchFails(t *testing.T) {
	w := NewWriter()
	w.EmitObject(Object{Class: ClassSideEffect, Core: true, Code: 0})
	r := NewReader(w.Bytes())
	_, err := r.ReadObject(ClassAddressPart)
	require.Error(t, err)
}

func TestReadPastEndFails(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.ReadData(5)
	require.Error(t, err)
}

func TestOpCoreAndExtensionRoundTrip(t *testing.T) {
	w := NewWriter()
	w.EmitCoreOp(0x05)
	w.EmitExtOp(2, 9)

	r := NewReader(w.Bytes())
	op1, err := r.ReadOp()
	require.NoError(t, err)
	require.True(t, op1.Core)
	require.EqualValues(t, 0x05, op1.Code)

	op2, err := r.ReadOp()
	require.NoError(t, err)
	require.False(t, op2.Core)
	require.Equal(t, 2, op2.ExtIndex)
	require.Equal(t, 9, op2.SubCode)
}
