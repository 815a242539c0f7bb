/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package bitstream

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitRoundTrip(t *testing.T) {
	s := New()
	bitsIn := []bool{true, false, true, true, false, false, false, true, true}
	for _, b := range bitsIn {
		s.WriteBit(b)
	}
	require.Equal(t, len(bitsIn), s.BitsWritten())
	for _, want := range bitsIn {
		got, ok := s.ReadBit()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := s.ReadBit()
	require.False(t, ok, "stream should be exhausted")
}

func TestBitsConservation(t *testing.T) {
	s := New()
	s.WriteBits(0b10110, 5)
	s.WriteUint64(0xdeadbeefcafef00d)
	s.WriteInt32(-42)
	require.Equal(t, 5+64+32, s.BitsWritten())

	v, ok := s.ReadBits(5)
	require.True(t, ok)
	require.Equal(t, uint64(0b10110), v)

	u, ok := s.ReadUint64()
	require.True(t, ok)
	require.Equal(t, uint64(0xdeadbeefcafef00d), u)

	i, ok := s.ReadInt32()
	require.True(t, ok)
	require.Equal(t, int32(-42), i)
	require.Equal(t, s.BitsWritten(), s.BitsRead())
}

func TestShortReadReportsFailure(t *testing.T) {
	s := New()
	s.WriteBits(0b101, 3)
	_, ok := s.ReadBits(8)
	require.False(t, ok)
}

func TestQuantizedIntRoundTrip(t *testing.T) {
	for _, tc := range []struct{ minV, maxV, quantum, v int64 }{
		{0, 100, 1, 57},
		{-50, 50, 5, -35},
		{0, 1, 1, 1},
		{10, 10, 1, 10},
	} {
		s := New()
		s.WriteQuantizedInt(tc.v, tc.minV, tc.maxV, tc.quantum)
		got, ok := s.ReadQuantizedInt(tc.minV, tc.maxV, tc.quantum)
		require.True(t, ok)
		require.Equal(t, tc.v, got)
	}
}

func TestQuantizedIntBitWidth(t *testing.T) {
	// range of 256 inclusive steps at quantum 1 needs ceil(log2(256)) = 8 bits.
	require.Equal(t, 8, quantizedBitWidth(0, 255, 1))
	// a single legal value still reserves at least one bit.
	require.Equal(t, 1, quantizedBitWidth(10, 10, 1))
}

func TestQuantizedFloatWithinHalfQuantum(t *testing.T) {
	const minV, maxV, quantum = -10.0, 10.0, 0.01
	for _, v := range []float64{0, 3.14159, -7.5, 9.999, -9.999} {
		s := New()
		require.NoError(t, s.WriteQuantizedFloat(v, minV, maxV, quantum))
		got, ok := s.ReadQuantizedFloat(minV, maxV, quantum)
		require.True(t, ok)
		require.InDelta(t, v, got, quantum/2+1e-9)
	}
}

func TestQuantizedFloatRejectsNonPositiveQuantum(t *testing.T) {
	s := New()
	require.Error(t, s.WriteQuantizedFloat(1, 0, 10, 0))
}

func TestHalfFloatPreservesSignZeroAndInfinity(t *testing.T) {
	cases := []float32{0, float32(math.Copysign(0, -1)), 1, -1, 65504, -65504}
	for _, v := range cases {
		h := Float32ToHalf(v)
		got := HalfToFloat32(h)
		require.Equal(t, math.Signbit(float64(v)), math.Signbit(float64(got)))
		if v == 0 {
			require.Equal(t, float32(0), got)
			continue
		}
		require.InDelta(t, v, got, 32) // binary16 has ~3 significant decimal digits at this magnitude
	}

	require.True(t, math.IsInf(float64(HalfToFloat32(Float32ToHalf(float32(math.Inf(1))))), 1))
	require.True(t, math.IsInf(float64(HalfToFloat32(Float32ToHalf(float32(math.Inf(-1))))), -1))
}

func TestAppendAllConservesBits(t *testing.T) {
	a := New()
	a.WriteBits(0b1101, 4)
	b := New()
	b.WriteBits(0b10, 2)
	b.WriteBits(0b111, 3)

	a.AppendAll(b)
	require.Equal(t, 4+5, a.BitsWritten())

	v, ok := a.ReadBits(4)
	require.True(t, ok)
	require.Equal(t, uint64(0b1101), v)
	v, ok = a.ReadBits(5)
	require.True(t, ok)
	require.Equal(t, uint64(0b10|0b111<<2), v)

	// other must be untouched by the append.
	require.Equal(t, 5, b.BitsWritten())
	require.Equal(t, 0, b.BitsRead())
}

func TestSizedSubStreamRoundTripsSmallAndLargePayloads(t *testing.T) {
	small := New()
	small.WriteBits(0xAB, 8)

	outer := New()
	outer.WriteSized(small)
	outer.WriteBit(true) // sentinel trailing bit to prove framing didn't overrun.

	got, ok := outer.ReadSized()
	require.True(t, ok)
	require.Equal(t, small.BitsWritten(), got.BitsWritten())
	v, ok := got.ReadBits(8)
	require.True(t, ok)
	require.Equal(t, uint64(0xAB), v)

	trailing, ok := outer.ReadBit()
	require.True(t, ok)
	require.True(t, trailing)

	large := New()
	for i := 0; i < lengthReserved+10; i++ {
		large.WriteBit(i%2 == 0)
	}
	outer2 := New()
	outer2.WriteSized(large)
	got2, ok := outer2.ReadSized()
	require.True(t, ok)
	require.Equal(t, large.BitsWritten(), got2.BitsWritten())
}
