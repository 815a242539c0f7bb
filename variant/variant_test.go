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

package variant

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/bitstream"
	"github.com/replicore/engine/physics/vecmath"
)

func TestVariantTypeFidelityRoundTrip(t *testing.T) {
	cases := []Variant{
		Bool(true),
		Bool(false),
		Int(-12345),
		Real(3.5),
		Vector3(vecmath.Vec3{X: 1, Y: -2, Z: 3.5}),
		Quaternion(vecmath.Quat{X: 0, Y: 0, Z: 0, W: 1}),
		Enum(5, 8),
		Resource(0xCAFEBABEDEADBEEF),
	}
	for _, v := range cases {
		s := bitstream.New()
		require.NoError(t, Encode(s, v))
		got, ok := Decode(s, v.Kind(), v.EnumCardinality())
		require.True(t, ok)
		require.True(t, v.Equal(got), "kind %v: want %+v got %+v", v.Kind(), v, got)
	}
}

func TestVariantBitStreamRoundTrip(t *testing.T) {
	payload := bitstream.New()
	payload.WriteBits(0x1234, 16)
	v := BitStream(payload)

	s := bitstream.New()
	require.NoError(t, Encode(s, v))
	got, ok := Decode(s, TypeBitStream, 0)
	require.True(t, ok)
	n, ok := got.AsBitStream().ReadBits(16)
	require.True(t, ok)
	require.Equal(t, uint64(0x1234), n)
}

func TestEventBundleAtMostOnePerName(t *testing.T) {
	b := NewBundle()
	b.Add("Hit", bitstream.New())
	d1 := bitstream.New()
	d1.WriteBits(7, 4)
	b.Add("Hit", d1)

	require.Equal(t, 1, b.Len())
	e, ok := b.Get("Hit")
	require.True(t, ok)
	v, ok := e.Data.ReadBits(4)
	require.True(t, ok)
	require.Equal(t, uint64(7), v)
}

func TestEventBundleEncodeDecodeOrdering(t *testing.T) {
	b := NewBundle()
	b.Add("First", bitstream.New())
	d := bitstream.New()
	d.WriteBit(true)
	b.Add("Second", d)

	s := bitstream.New()
	require.NoError(t, b.Encode(s))

	got, err := DecodeBundle(s)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	require.Equal(t, "First", got.Events()[0].Name)
	require.Equal(t, "Second", got.Events()[1].Name)
}

func TestEventBundleRejectsDuplicateNamesOnDecode(t *testing.T) {
	s := bitstream.New()
	s.WriteBits(2, 16)
	for i := 0; i < 2; i++ {
		s.WriteBits(3, 8)
		for _, c := range []byte("Dup") {
			s.WriteBits(uint64(c), 8)
		}
		s.WriteSized(bitstream.New())
	}
	_, err := DecodeBundle(s)
	require.Error(t, err)
}
