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

// Package variant implements the dynamically-typed value container
// (Variant) and the ordered user-event container (EventBundle) that ride
// inside replicated messages. Variant never writes its own type tag: the
// reader and writer must already agree on the expected Type, the same
// contract the scripting/reflection layer's Property metadata gives the
// replicator for channel values.
package variant

import (
	"fmt"

	"github.com/replicore/engine/bitstream"
	"github.com/replicore/engine/physics/vecmath"
)

// Type identifies the shape a Variant holds. It does not appear on the
// wire; both sides derive it out of band (a channel property's configured
// type, or an event's registered schema).
type Type uint8

const (
	// TypeBool holds a boolean scalar.
	TypeBool Type = iota
	// TypeInt holds a 64-bit signed integer scalar.
	TypeInt
	// TypeReal holds a 64-bit floating point scalar.
	TypeReal
	// TypeVector3 holds a 3-component real vector.
	TypeVector3
	// TypeQuaternion holds a unit quaternion.
	TypeQuaternion
	// TypeEnum holds an integer bound to an enum cardinality.
	TypeEnum
	// TypeResource holds a 64-bit resource reference id.
	TypeResource
	// TypeBitStream holds a nested, self-framed bitstream blob.
	TypeBitStream
)

// EnumCardinality is a Type-parameterized hint recording how many distinct
// values an enum-typed Variant may take; it is what lets TypeEnum be
// quantized to exactly the bits it needs instead of a generic fixed width.
type EnumCardinality = uint32

// Variant is a tagged union of the scalar/compound value kinds the
// replication property system moves across the wire. The zero Variant is
// TypeBool(false).
type Variant struct {
	kind Type

	b        bool
	i        int64
	r        float64
	v3       vecmath.Vec3
	q        vecmath.Quat
	enumCard EnumCardinality
	resID    uint64
	stream   *bitstream.Stream
}

// Kind reports the Variant's current Type.
func (v Variant) Kind() Type { return v.kind }

// Bool builds a TypeBool Variant.
func Bool(b bool) Variant { return Variant{kind: TypeBool, b: b} }

// Int builds a TypeInt Variant.
func Int(i int64) Variant { return Variant{kind: TypeInt, i: i} }

// Real builds a TypeReal Variant.
func Real(r float64) Variant { return Variant{kind: TypeReal, r: r} }

// Vector3 builds a TypeVector3 Variant.
func Vector3(v vecmath.Vec3) Variant { return Variant{kind: TypeVector3, v3: v} }

// Quaternion builds a TypeQuaternion Variant.
func Quaternion(q vecmath.Quat) Variant { return Variant{kind: TypeQuaternion, q: q} }

// Enum builds a TypeEnum Variant bound to the given cardinality; value
// must be in [0, cardinality).
func Enum(value int64, cardinality EnumCardinality) Variant {
	return Variant{kind: TypeEnum, i: value, enumCard: cardinality}
}

// Resource builds a TypeResource Variant referencing a 64-bit resource id.
func Resource(id uint64) Variant { return Variant{kind: TypeResource, resID: id} }

// BitStream builds a TypeBitStream Variant wrapping a nested stream.
func BitStream(s *bitstream.Stream) Variant { return Variant{kind: TypeBitStream, stream: s} }

// AsBool returns the boolean value; only meaningful when Kind()==TypeBool.
func (v Variant) AsBool() bool { return v.b }

// AsInt returns the integer value; meaningful for TypeInt and TypeEnum.
func (v Variant) AsInt() int64 { return v.i }

// AsReal returns the real value; only meaningful when Kind()==TypeReal.
func (v Variant) AsReal() float64 { return v.r }

// AsVector3 returns the vector value; only meaningful when Kind()==TypeVector3.
func (v Variant) AsVector3() vecmath.Vec3 { return v.v3 }

// AsQuaternion returns the quaternion value; only meaningful when Kind()==TypeQuaternion.
func (v Variant) AsQuaternion() vecmath.Quat { return v.q }

// EnumCardinality returns the bound cardinality of an enum Variant.
func (v Variant) EnumCardinality() EnumCardinality { return v.enumCard }

// AsResourceID returns the resource id; only meaningful when Kind()==TypeResource.
func (v Variant) AsResourceID() uint64 { return v.resID }

// AsBitStream returns the nested stream; only meaningful when Kind()==TypeBitStream.
func (v Variant) AsBitStream() *bitstream.Stream { return v.stream }

// Equal reports whether two Variants of the same Kind hold equal values.
// Variants of differing Kind are never equal.
func (v Variant) Equal(o Variant) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case TypeBool:
		return v.b == o.b
	case TypeInt, TypeEnum:
		return v.i == o.i && v.enumCard == o.enumCard
	case TypeReal:
		return v.r == o.r
	case TypeVector3:
		return v.v3 == o.v3
	case TypeQuaternion:
		return v.q == o.q
	case TypeResource:
		return v.resID == o.resID
	case TypeBitStream:
		return v.stream.BitsWritten() == o.stream.BitsWritten()
	default:
		return false
	}
}

// Encode writes v's value (never its type tag) to s.
func Encode(s *bitstream.Stream, v Variant) error {
	switch v.kind {
	case TypeBool:
		s.WriteBit(v.b)
	case TypeInt:
		s.WriteInt32(int32(v.i))
	case TypeReal:
		s.WriteFloat32(float32(v.r))
	case TypeVector3:
		s.WriteFloat32(float32(v.v3.X))
		s.WriteFloat32(float32(v.v3.Y))
		s.WriteFloat32(float32(v.v3.Z))
	case TypeQuaternion:
		s.WriteFloat32(float32(v.q.X))
		s.WriteFloat32(float32(v.q.Y))
		s.WriteFloat32(float32(v.q.Z))
		s.WriteFloat32(float32(v.q.W))
	case TypeEnum:
		width := enumBitWidth(v.enumCard)
		s.WriteBits(uint64(v.i), width)
	case TypeResource:
		s.WriteUint64(v.resID)
	case TypeBitStream:
		s.WriteSized(v.stream)
	default:
		return fmt.Errorf("variant: unknown type %d", v.kind)
	}
	return nil
}

// Decode reads a value of the given expected kind from s, using cardinality
// when decoding a TypeEnum. Decode never looks at any tag on the wire; the
// caller supplies the expected kind out of band, matching how a replica
// channel's property already knows the type it serializes.
func Decode(s *bitstream.Stream, kind Type, cardinality EnumCardinality) (Variant, bool) {
	switch kind {
	case TypeBool:
		b, ok := s.ReadBit()
		return Bool(b), ok
	case TypeInt:
		i, ok := s.ReadInt32()
		return Int(int64(i)), ok
	case TypeReal:
		f, ok := s.ReadFloat32()
		return Real(float64(f)), ok
	case TypeVector3:
		x, ok1 := s.ReadFloat32()
		y, ok2 := s.ReadFloat32()
		z, ok3 := s.ReadFloat32()
		if !(ok1 && ok2 && ok3) {
			return Variant{}, false
		}
		return Vector3(vecmath.Vec3{X: float64(x), Y: float64(y), Z: float64(z)}), true
	case TypeQuaternion:
		x, ok1 := s.ReadFloat32()
		y, ok2 := s.ReadFloat32()
		z, ok3 := s.ReadFloat32()
		w, ok4 := s.ReadFloat32()
		if !(ok1 && ok2 && ok3 && ok4) {
			return Variant{}, false
		}
		return Quaternion(vecmath.Quat{X: float64(x), Y: float64(y), Z: float64(z), W: float64(w)}), true
	case TypeEnum:
		width := enumBitWidth(cardinality)
		i, ok := s.ReadBits(width)
		if !ok {
			return Variant{}, false
		}
		return Enum(int64(i), cardinality), true
	case TypeResource:
		id, ok := s.ReadUint64()
		return Resource(id), ok
	case TypeBitStream:
		nested, ok := s.ReadSized()
		return BitStream(nested), ok
	default:
		return Variant{}, false
	}
}

func enumBitWidth(cardinality EnumCardinality) int {
	if cardinality <= 1 {
		return 1
	}
	width := 0
	for (uint32(1) << uint(width)) < cardinality {
		width++
	}
	return width
}
