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

package replica

import (
	"math"

	"github.com/replicore/engine/bitstream"
	"github.com/replicore/engine/physics/vecmath"
	"github.com/replicore/engine/propaccess"
	"github.com/replicore/engine/variant"
)

// Reliability picks the retransmission policy for a channel's properties.
type Reliability uint8

const (
	// Unreliable messages may be lost without retransmission.
	Unreliable Reliability = iota
	// Reliable messages are retransmitted until acknowledged.
	Reliable
)

// TransferMode picks how a link releases received channel messages to
// handlers relative to send order.
type TransferMode uint8

const (
	// Immediate releases a message to its handler as soon as it arrives,
	// regardless of ordering relative to other messages.
	Immediate TransferMode = iota
	// Sequenced drops messages that arrive after a later one already has,
	// but otherwise never blocks waiting for gaps to fill.
	Sequenced
	// Ordered blocks release until every preceding message has arrived.
	Ordered
)

// SampleTime is a monotonic simulation/wall time, measured in seconds,
// used for property history timestamps and interpolation.
type SampleTime float64

// Sample is one (timestamp, value) entry in a property's history buffer.
type Sample struct {
	Timestamp SampleTime
	Value     variant.Variant
}

// Config configures a single ReplicaProperty. Combinations flagged in the
// specification as programmer misuse (HalfFloat together with Quantized)
// are rejected by NewProperty.
type Config struct {
	Reliability    Reliability
	Transfer       TransferMode
	DeltaThreshold float64

	HalfFloat bool

	Quantized    bool
	QuantMin     float64
	QuantMax     float64
	QuantStep    float64

	// SampleTimeOffset shifts the interpolation query point relative to
	// "now" (typically negative, to render slightly in the past where
	// enough samples have arrived to interpolate between).
	SampleTimeOffset float64
	// ExtrapolationLimit bounds how long, past the last received sample,
	// the value keeps extrapolating before freezing.
	ExtrapolationLimit float64

	ActiveConvergenceWeight   float64
	RestingConvergenceWeight  float64
	RestingConvergenceAfter   float64 // duration of no-change before using the resting weight
	SnapThreshold             float64

	// HistoryCapacity bounds the number of retained samples; 0 means a
	// reasonable engine default (16) is used.
	HistoryCapacity int
}

// ReplicaProperty tracks one named, typed value: its change-detection
// state on the sending side, and its sample history/convergence state on
// the receiving side. The same struct plays both roles because a
// server-authoritative peer observes its own locally-simulated value while
// a client observes the arriving samples for the same property.
type ReplicaProperty struct {
	Accessor propaccess.Accessor
	Config   Config

	history        []Sample
	lastSentValue  variant.Variant
	lastChangeTime SampleTime
	hasLastSent    bool

	// convergenceError accumulates how far the locally simulated value has
	// been pulled from the authoritative sample, reset to zero by a snap.
	convergenceError float64
	convergedSince   SampleTime
}

// NewProperty validates cfg and returns a ready ReplicaProperty.
func NewProperty(accessor propaccess.Accessor, cfg Config) (*ReplicaProperty, error) {
	if cfg.HalfFloat && cfg.Quantized {
		return nil, &ErrInvalidConfig{Reason: "half-float and quantization cannot both be enabled on one property"}
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = 16
	}
	return &ReplicaProperty{Accessor: accessor, Config: cfg}, nil
}

// DetectChange samples the owner's current value via Accessor.Get and
// reports whether it differs from the last value sent by more than
// DeltaThreshold. It does not itself mark the value as sent;
// ReplicaChannel.Sample calls MarkSent for each value it finds changed.
func (p *ReplicaProperty) DetectChange(owner propaccess.Owner, now SampleTime) (value variant.Variant, changed bool) {
	value = p.Accessor.Get(owner)
	if !p.hasLastSent {
		return value, true
	}
	changed = variantDelta(p.lastSentValue, value) > p.Config.DeltaThreshold
	return value, changed
}

// MarkSent records value as the last value sent on the wire at time now.
func (p *ReplicaProperty) MarkSent(value variant.Variant, now SampleTime) {
	p.lastSentValue = value
	p.hasLastSent = true
	p.lastChangeTime = now
}

// variantDelta returns a scalar magnitude of difference between two
// Variants of the same Kind, used against DeltaThreshold. Int, enum, bool
// and resource values are treated as either identical (0) or maximally
// different (+Inf); nested bitstreams always compare as +Inf.
func variantDelta(a, b variant.Variant) float64 {
	if a.Kind() != b.Kind() {
		return math.Inf(1)
	}
	switch a.Kind() {
	case variant.TypeReal:
		return math.Abs(a.AsReal() - b.AsReal())
	case variant.TypeInt, variant.TypeEnum:
		if a.AsInt() == b.AsInt() {
			return 0
		}
		return math.Inf(1)
	case variant.TypeVector3:
		return a.AsVector3().Distance(b.AsVector3())
	case variant.TypeQuaternion:
		aq, bq := a.AsQuaternion(), b.AsQuaternion()
		dot := aq.X*bq.X + aq.Y*bq.Y + aq.Z*bq.Z + aq.W*bq.W
		if dot < 0 {
			dot = -dot
		}
		return 1 - dot
	case variant.TypeBool:
		if a.AsBool() == b.AsBool() {
			return 0
		}
		return math.Inf(1)
	case variant.TypeResource:
		if a.AsResourceID() == b.AsResourceID() {
			return 0
		}
		return math.Inf(1)
	default:
		return math.Inf(1)
	}
}

// EncodeValue serializes value to s using this property's half-float or
// quantized configuration, falling back to the type's unquantized codec
// when neither is configured.
func (p *ReplicaProperty) EncodeValue(s *bitstream.Stream, value variant.Variant) error {
	switch {
	case p.Config.HalfFloat && value.Kind() == variant.TypeReal:
		s.WriteHalf(float32(value.AsReal()))
		return nil
	case p.Config.HalfFloat && value.Kind() == variant.TypeVector3:
		v := value.AsVector3()
		s.WriteHalf(float32(v.X))
		s.WriteHalf(float32(v.Y))
		s.WriteHalf(float32(v.Z))
		return nil
	case p.Config.Quantized && value.Kind() == variant.TypeReal:
		return s.WriteQuantizedFloat(value.AsReal(), p.Config.QuantMin, p.Config.QuantMax, quantStepOrDefault(p.Config.QuantStep))
	case p.Config.Quantized && value.Kind() == variant.TypeVector3:
		v := value.AsVector3()
		step := quantStepOrDefault(p.Config.QuantStep)
		if err := s.WriteQuantizedFloat(v.X, p.Config.QuantMin, p.Config.QuantMax, step); err != nil {
			return err
		}
		if err := s.WriteQuantizedFloat(v.Y, p.Config.QuantMin, p.Config.QuantMax, step); err != nil {
			return err
		}
		return s.WriteQuantizedFloat(v.Z, p.Config.QuantMin, p.Config.QuantMax, step)
	default:
		return variant.Encode(s, value)
	}
}

// DecodeValue is the symmetric reader for EncodeValue.
func (p *ReplicaProperty) DecodeValue(s *bitstream.Stream) (variant.Variant, bool) {
	switch {
	case p.Config.HalfFloat && p.Accessor.Type() == variant.TypeReal:
		f, ok := s.ReadHalf()
		return variant.Real(float64(f)), ok
	case p.Config.HalfFloat && p.Accessor.Type() == variant.TypeVector3:
		x, ok1 := s.ReadHalf()
		y, ok2 := s.ReadHalf()
		z, ok3 := s.ReadHalf()
		if !(ok1 && ok2 && ok3) {
			return variant.Variant{}, false
		}
		return variant.Vector3(vecmath.Vec3{X: float64(x), Y: float64(y), Z: float64(z)}), true
	case p.Config.Quantized && p.Accessor.Type() == variant.TypeReal:
		v, ok := s.ReadQuantizedFloat(p.Config.QuantMin, p.Config.QuantMax, quantStepOrDefault(p.Config.QuantStep))
		return variant.Real(v), ok
	case p.Config.Quantized && p.Accessor.Type() == variant.TypeVector3:
		step := quantStepOrDefault(p.Config.QuantStep)
		x, ok1 := s.ReadQuantizedFloat(p.Config.QuantMin, p.Config.QuantMax, step)
		y, ok2 := s.ReadQuantizedFloat(p.Config.QuantMin, p.Config.QuantMax, step)
		z, ok3 := s.ReadQuantizedFloat(p.Config.QuantMin, p.Config.QuantMax, step)
		if !(ok1 && ok2 && ok3) {
			return variant.Variant{}, false
		}
		return variant.Vector3(vecmath.Vec3{X: x, Y: y, Z: z}), true
	default:
		return variant.Decode(s, p.Accessor.Type(), p.Accessor.EnumCardinality())
	}
}

func quantStepOrDefault(step float64) float64 {
	if step <= 0 {
		return 0.001
	}
	return step
}

// AppendReceived appends a newly-received (timestamp, value) sample to the
// history buffer, trimming the oldest entries beyond HistoryCapacity.
func (p *ReplicaProperty) AppendReceived(ts SampleTime, value variant.Variant) {
	p.history = append(p.history, Sample{Timestamp: ts, Value: value})
	if excess := len(p.history) - p.Config.HistoryCapacity; excess > 0 {
		p.history = p.history[excess:]
	}
}

// History returns the retained samples, oldest first.
func (p *ReplicaProperty) History() []Sample { return p.history }

// Interpolated returns the value visible locally at time
// now+SampleTimeOffset: linear interpolation between the two bracketing
// samples, extrapolation of the last segment's trend for up to
// ExtrapolationLimit seconds past the newest sample, and a frozen value
// beyond that.
func (p *ReplicaProperty) Interpolated(now SampleTime) (variant.Variant, bool) {
	if len(p.history) == 0 {
		return variant.Variant{}, false
	}
	query := now + SampleTime(p.Config.SampleTimeOffset)
	h := p.history

	if query <= h[0].Timestamp {
		return h[0].Value, true
	}
	for i := 0; i+1 < len(h); i++ {
		a, b := h[i], h[i+1]
		if query >= a.Timestamp && query <= b.Timestamp {
			span := float64(b.Timestamp - a.Timestamp)
			if span <= 0 {
				return b.Value, true
			}
			t := float64(query-a.Timestamp) / span
			return lerpVariant(a.Value, b.Value, t), true
		}
	}

	last := h[len(h)-1]
	overshoot := float64(query - last.Timestamp)
	if overshoot <= 0 {
		return last.Value, true
	}
	if overshoot > p.Config.ExtrapolationLimit {
		return last.Value, true // frozen
	}
	if len(h) < 2 {
		return last.Value, true
	}
	prev := h[len(h)-2]
	span := float64(last.Timestamp - prev.Timestamp)
	if span <= 0 {
		return last.Value, true
	}
	t := 1 + overshoot/span
	return lerpVariant(prev.Value, last.Value, t), true
}

func lerpVariant(a, b variant.Variant, t float64) variant.Variant {
	if a.Kind() != b.Kind() {
		return b
	}
	switch a.Kind() {
	case variant.TypeReal:
		return variant.Real(a.AsReal() + (b.AsReal()-a.AsReal())*t)
	case variant.TypeVector3:
		return variant.Vector3(a.AsVector3().Lerp(b.AsVector3(), t))
	case variant.TypeQuaternion:
		// Linear blend + re-normalize; adequate for the small per-frame
		// deltas this interpolation window spans.
		aq, bq := a.AsQuaternion(), b.AsQuaternion()
		blended := vecmath.Quat{
			X: aq.X + (bq.X-aq.X)*t,
			Y: aq.Y + (bq.Y-aq.Y)*t,
			Z: aq.Z + (bq.Z-aq.Z)*t,
			W: aq.W + (bq.W-aq.W)*t,
		}
		return variant.Quaternion(blended.Normalized())
	default:
		return b
	}
}

// Converge blends simulated toward target by one convergence interval,
// using the active weight while still converging and the resting weight
// once RestingConvergenceAfter has elapsed without needing correction; if
// the discrepancy exceeds SnapThreshold the value is set directly and the
// convergence timer resets, per the specification's snap rule.
func (p *ReplicaProperty) Converge(simulated, target variant.Variant, dt float64, now SampleTime) variant.Variant {
	delta := variantDelta(simulated, target)
	if math.IsInf(delta, 1) {
		return target
	}
	if delta > p.Config.SnapThreshold {
		p.convergenceError = 0
		p.convergedSince = now
		return target
	}

	weight := p.Config.ActiveConvergenceWeight
	if float64(now-p.convergedSince) >= p.Config.RestingConvergenceAfter {
		weight = p.Config.RestingConvergenceWeight
	}
	if delta > 1e-9 {
		p.convergenceError = delta
		p.convergedSince = now
	} else {
		p.convergenceError = 0
	}

	t := vecmath.Clamp(weight*dt, 0, 1)
	return lerpVariant(simulated, target, t)
}

// ConvergenceError reports the most recently observed discrepancy, for
// diagnostics.
func (p *ReplicaProperty) ConvergenceError() float64 { return p.convergenceError }
