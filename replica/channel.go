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
	"fmt"

	"github.com/replicore/engine/bitstream"
	"github.com/replicore/engine/propaccess"
)

// DetectionMode picks how a channel decides whether to resample its
// properties this frame.
type DetectionMode uint8

const (
	// Assume always treats the channel as changed; useful for channels
	// whose properties are cheap and always expected to move.
	Assume DetectionMode = iota
	// Manual only samples when the game explicitly calls MarkDirty.
	Manual
	// Automatic resamples every property on its own detection interval.
	Automatic
	// Manumatic combines Manual's explicit dirtying with Automatic's
	// periodic resampling.
	Manumatic
)

// Authority identifies which peer may originate changes for a channel.
type Authority struct {
	// Server is true when only the server peer may observe/serialize this
	// channel.
	Server bool
	// OwningUser is set when Server is false: the named user's peer may
	// observe and serialize, with the server relaying (never echoing back
	// to the author).
	OwningUser UserID
	// Dynamic, when true, allows authority to be reassigned after
	// online-time; otherwise authority is fixed once a replica goes online.
	Dynamic bool
}

// IsClientAuthority reports whether authority belongs to a specific user
// rather than the server.
func (a Authority) IsClientAuthority() bool { return !a.Server }

// ChannelConfig configures a ReplicaChannel.
type ChannelConfig struct {
	Name       string
	Authority  Authority
	Detection  DetectionMode

	// Reliability and Transfer govern how this channel's serialized frames
	// are retransmitted and released to handlers on the receiving end; a
	// peer dispatches release behavior on Transfer rather than assuming
	// Ordered for every channel.
	Reliability Reliability
	Transfer    TransferMode

	AwakeDetectionInterval float64 // seconds between samples while awake
	NapDetectionInterval   float64 // seconds between samples while napping
	AwakeDuration          int     // frames without change before napping

	ReplicateOnOnline  bool
	ReplicateOnChange  bool
	ReplicateOnOffline bool

	AccurateTimestampOnChange bool
}

// ReplicaChannel is an ordered set of properties replicated together under
// one reliability/transfer/authority policy.
type ReplicaChannel struct {
	Config     ChannelConfig
	Properties []*ReplicaProperty

	napping        bool
	framesIdle     int
	lastSampleTime SampleTime
	dirty          bool
}

// NewChannel builds a channel from the given config and properties, in
// the channel's serialization order.
func NewChannel(cfg ChannelConfig, props ...*ReplicaProperty) *ReplicaChannel {
	return &ReplicaChannel{Config: cfg, Properties: props}
}

// MarkDirty flags the channel as needing resampling regardless of
// detection interval, used by Manual/Manumatic detection.
func (c *ReplicaChannel) MarkDirty() { c.dirty = true }

// detectionInterval returns the currently-applicable sampling interval,
// accounting for nap state.
func (c *ReplicaChannel) detectionInterval() float64 {
	if c.napping {
		return c.Config.NapDetectionInterval
	}
	return c.Config.AwakeDetectionInterval
}

// ShouldSample reports whether enough time has elapsed (or the channel was
// explicitly marked dirty, or Detection==Assume) for this channel to be
// resampled at time now.
func (c *ReplicaChannel) ShouldSample(now SampleTime) bool {
	switch c.Config.Detection {
	case Assume:
		return true
	case Manual:
		return c.dirty
	case Manumatic:
		if c.dirty {
			return true
		}
		return float64(now-c.lastSampleTime) >= c.detectionInterval()
	default: // Automatic
		return float64(now-c.lastSampleTime) >= c.detectionInterval()
	}
}

// Sample re-reads every property off owner at time now. It returns true if
// any property changed by more than its DeltaThreshold; when
// ReplicateOnChange is configured and a change was detected, the caller
// should schedule serialization. Sampling always resets the dirty flag and
// advances the nap/awake bookkeeping.
func (c *ReplicaChannel) Sample(owner propaccess.Owner, now SampleTime) bool {
	c.lastSampleTime = now
	c.dirty = false

	anyChanged := false
	for _, p := range c.Properties {
		value, changed := p.DetectChange(owner, now)
		if changed {
			p.MarkSent(value, now)
			anyChanged = true
		}
	}

	if anyChanged {
		c.framesIdle = 0
		c.napping = false
	} else {
		c.framesIdle++
		if c.framesIdle >= c.Config.AwakeDuration && c.Config.AwakeDuration > 0 {
			c.napping = true
		}
	}
	return anyChanged
}

// Serialize writes the channel's properties to s following the
// detection-mode wire rule: "all" writes every property unconditionally;
// "changed"-style modes write one presence bit before each property,
// followed by its value only when it changed. An accurate-timestamp presence
// bit is written first, followed by a quantized time only when present.
func (c *ReplicaChannel) Serialize(s *bitstream.Stream, owner propaccess.Owner, now SampleTime, changedMask []bool) error {
	hasTimestamp := c.Config.AccurateTimestampOnChange
	s.WriteBit(hasTimestamp)
	if hasTimestamp {
		if err := s.WriteQuantizedFloat(float64(now), 0, 1<<20, 0.001); err != nil {
			return err
		}
	}

	writeAll := c.Config.Detection == Assume
	for i, p := range c.Properties {
		present := writeAll || (changedMask != nil && i < len(changedMask) && changedMask[i])
		if !writeAll {
			s.WriteBit(present)
		}
		if !present {
			continue
		}
		value := p.Accessor.Get(owner)
		if err := p.EncodeValue(s, value); err != nil {
			return fmt.Errorf("replica: channel %q property %q: %w", c.Config.Name, p.Accessor.Name(), err)
		}
	}
	return nil
}

// Deserialize reads a channel frame written by Serialize, appending each
// present property's value to its receive history at the frame's
// timestamp (estimated from rtt when no accurate timestamp was sent).
func (c *ReplicaChannel) Deserialize(s *bitstream.Stream, now SampleTime, rttEstimate float64) error {
	hasTimestamp, ok := s.ReadBit()
	if !ok {
		return fmt.Errorf("replica: channel %q: short read on timestamp presence", c.Config.Name)
	}
	ts := now
	if hasTimestamp {
		t, ok := s.ReadQuantizedFloat(0, 1<<20, 0.001)
		if !ok {
			return fmt.Errorf("replica: channel %q: short read on timestamp", c.Config.Name)
		}
		ts = SampleTime(t)
	} else {
		ts = now - SampleTime(rttEstimate/2)
	}

	writeAll := c.Config.Detection == Assume
	for _, p := range c.Properties {
		present := writeAll
		if !writeAll {
			b, ok := s.ReadBit()
			if !ok {
				return fmt.Errorf("replica: channel %q property %q: short read on presence bit", c.Config.Name, p.Accessor.Name())
			}
			present = b
		}
		if !present {
			continue
		}
		value, ok := p.DecodeValue(s)
		if !ok {
			return fmt.Errorf("replica: channel %q property %q: short read on value", c.Config.Name, p.Accessor.Name())
		}
		p.AppendReceived(ts, value)
	}
	return nil
}

// ChangedMask returns, for each property in order, whether owner's current
// value differs from the last sent value, by running DetectChange without
// marking anything sent. Sample marks changed values as sent, so the mask
// passed to Serialize is taken before Sample; taken after it, the mask
// reads false for every property Sample just marked.
func (c *ReplicaChannel) ChangedMask(owner propaccess.Owner, now SampleTime) []bool {
	mask := make([]bool, len(c.Properties))
	for i, p := range c.Properties {
		_, changed := p.DetectChange(owner, now)
		mask[i] = changed
	}
	return mask
}

// IsNapping reports whether the channel is currently sampling at the
// longer nap interval.
func (c *ReplicaChannel) IsNapping() bool { return c.napping }

// CanObserve reports whether the peer identified by localIsServer/localUser
// may observe (and thus serialize) this channel's authoritative changes.
func (c *ReplicaChannel) CanObserve(localIsServer bool, localUser UserID) bool {
	if c.Config.Authority.Server {
		return localIsServer
	}
	return localIsServer || localUser == c.Config.Authority.OwningUser
}
