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
	"fmt"

	"github.com/replicore/engine/bitstream"
)

// Event is a single user-defined event instance carried inside a Bundle.
// Name identifies the event type; Data is its serialized payload. At most
// one Event of a given Name may be present in a Bundle at a time.
type Event struct {
	Name string
	Data *bitstream.Stream
}

// Bundle is an ordered set of Events, at most one per event-type name. It
// is stored either as a single encoded bitstream (the wire form) or as a
// decoded slice of Events; Dirty tracks which form is authoritative so
// callers never pay to re-encode/re-decode unless the other form is
// actually needed.
type Bundle struct {
	events []Event
	wire   *bitstream.Stream
	dirty  bool // true: events slice is authoritative and wire needs re-encoding
}

// NewBundle returns an empty, decoded bundle.
func NewBundle() *Bundle {
	return &Bundle{dirty: true}
}

// FromWire wraps an already-encoded bundle without decoding it yet.
func FromWire(s *bitstream.Stream) *Bundle {
	return &Bundle{wire: s}
}

// Add inserts or replaces the event with the given name, enforcing the
// at-most-one-per-name invariant.
func (b *Bundle) Add(name string, data *bitstream.Stream) {
	b.ensureDecoded()
	for i := range b.events {
		if b.events[i].Name == name {
			b.events[i].Data = data
			b.dirty = true
			return
		}
	}
	b.events = append(b.events, Event{Name: name, Data: data})
	b.dirty = true
}

// Events returns the ordered events in this bundle, decoding the wire form
// on first access.
func (b *Bundle) Events() []Event {
	b.ensureDecoded()
	return b.events
}

// Get returns the event with the given name and whether it is present.
func (b *Bundle) Get(name string) (Event, bool) {
	for _, e := range b.Events() {
		if e.Name == name {
			return e, true
		}
	}
	return Event{}, false
}

// Len reports the number of distinct events currently in the bundle.
func (b *Bundle) Len() int {
	return len(b.Events())
}

func (b *Bundle) ensureDecoded() {
	if b.wire == nil || b.dirty || b.events != nil {
		return
	}
	if b.wire == nil {
		return
	}
	events, err := decodeEvents(b.wire)
	if err == nil {
		b.events = events
	}
	b.dirty = false
}

// Encode serializes the bundle to s: a quantized count, followed by each
// event's name length, name bytes, and sized payload.
func (b *Bundle) Encode(s *bitstream.Stream) error {
	events := b.Events()
	if len(events) > 0xffff {
		return fmt.Errorf("variant: event bundle too large (%d events)", len(events))
	}
	s.WriteBits(uint64(len(events)), 16)
	for _, e := range events {
		nameBytes := []byte(e.Name)
		if len(nameBytes) > 0xff {
			return fmt.Errorf("variant: event name %q too long", e.Name)
		}
		s.WriteBits(uint64(len(nameBytes)), 8)
		for _, c := range nameBytes {
			s.WriteBits(uint64(c), 8)
		}
		if e.Data == nil {
			s.WriteSized(bitstream.New())
		} else {
			s.WriteSized(e.Data)
		}
	}
	return nil
}

// DecodeBundle reads a bundle written by Encode, returning a fresh decoded Bundle.
func DecodeBundle(s *bitstream.Stream) (*Bundle, error) {
	events, err := decodeEvents(s)
	if err != nil {
		return nil, err
	}
	return &Bundle{events: events}, nil
}

func decodeEvents(s *bitstream.Stream) ([]Event, error) {
	count, ok := s.ReadBits(16)
	if !ok {
		return nil, fmt.Errorf("variant: short read decoding event bundle count")
	}
	events := make([]Event, 0, count)
	seen := make(map[string]bool, count)
	for i := uint64(0); i < count; i++ {
		nameLen, ok := s.ReadBits(8)
		if !ok {
			return nil, fmt.Errorf("variant: short read decoding event name length")
		}
		name := make([]byte, nameLen)
		for j := range name {
			c, ok := s.ReadBits(8)
			if !ok {
				return nil, fmt.Errorf("variant: short read decoding event name bytes")
			}
			name[j] = byte(c)
		}
		data, ok := s.ReadSized()
		if !ok {
			return nil, fmt.Errorf("variant: short read decoding event payload")
		}
		n := string(name)
		if seen[n] {
			return nil, fmt.Errorf("variant: duplicate event %q in bundle", n)
		}
		seen[n] = true
		events = append(events, Event{Name: n, Data: data})
	}
	return events, nil
}
