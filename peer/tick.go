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

package peer

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/replicore/engine/bitstream"
	"github.com/replicore/engine/peerlink"
	"github.com/replicore/engine/replica"
	"github.com/replicore/engine/wire"
)

// ReorderBuffer holds packets that arrived out of sequence for one link,
// releasing them to the handler only once every prior sequence number has
// been delivered.
type ReorderBuffer struct {
	nextExpected uint32
	pending      map[uint32][]byte
}

// NewReorderBuffer starts a buffer expecting sequence 0 first.
func NewReorderBuffer() *ReorderBuffer {
	return &ReorderBuffer{pending: make(map[uint32][]byte)}
}

// Accept stashes a packet under its sequence number and returns, in
// order, every packet now releasable (seq == nextExpected, nextExpected+1,
// ...). A duplicate or already-delivered sequence is silently dropped.
func (b *ReorderBuffer) Accept(seq uint32, payload []byte) [][]byte {
	if seq < b.nextExpected {
		return nil
	}
	b.pending[seq] = payload
	var released [][]byte
	for {
		p, ok := b.pending[b.nextExpected]
		if !ok {
			break
		}
		released = append(released, p)
		delete(b.pending, b.nextExpected)
		b.nextExpected++
	}
	return released
}

// releaseKey identifies one (replica, channel) pair's release-ordering and
// outgoing-sequence state, scoped per link by the map it lives in.
type releaseKey struct {
	ObjectID    replica.ObjectID
	ChannelName string
}

// ReleaseBuffer reorders or releases inbound channel frames for one
// (link, replica, channel) tuple according to the channel's configured
// TransferMode, rather than assuming every channel wants Ordered's
// block-on-gap behavior: Ordered holds a frame back until every earlier
// sequence number has arrived (matching ReorderBuffer); Sequenced
// releases a frame the moment it arrives but drops one that shows up
// after a later sequence already has; Immediate releases every frame
// with no sequencing at all.
type ReleaseBuffer struct {
	mode         replica.TransferMode
	nextExpected uint32
	highest      uint32
	seenAny      bool
	pending      map[uint32]*bitstream.Stream
}

// NewReleaseBuffer starts a buffer dispatching release behavior on mode.
func NewReleaseBuffer(mode replica.TransferMode) *ReleaseBuffer {
	return &ReleaseBuffer{mode: mode, pending: make(map[uint32]*bitstream.Stream)}
}

// Accept stashes frame under seq and returns, in order, every frame now
// releasable under the buffer's TransferMode.
func (b *ReleaseBuffer) Accept(seq uint32, frame *bitstream.Stream) []*bitstream.Stream {
	switch b.mode {
	case replica.Immediate:
		return []*bitstream.Stream{frame}
	case replica.Sequenced:
		if b.seenAny && seq <= b.highest {
			return nil
		}
		b.seenAny = true
		b.highest = seq
		return []*bitstream.Stream{frame}
	default: // Ordered
		if seq < b.nextExpected {
			return nil
		}
		b.pending[seq] = frame
		var released []*bitstream.Stream
		for {
			f, ok := b.pending[b.nextExpected]
			if !ok {
				break
			}
			released = append(released, f)
			delete(b.pending, b.nextExpected)
			b.nextExpected++
		}
		return released
	}
}

// InboundFrame is one received channel frame awaiting release-ordering
// and deserialization, gathered by the caller from its transport before
// Tick runs so Tick itself never touches a transport.
type InboundFrame struct {
	ObjectID    replica.ObjectID
	ChannelName string
	Seq         uint32
	Frame       *bitstream.Stream
	RTTEstimate float64
}

// OutgoingFrame is one serialized channel frame ready for the caller to
// hand to its transport, tagged with the channel's configured Reliability
// so the transport can route it through a reliable or unreliable path.
type OutgoingFrame struct {
	ObjectID    replica.ObjectID
	ChannelName string
	Seq         uint32
	Frame       *bitstream.Stream
	Reliability replica.Reliability
}

// LinkWork is one link's queued handshake events, inbound channel frames,
// and observation request for the current net tick, gathered by the
// caller before Tick runs so Tick itself never touches a transport.
type LinkWork struct {
	LinkID        uint32
	HandshakeEvts []peerlink.Event
	// ChangeFrameBits is how many bits of replica-change data this link
	// has ready to send this tick, used against the bandwidth budget.
	ChangeFrameBits int
	FrameBudgetBits int

	// Now is the current sample time, used to drive channel detection
	// intervals, sampling, and serialized timestamps for this link.
	Now replica.SampleTime
	// ObjectIDs lists the replicas this link should observe this tick;
	// only channels CanObserve and ShouldSample allow through are sent.
	ObjectIDs []replica.ObjectID
	// Inbound is every channel frame this link received since the last
	// tick, handed to Tick for release-ordering and deserialization.
	Inbound []InboundFrame
	// InboundMessages is every non-channel wire frame this link received
	// since the last tick (level/game load signals, etc.), handed to Tick
	// for decoding into TickEvents.
	InboundMessages []InboundMessage
}

// InboundMessage is one raw wire frame this link received, not yet
// decoded: a message type tag plus its self-framed body.
type InboundMessage struct {
	Type wire.MessageType
	Body *bitstream.Stream
}

// TickResult is everything a net tick produced for the caller to act on:
// handshake side effects per link, which links were throttled, and the
// serialized channel frames observation produced for the caller's
// transport to send.
type TickResult struct {
	Outgoing       map[uint32][]peerlink.OutMessage
	Suppress       map[uint32]bool // true if this link's replication was skipped this tick
	Warnings       map[uint32]bool // true if this link crossed frameFillWarning
	FillRatio      map[uint32]float64
	ReplicationOut map[uint32][]OutgoingFrame
	Events         []TickEvent
}

// Tick processes one net tick for the given work items: handshake events,
// bandwidth-budget decisions, release and deserialization of inbound
// channel frames into registered replicas, sampling and serialization of
// outgoing channel frames (skipped for suppressed links), and decoding of
// inbound level/game load messages. It never touches the transport: the
// caller sends Outgoing and ReplicationOut through its own transport.
func (p *Peer) Tick(work []LinkWork) TickResult {
	result := TickResult{
		Outgoing:       make(map[uint32][]peerlink.OutMessage),
		Suppress:       make(map[uint32]bool),
		Warnings:       make(map[uint32]bool),
		FillRatio:      make(map[uint32]float64),
		ReplicationOut: make(map[uint32][]OutgoingFrame),
	}

	for _, w := range work {
		link, ok := p.links[w.LinkID]
		if !ok {
			continue
		}
		var out []peerlink.OutMessage
		for _, ev := range w.HandshakeEvts {
			_, produced := link.Advance(ev)
			out = append(out, produced...)
			for _, m := range produced {
				if m == peerlink.OutPublishLinkConnected && p.Metrics != nil {
					p.Metrics.HandshakeCompleted.Inc()
				}
			}
		}
		if len(out) > 0 {
			result.Outgoing[w.LinkID] = out
		}

		skip := frameFillSkip
		if p.BandwidthFillThreshold > 0 {
			skip = p.BandwidthFillThreshold
		}
		ratio := 0.0
		if w.FrameBudgetBits > 0 {
			ratio = float64(w.ChangeFrameBits) / float64(w.FrameBudgetBits)
		}
		result.FillRatio[w.LinkID] = ratio
		if p.Metrics != nil {
			p.Metrics.FrameFillRatio.Set(ratio)
		}
		if ratio >= frameFillWarning {
			result.Warnings[w.LinkID] = true
			log.WithFields(log.Fields{"link": w.LinkID, "fill": ratio}).Warn("peer: frame fill approaching budget")
		}
		if ratio >= skip {
			result.Suppress[w.LinkID] = true
			if p.Metrics != nil {
				p.Metrics.BandwidthSuppress.Inc()
			}
		}

		p.releaseInbound(w, result)
		if !result.Suppress[w.LinkID] {
			p.observeOutgoing(w, result)
		}
		result.Events = append(result.Events, dispatchInboundMessages(w)...)
	}
	return result
}

// dispatchInboundMessages decodes one link's non-channel wire frames
// (level/game load signals) into the TickEvents the peer's owner reacts
// to, returned through TickResult.Events rather than left as unread
// message-type tags.
func dispatchInboundMessages(w LinkWork) []TickEvent {
	var events []TickEvent
	for _, msg := range w.InboundMessages {
		switch msg.Type {
		case wire.MsgLevelLoadStarted:
			ll, err := wire.DecodeLevelLoad(msg.Body, true)
			if err != nil {
				log.WithFields(log.Fields{"link": w.LinkID}).Warn("peer: dropping malformed LevelLoadStarted: " + err.Error())
				continue
			}
			events = append(events, TickEvent{
				Kind: EventLevelLoadStarted, LinkID: w.LinkID,
				ReplicaID: replica.ObjectID(ll.ReplicaID), LevelResource: ll.LevelResource,
			})
		case wire.MsgLevelLoadFinished:
			ll, err := wire.DecodeLevelLoad(msg.Body, false)
			if err != nil {
				log.WithFields(log.Fields{"link": w.LinkID}).Warn("peer: dropping malformed LevelLoadFinished: " + err.Error())
				continue
			}
			events = append(events, TickEvent{
				Kind: EventLevelLoadFinished, LinkID: w.LinkID, ReplicaID: replica.ObjectID(ll.ReplicaID),
			})
		case wire.MsgGameLoadStarted:
			events = append(events, TickEvent{Kind: EventGameLoadStarted, LinkID: w.LinkID})
		case wire.MsgGameLoadFinished:
			events = append(events, TickEvent{Kind: EventGameLoadFinished, LinkID: w.LinkID})
		}
	}
	return events
}

// releaseInbound runs every inbound frame for this link through its
// (replica, channel)'s ReleaseBuffer and deserializes whatever that
// channel's TransferMode makes releasable this tick into the registered
// replica's property history.
func (p *Peer) releaseInbound(w LinkWork, result TickResult) {
	for _, in := range w.Inbound {
		r, ok := p.replicas[in.ObjectID]
		if !ok {
			continue
		}
		ch, ok := r.Channels[in.ChannelName]
		if !ok {
			continue
		}
		buf := p.releaseBufferFor(w.LinkID, in.ObjectID, in.ChannelName, ch.Config.Transfer)
		for _, frame := range buf.Accept(in.Seq, in.Frame) {
			if err := ch.Deserialize(frame, w.Now, in.RTTEstimate); err != nil {
				log.WithFields(log.Fields{"link": w.LinkID, "object": in.ObjectID, "channel": in.ChannelName}).
					Warn("peer: dropping malformed channel frame: " + err.Error())
			}
		}
	}
}

// releaseBufferFor returns (creating if absent) the ReleaseBuffer for one
// (link, replica, channel) tuple, built for mode the first time it is
// needed; a channel's TransferMode is fixed for its lifetime so the mode
// on an existing buffer is never changed underneath it.
func (p *Peer) releaseBufferFor(linkID uint32, objectID replica.ObjectID, channelName string, mode replica.TransferMode) *ReleaseBuffer {
	byKey, ok := p.releaseBuffers[linkID]
	if !ok {
		byKey = make(map[releaseKey]*ReleaseBuffer)
		p.releaseBuffers[linkID] = byKey
	}
	key := releaseKey{ObjectID: objectID, ChannelName: channelName}
	buf, ok := byKey[key]
	if !ok {
		buf = NewReleaseBuffer(mode)
		byKey[key] = buf
	}
	return buf
}

// observeOutgoing samples and serializes every channel this link's
// requested replicas expose to this peer, in deterministic (objectID,
// channel name) order, and appends the resulting frames to
// result.ReplicationOut.
func (p *Peer) observeOutgoing(w LinkWork, result TickResult) {
	localIsServer := p.Role == RoleServer
	ids := append([]replica.ObjectID(nil), w.ObjectIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, oid := range ids {
		r, ok := p.replicas[oid]
		if !ok || r.Owner == nil || !r.IsOnline() {
			continue
		}
		names := make([]string, 0, len(r.Channels))
		for name := range r.Channels {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ch := r.Channels[name]
			if !ch.CanObserve(localIsServer, p.LocalUserID) {
				continue
			}
			if !ch.ShouldSample(w.Now) {
				continue
			}
			mask := ch.ChangedMask(r.Owner, w.Now)
			changed := ch.Sample(r.Owner, w.Now)
			if !changed && ch.Config.Detection != replica.Assume {
				continue
			}

			frame := bitstream.New()
			if err := ch.Serialize(frame, r.Owner, w.Now, mask); err != nil {
				log.WithFields(log.Fields{"link": w.LinkID, "object": oid, "channel": name}).
					Warn("peer: failed to serialize channel frame: " + err.Error())
				continue
			}

			seq := p.nextOutSeq(w.LinkID, oid, name)
			result.ReplicationOut[w.LinkID] = append(result.ReplicationOut[w.LinkID], OutgoingFrame{
				ObjectID:    oid,
				ChannelName: name,
				Seq:         seq,
				Frame:       frame,
				Reliability: ch.Config.Reliability,
			})
		}
	}
}

// nextOutSeq returns the next outgoing sequence number for one (link,
// replica, channel) tuple, starting at 0 and incrementing every call.
func (p *Peer) nextOutSeq(linkID uint32, objectID replica.ObjectID, channelName string) uint32 {
	byKey, ok := p.outSeq[linkID]
	if !ok {
		byKey = make(map[releaseKey]uint32)
		p.outSeq[linkID] = byKey
	}
	key := releaseKey{ObjectID: objectID, ChannelName: channelName}
	seq := byKey[key]
	byKey[key] = seq + 1
	return seq
}
