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

// Package wire implements the outbound frame/message format: a packet is
// a concatenation of bit-aligned messages, each beginning with a
// quantized message-type tag. Every message that may be concatenated with
// others carries an explicit bitstream length prefix (the decision
// recorded for the specification's HostRecordList framing open question,
// generalized to every appendable message).
package wire

import (
	"fmt"
	"net"

	"github.com/replicore/engine/bitstream"
	"github.com/replicore/engine/variant"
)

// MessageType enumerates the ~12 known message kinds.
type MessageType uint8

const (
	MsgNetEvent MessageType = iota
	MsgUserAddRequest
	MsgUserAddResponse
	MsgUserRemoveRequest
	MsgLevelLoadStarted
	MsgLevelLoadFinished
	// MsgGameLoadStarted and MsgGameLoadFinished carry no body: unlike
	// LevelLoadStarted/Finished, the originating signal is bodyless, so a
	// sender frames them with an empty bitstream (Frame(s, MsgGameLoadStarted,
	// bitstream.New())) and peer.Peer dispatches them as bare TickEvents.
	MsgGameLoadStarted
	MsgGameLoadFinished
	MsgHostPing
	MsgHostPong
	MsgHostRecordList
	MsgHostPublish

	messageTypeCount
)

const messageTypeBits = 4 // quantized over ~12 known types

// WriteType writes a message type tag quantized over the known enum.
func WriteType(s *bitstream.Stream, t MessageType) {
	s.WriteBits(uint64(t), messageTypeBits)
}

// ReadType reads a message type tag.
func ReadType(s *bitstream.Stream) (MessageType, bool) {
	v, ok := s.ReadBits(messageTypeBits)
	if !ok || v >= uint64(messageTypeCount) {
		return 0, false
	}
	return MessageType(v), true
}

// Frame wraps one message body with its type tag and an explicit length
// prefix, so a packet can concatenate frames and a reader can always skip
// a malformed one without desynchronizing the rest of the packet.
func Frame(s *bitstream.Stream, t MessageType, body *bitstream.Stream) {
	WriteType(s, t)
	s.WriteSized(body)
}

// ReadFrame reads back one Frame: its type and self-framed body.
func ReadFrame(s *bitstream.Stream) (MessageType, *bitstream.Stream, error) {
	t, ok := ReadType(s)
	if !ok {
		return 0, nil, fmt.Errorf("wire: short read or unknown message type")
	}
	body, ok := s.ReadSized()
	if !ok {
		return 0, nil, fmt.Errorf("wire: short read on message body framing")
	}
	return t, body, nil
}

// UserAddRequest is a client->server request to add a named user.
type UserAddRequest struct {
	Bundle *variant.Bundle
}

// Encode writes a UserAddRequest body: one dummy bit, then the bundle.
func (m UserAddRequest) Encode(s *bitstream.Stream) error {
	s.WriteBit(false) // dummy bit, reserved for future request flags
	return m.Bundle.Encode(s)
}

// DecodeUserAddRequest reads a UserAddRequest body.
func DecodeUserAddRequest(s *bitstream.Stream) (UserAddRequest, error) {
	if _, ok := s.ReadBit(); !ok {
		return UserAddRequest{}, fmt.Errorf("wire: short read on UserAddRequest dummy bit")
	}
	b, err := variant.DecodeBundle(s)
	if err != nil {
		return UserAddRequest{}, err
	}
	return UserAddRequest{Bundle: b}, nil
}

// AddResponseResult is the server's accept/deny decision for a user add.
type AddResponseResult uint8

const (
	AddAccept AddResponseResult = iota
	AddDeny
)

// UserAddResponse is the server->client reply to a UserAddRequest.
type UserAddResponse struct {
	Result AddResponseResult
	UserID uint32 // only meaningful when Result==AddAccept
	Bundle *variant.Bundle
}

// Encode writes a UserAddResponse body.
func (m UserAddResponse) Encode(s *bitstream.Stream) error {
	s.WriteBit(m.Result == AddAccept)
	if m.Result == AddAccept {
		s.WriteBits(uint64(m.UserID), 32)
	}
	return m.Bundle.Encode(s)
}

// DecodeUserAddResponse reads a UserAddResponse body.
func DecodeUserAddResponse(s *bitstream.Stream) (UserAddResponse, error) {
	accept, ok := s.ReadBit()
	if !ok {
		return UserAddResponse{}, fmt.Errorf("wire: short read on UserAddResponse result")
	}
	m := UserAddResponse{Result: AddDeny}
	if accept {
		m.Result = AddAccept
		uid, ok := s.ReadBits(32)
		if !ok {
			return UserAddResponse{}, fmt.Errorf("wire: short read on UserAddResponse user id")
		}
		m.UserID = uint32(uid)
	}
	b, err := variant.DecodeBundle(s)
	if err != nil {
		return UserAddResponse{}, err
	}
	m.Bundle = b
	return m, nil
}

// UserRemoveRequest asks the server to remove a previously added user.
type UserRemoveRequest struct {
	UserID uint32
	Bundle *variant.Bundle
}

// Encode writes a UserRemoveRequest body.
func (m UserRemoveRequest) Encode(s *bitstream.Stream) error {
	s.WriteBits(uint64(m.UserID), 32)
	return m.Bundle.Encode(s)
}

// DecodeUserRemoveRequest reads a UserRemoveRequest body.
func DecodeUserRemoveRequest(s *bitstream.Stream) (UserRemoveRequest, error) {
	uid, ok := s.ReadBits(32)
	if !ok {
		return UserRemoveRequest{}, fmt.Errorf("wire: short read on UserRemoveRequest user id")
	}
	b, err := variant.DecodeBundle(s)
	if err != nil {
		return UserRemoveRequest{}, err
	}
	return UserRemoveRequest{UserID: uint32(uid), Bundle: b}, nil
}

// LevelLoad carries a ReplicaId (quantized netObjectId) and, when Started,
// the 64-bit level resource id.
type LevelLoad struct {
	ReplicaID      uint32
	LevelResource  uint64
	HasResource    bool
}

// Encode writes a LevelLoadStarted/Finished body depending on HasResource.
func (m LevelLoad) Encode(s *bitstream.Stream) error {
	s.WriteQuantizedInt(int64(m.ReplicaID), 0, 0xffffffff, 1)
	if m.HasResource {
		s.WriteUint64(m.LevelResource)
	}
	return nil
}

// DecodeLevelLoad reads a LevelLoad body; hasResource must match whether
// the message type was Started (true) or Finished (false).
func DecodeLevelLoad(s *bitstream.Stream, hasResource bool) (LevelLoad, error) {
	id, ok := s.ReadQuantizedInt(0, 0xffffffff, 1)
	if !ok {
		return LevelLoad{}, fmt.Errorf("wire: short read on LevelLoad replica id")
	}
	m := LevelLoad{ReplicaID: uint32(id), HasResource: hasResource}
	if hasResource {
		res, ok := s.ReadUint64()
		if !ok {
			return LevelLoad{}, fmt.Errorf("wire: short read on LevelLoad resource id")
		}
		m.LevelResource = res
	}
	return m, nil
}

// HostPing/HostPong correlate by (ProjectGUID, PingID, SendAttemptID, ManagerID).
type HostPing struct {
	ProjectGUID   uint64
	PingID        uint32
	SendAttemptID uint32
	ManagerID     uint32
	Bundle        *variant.Bundle
}

// Encode writes a HostPing/HostPong body (the two share a wire shape).
func (m HostPing) Encode(s *bitstream.Stream) error {
	s.WriteUint64(m.ProjectGUID)
	s.WriteBits(uint64(m.PingID), 32)
	s.WriteBits(uint64(m.SendAttemptID), 32)
	s.WriteBits(uint64(m.ManagerID), 32)
	return m.Bundle.Encode(s)
}

// DecodeHostPing reads a HostPing/HostPong body.
func DecodeHostPing(s *bitstream.Stream) (HostPing, error) {
	guid, ok := s.ReadUint64()
	if !ok {
		return HostPing{}, fmt.Errorf("wire: short read on HostPing project guid")
	}
	pid, ok1 := s.ReadBits(32)
	attempt, ok2 := s.ReadBits(32)
	mgr, ok3 := s.ReadBits(32)
	if !(ok1 && ok2 && ok3) {
		return HostPing{}, fmt.Errorf("wire: short read on HostPing correlation fields")
	}
	b, err := variant.DecodeBundle(s)
	if err != nil {
		return HostPing{}, err
	}
	return HostPing{ProjectGUID: guid, PingID: uint32(pid), SendAttemptID: uint32(attempt), ManagerID: uint32(mgr), Bundle: b}, nil
}

// BasicHostInfo is the bounded record a server publishes describing itself.
type BasicHostInfo struct {
	ProjectGUID uint64
	HostName    string
	IP          net.IP
	Port        uint16
	UserCount   uint16
	MaxUsers    uint16
}

// Encode writes a BasicHostInfo record.
func (h BasicHostInfo) Encode(s *bitstream.Stream) error {
	s.WriteUint64(h.ProjectGUID)
	nameBytes := []byte(h.HostName)
	if len(nameBytes) > 0xff {
		return fmt.Errorf("wire: host name too long")
	}
	s.WriteBits(uint64(len(nameBytes)), 8)
	for _, c := range nameBytes {
		s.WriteBits(uint64(c), 8)
	}
	ip4 := h.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	for _, b := range ip4 {
		s.WriteBits(uint64(b), 8)
	}
	s.WriteBits(uint64(h.Port), 16)
	s.WriteBits(uint64(h.UserCount), 16)
	s.WriteBits(uint64(h.MaxUsers), 16)
	return nil
}

// DecodeBasicHostInfo reads a BasicHostInfo record.
func DecodeBasicHostInfo(s *bitstream.Stream) (BasicHostInfo, error) {
	guid, ok := s.ReadUint64()
	if !ok {
		return BasicHostInfo{}, fmt.Errorf("wire: short read on host info guid")
	}
	nameLen, ok := s.ReadBits(8)
	if !ok {
		return BasicHostInfo{}, fmt.Errorf("wire: short read on host info name length")
	}
	name := make([]byte, nameLen)
	for i := range name {
		c, ok := s.ReadBits(8)
		if !ok {
			return BasicHostInfo{}, fmt.Errorf("wire: short read on host info name")
		}
		name[i] = byte(c)
	}
	ipBytes := make(net.IP, 4)
	for i := 0; i < 4; i++ {
		b, ok := s.ReadBits(8)
		if !ok {
			return BasicHostInfo{}, fmt.Errorf("wire: short read on host info ip")
		}
		ipBytes[i] = byte(b)
	}
	port, ok1 := s.ReadBits(16)
	users, ok2 := s.ReadBits(16)
	maxUsers, ok3 := s.ReadBits(16)
	if !(ok1 && ok2 && ok3) {
		return BasicHostInfo{}, fmt.Errorf("wire: short read on host info counts")
	}
	return BasicHostInfo{
		ProjectGUID: guid,
		HostName:    string(name),
		IP:          ipBytes,
		Port:        uint16(port),
		UserCount:   uint16(users),
		MaxUsers:    uint16(maxUsers),
	}, nil
}

// HostRecordList is the master server's response to a host directory
// query: a framed list of BasicHostInfo records, each individually sized
// so a corrupt record cannot desynchronize the rest of the list.
type HostRecordList struct {
	Records []BasicHostInfo
}

// Encode writes a HostRecordList body.
func (m HostRecordList) Encode(s *bitstream.Stream) error {
	s.WriteBits(uint64(len(m.Records)), 16)
	for _, r := range m.Records {
		rec := bitstream.New()
		if err := r.Encode(rec); err != nil {
			return err
		}
		s.WriteSized(rec)
	}
	return nil
}

// DecodeHostRecordList reads a HostRecordList body.
func DecodeHostRecordList(s *bitstream.Stream) (HostRecordList, error) {
	count, ok := s.ReadBits(16)
	if !ok {
		return HostRecordList{}, fmt.Errorf("wire: short read on HostRecordList count")
	}
	out := HostRecordList{Records: make([]BasicHostInfo, 0, count)}
	for i := uint64(0); i < count; i++ {
		rec, ok := s.ReadSized()
		if !ok {
			return HostRecordList{}, fmt.Errorf("wire: short read on HostRecordList record framing")
		}
		info, err := DecodeBasicHostInfo(rec)
		if err != nil {
			return HostRecordList{}, err
		}
		out.Records = append(out.Records, info)
	}
	return out, nil
}

// HostPublish is a server->master-server announcement of its own info.
type HostPublish struct {
	ProjectGUID uint64
	Info        BasicHostInfo
}

// Encode writes a HostPublish body.
func (m HostPublish) Encode(s *bitstream.Stream) error {
	s.WriteUint64(m.ProjectGUID)
	inner := bitstream.New()
	if err := m.Info.Encode(inner); err != nil {
		return err
	}
	s.WriteSized(inner)
	return nil
}

// DecodeHostPublish reads a HostPublish body.
func DecodeHostPublish(s *bitstream.Stream) (HostPublish, error) {
	guid, ok := s.ReadUint64()
	if !ok {
		return HostPublish{}, fmt.Errorf("wire: short read on HostPublish guid")
	}
	inner, ok := s.ReadSized()
	if !ok {
		return HostPublish{}, fmt.Errorf("wire: short read on HostPublish info framing")
	}
	info, err := DecodeBasicHostInfo(inner)
	if err != nil {
		return HostPublish{}, err
	}
	return HostPublish{ProjectGUID: guid, Info: info}, nil
}

// ConnectRequest is the first handshake message a client sends.
type ConnectRequest struct {
	PendingUserAddCount uint32
	Bundle              *variant.Bundle
}

// Encode writes a ConnectRequest body.
func (m ConnectRequest) Encode(s *bitstream.Stream) error {
	s.WriteBits(uint64(m.PendingUserAddCount), 32)
	return m.Bundle.Encode(s)
}

// DecodeConnectRequest reads a ConnectRequest body.
func DecodeConnectRequest(s *bitstream.Stream) (ConnectRequest, error) {
	count, ok := s.ReadBits(32)
	if !ok {
		return ConnectRequest{}, fmt.Errorf("wire: short read on ConnectRequest pending user count")
	}
	b, err := variant.DecodeBundle(s)
	if err != nil {
		return ConnectRequest{}, err
	}
	return ConnectRequest{PendingUserAddCount: uint32(count), Bundle: b}, nil
}
