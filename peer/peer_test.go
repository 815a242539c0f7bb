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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/peerlink"
	"github.com/replicore/engine/variant"
	"github.com/replicore/engine/wire"
)

func TestUserAddAcceptRecordsOnBothSides(t *testing.T) {
	server := New(RoleServer, 1, "127.0.0.1:8000")
	client := New(RoleClient, 2, "127.0.0.1:8100")
	server.AddLink(5, peerlink.New(peerlink.TheyInitiated, "127.0.0.1"))
	client.AddLink(5, peerlink.New(peerlink.WeInitiated, "127.0.0.1"))

	resp, err := server.HandleUserAddRequest(5, func() (bool, *variant.Bundle) {
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, wire.AddAccept, resp.Result)
	require.NotZero(t, resp.UserID)
	require.True(t, server.HasUser(5, resp.UserID))

	client.HandleUserAddResponse(5, resp)
	require.True(t, client.HasUser(5, resp.UserID))
}

func TestUserAddDenyReleasesID(t *testing.T) {
	server := New(RoleServer, 1, "127.0.0.1:8000")
	server.AddLink(5, peerlink.New(peerlink.TheyInitiated, "127.0.0.1"))

	resp, err := server.HandleUserAddRequest(5, func() (bool, *variant.Bundle) { return false, nil })
	require.NoError(t, err)
	require.Equal(t, wire.AddDeny, resp.Result)
	require.False(t, server.HasUser(5, resp.UserID))

	// the id must have been returned to the pool, so the next acquire reuses it
	reused := server.netUserIDs.Acquire()
	require.Equal(t, uint32(1), reused)
}

func TestReorderBufferReleasesInOrder(t *testing.T) {
	buf := NewReorderBuffer()
	require.Nil(t, buf.Accept(1, []byte("b")))
	released := buf.Accept(0, []byte("a"))
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, released)

	// duplicate/old sequence is dropped
	require.Nil(t, buf.Accept(0, []byte("a-again")))
}

func TestTickSuppressesAboveFrameFillSkip(t *testing.T) {
	p := New(RoleServer, 1, "127.0.0.1:8000")
	p.AddLink(9, peerlink.New(peerlink.TheyInitiated, "127.0.0.1"))

	result := p.Tick([]LinkWork{
		{LinkID: 9, ChangeFrameBits: 950, FrameBudgetBits: 1000},
	})
	require.True(t, result.Warnings[9])
	require.True(t, result.Suppress[9])
}

func TestTickDoesNotWarnBelowThreshold(t *testing.T) {
	p := New(RoleServer, 1, "127.0.0.1:8000")
	p.AddLink(9, peerlink.New(peerlink.TheyInitiated, "127.0.0.1"))

	result := p.Tick([]LinkWork{
		{LinkID: 9, ChangeFrameBits: 100, FrameBudgetBits: 1000},
	})
	require.False(t, result.Warnings[9])
	require.False(t, result.Suppress[9])
}

func TestTickRunsHandshakeAdvance(t *testing.T) {
	p := New(RoleClient, 1, "127.0.0.1:8100")
	link := peerlink.New(peerlink.WeInitiated, "127.0.0.1")
	p.AddLink(9, link)

	result := p.Tick([]LinkWork{
		{LinkID: 9, HandshakeEvts: []peerlink.Event{{Kind: peerlink.EventSendConnectRequest}}},
	})
	require.Equal(t, peerlink.AttemptingConnect, link.State())
	require.Equal(t, []peerlink.OutMessage{peerlink.OutSendConnectRequest}, result.Outgoing[9])
}
