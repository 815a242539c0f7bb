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

package peerlink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeAcceptSequence(t *testing.T) {
	client := New(WeInitiated, "127.0.0.1")
	server := New(TheyInitiated, "127.0.0.1")

	state, out := client.Advance(Event{Kind: EventSendConnectRequest})
	require.Equal(t, AttemptingConnect, state)
	require.Equal(t, []OutMessage{OutSendConnectRequest}, out)

	state, _ = server.Advance(Event{Kind: EventReceiveConnectRequest})
	require.Equal(t, Unattempted, state)

	state, out = server.ResolveIncomingConnect(true, 7)
	require.Equal(t, AttemptingConnect, state)
	require.Equal(t, []OutMessage{OutSendConnectResponseAccept}, out)
	require.Equal(t, uint32(7), server.RemotePeerID)

	state, out = client.Advance(Event{Kind: EventReceiveConnectResponseAccept, AssignedPeerID: 7})
	require.Equal(t, AttemptingConnect, state)
	require.Equal(t, []OutMessage{OutSendConnectConfirmation}, out)
	require.Equal(t, uint32(7), client.LocalPeerID)

	state, out = server.Advance(Event{Kind: EventReceiveConnectConfirmation})
	require.Equal(t, Connected, state)
	require.Equal(t, []OutMessage{OutPublishLinkConnected}, out)

	state, out = client.Advance(Event{Kind: EventReceiveConnectConfirmation})
	require.Equal(t, Connected, state)
	require.Equal(t, []OutMessage{OutPublishLinkConnected}, out)
}

func TestHandshakeDeny(t *testing.T) {
	server := New(TheyInitiated, "127.0.0.1")
	state, out := server.ResolveIncomingConnect(false, 0)
	require.Equal(t, Disconnected, state)
	require.Contains(t, out, OutDestroyLink)
	require.Contains(t, out, OutPublishConnectDenied)
}

func TestHandshakeReplayIsIdempotent(t *testing.T) {
	server := New(TheyInitiated, "127.0.0.1")
	state1, out1 := server.ResolveIncomingConnect(true, 3)
	require.Equal(t, AttemptingConnect, state1)
	require.NotEmpty(t, out1)

	// Replaying the same ConnectRequest (which would re-invoke
	// ResolveIncomingConnect) must not mutate state further.
	state2, out2 := server.ResolveIncomingConnect(true, 99)
	require.Equal(t, AttemptingConnect, state2)
	require.Nil(t, out2)
	require.Equal(t, uint32(3), server.RemotePeerID, "first resolution must stick")
}

func TestDisconnectTearsDownLink(t *testing.T) {
	a := New(WeInitiated, "127.0.0.1")
	a.Advance(Event{Kind: EventSendConnectRequest})
	a.Advance(Event{Kind: EventReceiveConnectResponseAccept, AssignedPeerID: 1})
	a.Advance(Event{Kind: EventReceiveConnectConfirmation})
	require.Equal(t, Connected, a.State())

	state, out := a.Advance(Event{Kind: EventSendDisconnectNotice})
	require.Equal(t, Disconnecting, state)
	require.Equal(t, []OutMessage{OutSendDisconnectNotice}, out)

	state, out = a.Advance(Event{Kind: EventReceiveDisconnectNotice})
	require.Equal(t, Disconnected, state)
	require.Equal(t, []OutMessage{OutDestroyLink}, out)
}

func TestAttemptTimeoutDestroysLink(t *testing.T) {
	client := New(WeInitiated, "127.0.0.1")
	client.Advance(Event{Kind: EventSendConnectRequest})
	state, out := client.Advance(Event{Kind: EventAttemptTimeout})
	require.Equal(t, Disconnected, state)
	require.Equal(t, []OutMessage{OutDestroyLink}, out)
}
