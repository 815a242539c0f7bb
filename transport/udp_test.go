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

package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUDPSendReceiveRoundTrip(t *testing.T) {
	a, err := ListenUDP("127.0.0.1:0")
	require.NoError(t, err)
	defer a.Close()
	b, err := ListenUDP("127.0.0.1:0")
	require.NoError(t, err)
	defer b.Close()

	bAddr := udpEndpoint{addr: b.conn.LocalAddr().(*net.UDPAddr)}
	require.NoError(t, a.Send(bAddr, []byte("hello")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	in, err := b.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), in.Payload)
}

func TestUDPAcceptSurfacesNewEndpointOnce(t *testing.T) {
	a, err := ListenUDP("127.0.0.1:0")
	require.NoError(t, err)
	defer a.Close()
	b, err := ListenUDP("127.0.0.1:0")
	require.NoError(t, err)
	defer b.Close()

	bAddr := udpEndpoint{addr: b.conn.LocalAddr().(*net.UDPAddr)}
	require.NoError(t, a.Send(bAddr, []byte("ping")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	accepted, err := b.Accept(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, accepted.From.String())
}
