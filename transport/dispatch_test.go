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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

type fakeEndpoint string

func (f fakeEndpoint) String() string { return string(f) }

func TestDispatchOutgoingSendsEveryFrameInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	mt := NewMockTransport(ctrl)
	to := fakeEndpoint("10.0.0.5:8000")

	gomock.InOrder(
		mt.EXPECT().Send(to, []byte("a")).Return(nil),
		mt.EXPECT().Send(to, []byte("b")).Return(nil),
	)

	require.NoError(t, DispatchOutgoing(mt, to, [][]byte{[]byte("a"), []byte("b")}))
}

func TestDispatchOutgoingStopsOnFirstError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mt := NewMockTransport(ctrl)
	to := fakeEndpoint("10.0.0.5:8000")
	boom := errors.New("send failed")

	mt.EXPECT().Send(to, []byte("a")).Return(boom)

	err := DispatchOutgoing(mt, to, [][]byte{[]byte("a"), []byte("b")})
	require.ErrorIs(t, err, boom)
}
