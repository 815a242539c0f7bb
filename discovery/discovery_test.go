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

package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolvePongCorrelatesByKey(t *testing.T) {
	m := NewManager(nil)
	key := PingKey{ProjectGUID: 1, PingID: m.NextPingID(), SendAttemptID: 1, ManagerID: 1}

	var got Result
	m.Send(key, LAN, time.Second, false, func(r Result) { got = r })
	m.ResolvePong(key, BasicHostInfo{IP: "10.0.0.5"}, false)

	require.Equal(t, BasicHostInfoResult, got.Kind)
	require.Equal(t, "10.0.0.5", got.Host.IP)
	require.Zero(t, m.Outstanding())
}

func TestListRefreshCancelsSingleRefreshes(t *testing.T) {
	m := NewManager(nil)
	var singleResult Result
	single := PingKey{ProjectGUID: 1, PingID: 1}
	m.Send(single, LAN, time.Second, false, func(r Result) { singleResult = r })

	list := PingKey{ProjectGUID: 1, PingID: 2}
	m.Send(list, Internet, time.Second, true, func(Result) {})

	require.Equal(t, NoResponse, singleResult.Kind)
	require.Equal(t, 1, m.Outstanding())
}

func TestListRefreshCancellationResolvesAllPending(t *testing.T) {
	m := NewManager(nil)
	var a, b Result
	m.Send(PingKey{PingID: 1}, LAN, time.Second, false, func(r Result) { a = r })
	m.Send(PingKey{PingID: 2}, Internet, time.Second, true, func(r Result) { b = r })

	m.CancelListRefresh()
	require.Equal(t, NoResponse, a.Kind)
	require.Equal(t, NoResponse, b.Kind)
	require.Zero(t, m.Outstanding())
}

func TestExpireTimeoutsResolvesNoResponse(t *testing.T) {
	clock := time.Now()
	m := NewManager(func() time.Time { return clock })
	var got Result
	m.Send(PingKey{PingID: 1}, LAN, time.Millisecond, false, func(r Result) { got = r })

	clock = clock.Add(10 * time.Millisecond)
	m.ExpireTimeouts()
	require.Equal(t, NoResponse, got.Kind)
}

func TestPortRangeEnumeratesInclusiveBounds(t *testing.T) {
	r := PortRange{Low: 8000, High: 8003}
	require.Equal(t, []uint16{8000, 8001, 8002, 8003}, r.Ports())
	require.True(t, r.Contains(8000))
	require.True(t, r.Contains(8003))
	require.False(t, r.Contains(8004))
}

func TestDirectoryCapsRecordsPerSourceIP(t *testing.T) {
	d := NewDirectory(time.Minute, 2, nil)
	d.Publish("1.1.1.1", 42, BasicHostInfo{Port: 1})
	d.Publish("1.1.1.1", 42, BasicHostInfo{Port: 2})
	d.Publish("1.1.1.1", 42, BasicHostInfo{Port: 3})

	records := d.Query(42)
	require.Len(t, records, 2)
}

func TestDirectoryExpiresRecordsAfterLifetime(t *testing.T) {
	clock := time.Now()
	d := NewDirectory(time.Minute, 10, func() time.Time { return clock })
	d.Publish("1.1.1.1", 42, BasicHostInfo{Port: 1})
	require.Len(t, d.Query(42), 1)

	clock = clock.Add(2 * time.Minute)
	require.Empty(t, d.Query(42))
}
