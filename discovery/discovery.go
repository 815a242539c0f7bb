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

// Package discovery implements the Ping manager shared by LAN broadcast
// discovery and master-server indirect (Internet) discovery: pings and
// pongs correlate by (projectGuid, pingId, sendAttemptId, managerId), and
// every pending request resolves exactly once, to NoResponse,
// BasicHostInfo, or ExtraHostInfo, or is cancelled by a superseding
// refresh.
package discovery

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Strategy is which discovery mechanism issued a request.
type Strategy uint8

const (
	LAN Strategy = iota
	Internet
)

// ResultKind is how a pending discovery request was resolved.
type ResultKind uint8

const (
	NoResponse ResultKind = iota
	BasicHostInfoResult
	ExtraHostInfoResult
)

// BasicHostInfo mirrors wire.BasicHostInfo without importing the wire
// package, so discovery stays usable without pulling in the bitstream
// codec; the transport layer is responsible for the actual encode/decode.
type BasicHostInfo struct {
	ProjectGUID uint64
	HostName    string
	IP          string
	Port        uint16
	UserCount   uint16
	MaxUsers    uint16
}

// PingKey correlates a ping to its pong.
type PingKey struct {
	ProjectGUID   uint64
	PingID        uint32
	SendAttemptID uint32
	ManagerID     uint32
}

// Result is the resolution of one pending ping.
type Result struct {
	Kind ResultKind
	Host BasicHostInfo
}

// pendingRequest is one in-flight discovery request awaiting a pong or a
// timeout. isListRefresh marks a request issued by a full list refresh,
// which a later single refresh must not cancel but which itself cancels
// any outstanding single refreshes.
type pendingRequest struct {
	key           PingKey
	strategy      Strategy
	deadline      time.Time
	isListRefresh bool
	resolve       func(Result)
}

// Manager correlates outgoing pings to incoming pongs and owns every
// pending request's timeout.
type Manager struct {
	nextPingID uint32
	pending    map[PingKey]*pendingRequest
	now        func() time.Time
}

// NewManager starts an empty ping manager. now defaults to time.Now; tests
// may override it for deterministic timeout checks.
func NewManager(now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{pending: make(map[PingKey]*pendingRequest), now: now}
}

// NextPingID draws the next outgoing ping id (monotonic, not recycled:
// correlation only needs local uniqueness within the timeout window).
func (m *Manager) NextPingID() uint32 {
	m.nextPingID++
	return m.nextPingID
}

// Send registers a pending request for key, to be resolved by a matching
// Pong, CancelSingleRefreshes, CancelListRefresh, or its own timeout.
// Issuing a full list-refresh request cancels every outstanding
// single-refresh request (resolved as NoResponse) before registering.
func (m *Manager) Send(key PingKey, strategy Strategy, timeout time.Duration, isListRefresh bool, resolve func(Result)) {
	if isListRefresh {
		m.CancelSingleRefreshes()
	}
	m.pending[key] = &pendingRequest{
		key:           key,
		strategy:      strategy,
		deadline:      m.now().Add(timeout),
		isListRefresh: isListRefresh,
		resolve:       resolve,
	}
}

// ResolvePong correlates an incoming pong to its pending request and
// resolves it with the given host info. A pong with no matching pending
// request (already timed out, already resolved, or spurious) is ignored.
func (m *Manager) ResolvePong(key PingKey, host BasicHostInfo, extra bool) {
	req, ok := m.pending[key]
	if !ok {
		return
	}
	delete(m.pending, key)
	kind := BasicHostInfoResult
	if extra {
		kind = ExtraHostInfoResult
	}
	req.resolve(Result{Kind: kind, Host: host})
}

// CancelSingleRefreshes resolves every pending non-list-refresh request as
// NoResponse, leaving list-refresh requests untouched.
func (m *Manager) CancelSingleRefreshes() {
	for key, req := range m.pending {
		if req.isListRefresh {
			continue
		}
		delete(m.pending, key)
		req.resolve(Result{Kind: NoResponse})
	}
}

// CancelListRefresh resolves every pending request, list-refresh or not,
// as NoResponse: a list refresh's cancellation takes everything with it.
func (m *Manager) CancelListRefresh() {
	for key, req := range m.pending {
		delete(m.pending, key)
		req.resolve(Result{Kind: NoResponse})
	}
}

// ExpireTimeouts resolves every pending request past its deadline as
// NoResponse. Callers should invoke this once per net tick.
func (m *Manager) ExpireTimeouts() {
	now := m.now()
	for key, req := range m.pending {
		if now.After(req.deadline) {
			delete(m.pending, key)
			log.WithField("key", key).Debug("discovery: ping request timed out")
			req.resolve(Result{Kind: NoResponse})
		}
	}
}

// Outstanding reports how many requests are still pending.
func (m *Manager) Outstanding() int { return len(m.pending) }
