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
	"context"
	"net"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MasterServerQuery asks one subscribed master server for its current
// host-record list for projectGUID. Implementations run on the helper
// thread Subscription.Refresh spawns; they must not touch Peer/Space
// state directly, only return a result for the main tick to consume.
type MasterServerQuery func(ctx context.Context, masterServerIP string, projectGUID uint64) ([]BasicHostInfo, error)

// Subscription is a client's list of subscribed master servers for
// Internet discovery. Refresh fans a query out to every subscribed
// server concurrently (mirroring the teacher's multi-host HTTP client
// fan-out) and returns the merged, deduplicated host list once every
// query has completed or the context expires; a single server's failure
// does not fail the whole refresh.
type Subscription struct {
	MasterServers []string
	Query         MasterServerQuery
}

// Refresh queries every subscribed master server concurrently and merges
// their host lists. Per-server errors are logged and otherwise ignored:
// a down or unreachable master server must not block discovery of the
// others, matching §5's "helper threads producing messages delivered
// back to the main thread" model.
func (s *Subscription) Refresh(ctx context.Context, projectGUID uint64) []BasicHostInfo {
	if len(s.MasterServers) == 0 || s.Query == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]BasicHostInfo, len(s.MasterServers))
	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range s.MasterServers {
		i, addr := i, addr
		g.Go(func() error {
			hosts, err := s.Query(gctx, addr, projectGUID)
			if err != nil {
				log.WithError(err).WithField("masterServer", addr).Warn("discovery: master server query failed")
				return nil
			}
			results[i] = hosts
			return nil
		})
	}
	_ = g.Wait() // per-query errors are already swallowed above; nothing to propagate

	seen := make(map[string]bool)
	var merged []BasicHostInfo
	for _, hosts := range results {
		for _, h := range hosts {
			key := h.IP + ":" + strconv.Itoa(int(h.Port))
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, h)
		}
	}
	return merged
}

// LocalInterfaces enumerates bindable local IPv4/IPv6 addresses for LAN
// broadcast discovery. Interface enumeration uses the standard library's
// net package rather than a netlink binding: discovery only needs a
// read-only, portable list of addresses to broadcast from, not the
// netlink-socket-level interface configuration or hardware-timestamp
// capability queries a library like jsimonetti/rtnetlink exists for (the
// teacher uses netlink for PHC/interface binding, which has no analogue
// here), and netlink is Linux-only where this core aims to stay portable.
func LocalInterfaces() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var addrs []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		ifAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range ifAddrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			addrs = append(addrs, ipNet.IP)
		}
	}
	return addrs, nil
}

// basicHostInfoTimeout is the default deadline Subscription.Refresh's
// caller should pass via context for a single discovery round, matching
// §4.6's per-request timeout.
const basicHostInfoTimeout = 2 * time.Second
