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

import "fmt"

// PortRange is an inclusive [Low, High] range of host ports LAN discovery
// broadcasts a ping to.
type PortRange struct {
	Low, High uint16
}

// Ports enumerates every port in the range, in ascending order.
func (r PortRange) Ports() []uint16 {
	if r.High < r.Low {
		return nil
	}
	out := make([]uint16, 0, int(r.High-r.Low)+1)
	for p := r.Low; ; p++ {
		out = append(out, p)
		if p == r.High {
			break
		}
	}
	return out
}

// Contains reports whether port falls within the inclusive range.
func (r PortRange) Contains(port uint16) bool { return port >= r.Low && port <= r.High }

func (r PortRange) String() string { return fmt.Sprintf("[%d-%d]", r.Low, r.High) }

// BroadcastPlan is the set of (port) targets a LAN discovery request must
// ping on the local broadcast address; the transport layer turns this
// into actual UDP sends.
type BroadcastPlan struct {
	BroadcastAddress string
	Ports            []uint16
}

// PlanBroadcast builds the broadcast plan for a LAN DiscoverHostList call
// over the given inclusive port range.
func PlanBroadcast(broadcastAddress string, ports PortRange) BroadcastPlan {
	return BroadcastPlan{BroadcastAddress: broadcastAddress, Ports: ports.Ports()}
}
