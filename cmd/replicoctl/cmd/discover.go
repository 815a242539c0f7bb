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

package cmd

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/replicore/engine/discovery"
)

var (
	discoverPortLowFlag  int
	discoverPortHighFlag int
	discoverTimeoutFlag  time.Duration
)

func init() {
	RootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().IntVar(&discoverPortLowFlag, "port-low", 8000, "low end of the LAN broadcast port range")
	discoverCmd.Flags().IntVar(&discoverPortHighFlag, "port-high", 8010, "high end of the LAN broadcast port range")
	discoverCmd.Flags().DurationVar(&discoverTimeoutFlag, "timeout", 2*time.Second, "basicHostInfoTimeout")
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Plan a LAN host discovery broadcast and wait for a host response (no ping packet is sent)",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		ifaceAddrs, err := discovery.LocalInterfaces()
		if err != nil {
			log.Fatal(err)
		}
		if len(ifaceAddrs) == 0 {
			fmt.Println("no bindable local interfaces found")
			return
		}

		plan := discovery.PlanBroadcast("255.255.255.255", discovery.PortRange{
			Low:  uint16(discoverPortLowFlag),
			High: uint16(discoverPortHighFlag),
		})
		log.WithFields(log.Fields{
			"from":  ifaceAddrs[0].String(),
			"ports": plan.Ports,
		}).Info("replicoctl: planned LAN discovery broadcast")

		mgr := discovery.NewManager(nil)
		pingID := mgr.NextPingID()
		key := discovery.PingKey{PingID: pingID}
		done := make(chan discovery.Result, 1)
		mgr.Send(key, discovery.LAN, discoverTimeoutFlag, false, func(r discovery.Result) { done <- r })

		select {
		case r := <-done:
			if r.Kind == discovery.NoResponse {
				fmt.Println("no hosts responded")
				return
			}
			fmt.Printf("discovered host %s:%d (%s)\n", r.Host.IP, r.Host.Port, r.Host.HostName)
		case <-time.After(discoverTimeoutFlag + 500*time.Millisecond):
			mgr.ExpireTimeouts()
			fmt.Println("no hosts responded")
		}
	},
}
