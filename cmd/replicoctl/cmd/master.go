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
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/replicore/engine/discovery"
)

var (
	masterServersFlag  string
	masterProjectGUID  uint64
	masterTimeoutFlag  time.Duration
)

func init() {
	RootCmd.AddCommand(masterCmd)
	masterCmd.Flags().StringVar(&masterServersFlag, "servers", "", "comma-separated master-server ip:port list to subscribe to")
	masterCmd.Flags().Uint64Var(&masterProjectGUID, "project-guid", 0, "project guid to query")
	masterCmd.Flags().DurationVar(&masterTimeoutFlag, "timeout", 3*time.Second, "query deadline across every subscribed server")
	_ = masterCmd.MarkFlagRequired("servers")
}

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Query every subscribed master server for the current host list",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		servers := strings.Split(masterServersFlag, ",")
		sub := &discovery.Subscription{
			MasterServers: servers,
			Query:         queryMasterServerHTTP,
		}

		ctx, cancel := context.WithTimeout(context.Background(), masterTimeoutFlag)
		defer cancel()
		hosts := sub.Refresh(ctx, masterProjectGUID)
		if len(hosts) == 0 {
			fmt.Println("no hosts returned by any subscribed master server")
			return
		}
		for _, h := range hosts {
			fmt.Printf("%s:%d  %s  users=%d/%d\n", h.IP, h.Port, h.HostName, h.UserCount, h.MaxUsers)
		}
	},
}

// queryMasterServerHTTP is a placeholder master-server query: a real
// deployment implements this against its own master-server HTTP API
// (mirroring the teacher's calnex client); replicoctl ships a stub that
// always reports no hosts so the command is runnable standalone.
func queryMasterServerHTTP(_ context.Context, masterServerIP string, _ uint64) ([]discovery.BasicHostInfo, error) {
	log.WithField("masterServer", masterServerIP).Debug("replicoctl: querying master server")
	return nil, nil
}
