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

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/replicore/engine/config"
	"github.com/replicore/engine/netmetrics"
	"github.com/replicore/engine/peer"
	"github.com/replicore/engine/transport"
)

var (
	serveConfigFlag     string
	serveRoleFlag       string
	servePortLowFlag    int
	servePortHighFlag   int
	serveMetricsPort    int
	serveNoSystemdFlag  bool
)

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigFlag, "config", "c", "", "path to a YAML config file (see config.Defaults for the schema); flags below override its values when set")
	serveCmd.Flags().StringVarP(&serveRoleFlag, "role", "r", "server", "peer role: client, server, or masterServer")
	serveCmd.Flags().IntVar(&servePortLowFlag, "port-low", 8000, "low end of the port range to bind, retrying adjacent ports on failure")
	serveCmd.Flags().IntVar(&servePortHighFlag, "port-high", 8010, "high end of the port range to bind")
	serveCmd.Flags().IntVar(&serveMetricsPort, "metrics-port", 9090, "prometheus /metrics listen port, 0 to disable")
	serveCmd.Flags().BoolVar(&serveNoSystemdFlag, "no-systemd-notify", false, "skip sd_notify even when run under systemd")
}

func parseRole(s string) (peer.Role, error) {
	switch s {
	case "client":
		return peer.RoleClient, nil
	case "server":
		return peer.RoleServer, nil
	case "masterServer":
		return peer.RoleMasterServer, nil
	default:
		return peer.RoleOffline, fmt.Errorf("unknown role %q", s)
	}
}

// bindWithRetry opens a UDP transport on the first free port in
// [low, high], retrying adjacent ports on bind failure, per the
// specification's CLI/operational surface note.
func bindWithRetry(low, high int) (*transport.UDP, int, error) {
	var lastErr error
	for port := low; port <= high; port++ {
		addr := fmt.Sprintf(":%d", port)
		u, err := transport.ListenUDP(addr)
		if err == nil {
			return u, port, nil
		}
		lastErr = err
		log.WithError(err).WithField("port", port).Debug("replicoctl: bind failed, trying next port")
	}
	return nil, 0, fmt.Errorf("no free port in [%d,%d]: %w", low, high, lastErr)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open a peer and run its network tick loop",
	Run: func(cmd *cobra.Command, _ []string) {
		ConfigureVerbosity()

		cfg := config.Defaults()
		if serveConfigFlag != "" {
			loaded, err := config.Load(serveConfigFlag)
			if err != nil {
				log.Fatal(err)
			}
			cfg = loaded
		}
		if !cmd.Flags().Changed("role") {
			serveRoleFlag = cfg.Peer.Role
		}
		if !cmd.Flags().Changed("port-low") {
			servePortLowFlag = cfg.Peer.PortLow
		}
		if !cmd.Flags().Changed("port-high") {
			servePortHighFlag = cfg.Peer.PortHigh
		}

		role, err := parseRole(serveRoleFlag)
		if err != nil {
			log.Fatal(err)
		}

		u, port, err := bindWithRetry(servePortLowFlag, servePortHighFlag)
		if err != nil {
			log.Fatal(err)
		}
		log.WithField("port", port).Info("replicoctl: bound")
		defer u.Close()

		p := peer.New(role, peer.NewGUID(), fmt.Sprintf(":%d", port))
		if serveMetricsPort > 0 {
			p.Metrics = netmetrics.New()
			go func() {
				if err := p.Metrics.Serve(serveMetricsPort); err != nil {
					log.WithError(err).Warn("replicoctl: metrics server stopped")
				}
			}()
		}

		if !serveNoSystemdFlag {
			if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
				log.WithError(err).Debug("replicoctl: sd_notify READY failed")
			} else if ok {
				log.Debug("replicoctl: notified systemd ready")
			}
		}

		log.WithFields(log.Fields{"role": role, "guid": p.GUID}).Info("replicoctl: peer ready")
		select {}
	},
}
