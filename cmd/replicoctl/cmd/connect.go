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
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/replicore/engine/bitstream"
	"github.com/replicore/engine/peerlink"
	"github.com/replicore/engine/transport"
	"github.com/replicore/engine/variant"
	"github.com/replicore/engine/wire"
)

var connectTargetFlag string
var connectTimeoutFlag time.Duration

func init() {
	RootCmd.AddCommand(connectCmd)
	connectCmd.Flags().StringVarP(&connectTargetFlag, "target", "t", "", "host:port of the server to connect to")
	connectCmd.Flags().DurationVar(&connectTimeoutFlag, "timeout", 5*time.Second, "attempt-connect timeout")
	_ = connectCmd.MarkFlagRequired("target")
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Send a ConnectRequest to a server and report whether a reply arrived",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		u, err := transport.ListenUDP(":0")
		if err != nil {
			log.Fatal(err)
		}
		defer u.Close()

		remote, err := transport.ResolveUDPEndpoint(connectTargetFlag)
		if err != nil {
			log.Fatal(err)
		}

		link := peerlink.New(peerlink.WeInitiated, connectTargetFlag)
		_, out := link.Advance(peerlink.Event{Kind: peerlink.EventSendConnectRequest})
		log.WithField("produced", out).Debug("replicoctl: handshake advanced")

		s := bitstream.New()
		req := wire.ConnectRequest{PendingUserAddCount: 0, Bundle: variant.NewBundle()}
		if err := req.Encode(s); err != nil {
			log.Fatal(err)
		}
		if err := u.Send(remote, s.Bytes()); err != nil {
			log.Fatal(err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeoutFlag)
		defer cancel()
		reply, err := u.Receive(ctx)
		if err != nil {
			link.Advance(peerlink.Event{Kind: peerlink.EventAttemptTimeout})
			fmt.Println("no response: link attempt timed out")
			return
		}
		log.WithField("bytes", len(reply.Payload)).Info("replicoctl: received reply")
	},
}
