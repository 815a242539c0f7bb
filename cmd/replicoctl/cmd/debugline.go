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

// This subcommand is a thin, optional operational surface: attaching a
// line-oriented serial console to an embedded/headless host (e.g. a
// dedicated server running on hardware with no other console), the same
// role go.bug.st/serial plays for the teacher's sa53fw/oscillatord serial
// firmware consoles.
package cmd

import (
	"bufio"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

var debugLineBaudFlag int

func init() {
	RootCmd.AddCommand(debugLineCmd)
	debugLineCmd.Flags().IntVar(&debugLineBaudFlag, "baud", 115200, "serial baud rate")
}

var debugLineCmd = &cobra.Command{
	Use:   "debug-line <port>",
	Short: "List serial ports, or attach to one and echo lines to stdout",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		if len(args) == 0 {
			ports, err := serial.GetPortsList()
			if err != nil {
				log.Fatal(err)
			}
			if len(ports) == 0 {
				fmt.Println("no serial ports found")
				return
			}
			for _, p := range ports {
				fmt.Println(p)
			}
			return
		}

		mode := &serial.Mode{BaudRate: debugLineBaudFlag}
		port, err := serial.Open(args[0], mode)
		if err != nil {
			log.Fatal(err)
		}
		defer port.Close()

		scanner := bufio.NewScanner(port)
		for scanner.Scan() {
			fmt.Fprintln(os.Stdout, scanner.Text())
		}
	},
}
