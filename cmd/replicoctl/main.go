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

// Command replicoctl is the host application: it is not part of the
// replication/physics core (per the specification's collaborator
// boundary), just a thin CLI that opens a Peer with a role and port
// range, optionally subscribes to master servers, and prints status.
package main

import "github.com/replicore/engine/cmd/replicoctl/cmd"

func main() {
	cmd.Execute()
}
