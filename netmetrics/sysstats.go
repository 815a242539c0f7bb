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

package netmetrics

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// SystemSample is one point-in-time reading of the host process's
// resource usage, reported alongside the network/physics counters so an
// operator diagnosing a frame-fill or sleep regression can see whether
// the host itself is under load.
type SystemSample struct {
	CPUPercent   float64
	RSSBytes     uint64
	VMSBytes     uint64
	NumThreads   int32
	NumFDs       int32
	SampledAt    time.Time
}

// SampleSystem reads the current process's CPU/memory/fd usage.
func SampleSystem() (SystemSample, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return SystemSample{}, err
	}
	sample := SystemSample{SampledAt: time.Now()}
	if cpu, err := proc.Percent(0); err == nil {
		sample.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		sample.RSSBytes = mem.RSS
		sample.VMSBytes = mem.VMS
	}
	if threads, err := proc.NumThreads(); err == nil {
		sample.NumThreads = threads
	}
	if fds, err := proc.NumFDs(); err == nil {
		sample.NumFDs = fds
	}
	return sample, nil
}
