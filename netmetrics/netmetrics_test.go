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
	"testing"

	"github.com/stretchr/testify/require"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersAllCollectorsWithoutPanicking(t *testing.T) {
	m := New()
	m.LinkCount.Set(3)

	var out dto.Metric
	require.NoError(t, m.LinkCount.Write(&out))
	require.Equal(t, float64(3), out.GetGauge().GetValue())
}

func TestSampleSystemReturnsCurrentProcess(t *testing.T) {
	sample, err := SampleSystem()
	require.NoError(t, err)
	require.False(t, sample.SampledAt.IsZero())
}
