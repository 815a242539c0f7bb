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

// Package netmetrics exposes the replication/physics core's counters and
// gauges to Prometheus: link counts, bytes transferred, frame-fill ratio,
// bandwidth suppression, and physics sleep/manifold activity.
package netmetrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Metrics owns one Prometheus registry and every collector the core
// reports against it.
type Metrics struct {
	registry *prometheus.Registry

	LinkCount          prometheus.Gauge
	BytesSent          prometheus.Counter
	BytesReceived      prometheus.Counter
	FrameFillRatio     prometheus.Gauge
	BandwidthSuppress  prometheus.Counter
	SleepingBodyCount  prometheus.Gauge
	ActiveManifoldCnt  prometheus.Gauge
	DiscoveryTimeouts  prometheus.Counter
	HandshakeCompleted prometheus.Counter
}

// New registers every collector under a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		LinkCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "replicore", Subsystem: "peer", Name: "links", Help: "Currently tracked PeerLinks.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "replicore", Subsystem: "peer", Name: "bytes_sent_total", Help: "Bytes sent across all links.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "replicore", Subsystem: "peer", Name: "bytes_received_total", Help: "Bytes received across all links.",
		}),
		FrameFillRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "replicore", Subsystem: "peer", Name: "frame_fill_ratio", Help: "Most recent outgoing frame fill ratio, 0-1+.",
		}),
		BandwidthSuppress: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "replicore", Subsystem: "peer", Name: "bandwidth_suppressions_total", Help: "Ticks where replication was suppressed by the bandwidth budget.",
		}),
		SleepingBodyCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "replicore", Subsystem: "physics", Name: "sleeping_bodies", Help: "Rigid bodies currently asleep.",
		}),
		ActiveManifoldCnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "replicore", Subsystem: "physics", Name: "active_manifolds", Help: "Contact manifolds with at least one point this tick.",
		}),
		DiscoveryTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "replicore", Subsystem: "discovery", Name: "timeouts_total", Help: "Pending discovery pings resolved as NoResponse.",
		}),
		HandshakeCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "replicore", Subsystem: "peer", Name: "handshakes_completed_total", Help: "PeerLinks that reached Connected.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.LinkCount, m.BytesSent, m.BytesReceived, m.FrameFillRatio,
		m.BandwidthSuppress, m.SleepingBodyCount, m.ActiveManifoldCnt,
		m.DiscoveryTimeouts, m.HandshakeCompleted,
	} {
		if err := reg.Register(c); err != nil {
			log.WithError(err).Warn("netmetrics: collector already registered")
		}
	}
	return m
}

// Serve exposes /metrics on listenPort until the process exits.
func (m *Metrics) Serve(listenPort int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	addr := fmt.Sprintf(":%d", listenPort)
	log.WithField("addr", addr).Info("netmetrics: serving prometheus metrics")
	return http.ListenAndServe(addr, mux)
}

// SampleInterval is the default cadence cmd/replicoctl refreshes gopsutil
// system samples at.
const SampleInterval = 5 * time.Second
