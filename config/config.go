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

// Package config loads the operator-facing tuning knobs for a Peer and
// Space from YAML: bandwidth thresholds, sleep epsilons, port ranges, and
// the master-server subscription list. The domain's config is nested
// (channels, effects, per-joint overrides), which an ini format models
// poorly, so this uses gopkg.in/yaml.v2 -- itself a direct teacher
// dependency -- rather than the flat ini format the teacher's sptp client
// config uses.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the top-level shape of a replicoctl deployment's YAML file.
type Config struct {
	Peer     PeerConfig     `yaml:"peer"`
	Space    SpaceConfig    `yaml:"space"`
	Discover DiscoverConfig `yaml:"discover"`
}

// PeerConfig tunes a peer's bandwidth budget and port range.
type PeerConfig struct {
	Role            string  `yaml:"role"`
	PortLow         int     `yaml:"portLow"`
	PortHigh        int     `yaml:"portHigh"`
	FrameFillWarn   float64 `yaml:"frameFillWarning"`
	FrameFillSkip   float64 `yaml:"frameFillSkip"`
}

// SpaceConfig tunes a physics space's numerical thresholds.
type SpaceConfig struct {
	Gravity               [3]float64 `yaml:"gravity"`
	MaxVelocity           float64    `yaml:"maxVelocity"`
	LinearSleepEpsilon    float64    `yaml:"linearSleepEpsilon"`
	AngularSleepEpsilon   float64    `yaml:"angularSleepEpsilon"`
	TimeToSleep           float64    `yaml:"timeToSleep"`
	AllowBackfaces        bool       `yaml:"allowBackfaces"`
	ContactBreakingThresh float64    `yaml:"contactBreakingThreshold"`
}

// DiscoverConfig holds the LAN port range and master-server subscription
// list.
type DiscoverConfig struct {
	LANPortLow     int      `yaml:"lanPortLow"`
	LANPortHigh    int      `yaml:"lanPortHigh"`
	MasterServers  []string `yaml:"masterServers"`
	ProjectGUID    uint64   `yaml:"projectGuid"`
}

// Defaults returns a Config populated with the specification's default
// tuning constants (§4.7, §4.12), so a deployment only needs to override
// what it changes.
func Defaults() Config {
	return Config{
		Peer: PeerConfig{
			Role:          "server",
			PortLow:       8000,
			PortHigh:      8010,
			FrameFillWarn: 0.8,
			FrameFillSkip: 0.9,
		},
		Space: SpaceConfig{
			Gravity:               [3]float64{0, -9.81, 0},
			LinearSleepEpsilon:    0.16,
			AngularSleepEpsilon:   0.16,
			TimeToSleep:           1.0,
			ContactBreakingThresh: 0.02,
		},
		Discover: DiscoverConfig{
			LANPortLow:  8000,
			LANPortHigh: 8010,
		},
	}
}

// Load reads and parses a YAML config file, starting from Defaults() so
// an omitted field keeps its specification-default value.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
