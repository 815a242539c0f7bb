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

package constraint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/physics/body"
	"github.com/replicore/engine/physics/vecmath"
)

func TestWeldJointSolveVelocityEliminatesRelativeAnchorVelocity(t *testing.T) {
	a := body.New()
	b := body.New()
	a.LinearVelocity = vecmath.Vec3{X: -1}
	b.LinearVelocity = vecmath.Vec3{X: 1}

	j := NewWeldJoint(a, b, vecmath.Vec3{}, vecmath.Vec3{}, JointConfigOverride{})
	for i := 0; i < 8; i++ {
		j.SolveVelocity()
	}

	require.InDelta(t, 0, b.LinearVelocity.Sub(a.LinearVelocity).Length(), 1e-6)
}

func TestWeldJointSolvePositionReducesErrorToSlop(t *testing.T) {
	a := body.New()
	b := body.New()
	b.Position = vecmath.Vec3{X: 1}

	j := NewWeldJoint(a, b, vecmath.Vec3{}, vecmath.Vec3{}, JointConfigOverride{})
	var lastErr float64
	for i := 0; i < 200; i++ {
		lastErr = j.SolvePosition(NonlinearGaussSeidel)
	}
	// Each pass closes a fraction of the error beyond slop, so the error
	// converges onto the slop tolerance from above.
	require.InDelta(t, j.Config.SlopTolerance, lastErr, 1e-9)
}

func TestJointConfigOverrideOnlyReplacesSetFields(t *testing.T) {
	custom := 0.5
	cfg := JointConfigOverride{LinearErrorCorrection: &custom}.Resolve()
	require.InDelta(t, 0.5, cfg.LinearErrorCorrection, 1e-9)
	require.Equal(t, DefaultJointConfig.SlopTolerance, cfg.SlopTolerance)
	require.Equal(t, DefaultJointConfig.VelocityIterations, cfg.VelocityIterations)
}

func TestSolverRunsWarmStartThenIterationsThenPosition(t *testing.T) {
	a := body.New()
	b := body.New()
	b.Position = vecmath.Vec3{X: 2}
	a.LinearVelocity = vecmath.Vec3{X: -1}
	b.LinearVelocity = vecmath.Vec3{X: 1}

	j := NewWeldJoint(a, b, vecmath.Vec3{}, vecmath.Vec3{}, JointConfigOverride{})
	solver := &Solver{Joints: []Joint{j}}
	solver.Solve(PseudoVelocity)

	// The velocity iterations cancel the separating velocity; the position
	// pass that runs last then pulls the anchors together with an impulse of
	// 0.2*(2-0.005)/2 on each body, leaving a closing relative velocity.
	require.InDelta(t, -0.399, b.LinearVelocity.X-a.LinearVelocity.X, 1e-9)
}
