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

package effects

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// Region gates a set of effects behind an optional scripted activation
// predicate (e.g. "strength > 0.5 && count < 10") evaluated once per tick
// against Variables. A Region has no volume of its own: while active, its
// effects are applied to every body it is gathered for, with no overlap
// test.
type Region struct {
	Effects   []Effect
	Predicate string
	Variables map[string]interface{}

	expr *govaluate.EvaluableExpression
}

// Prepare parses Predicate, if set. Call once after configuring the
// region and again whenever Predicate changes.
func (r *Region) Prepare() error {
	if r.Predicate == "" {
		r.expr = nil
		return nil
	}
	expr, err := govaluate.NewEvaluableExpression(r.Predicate)
	if err != nil {
		return fmt.Errorf("effects: invalid region predicate %q: %w", r.Predicate, err)
	}
	r.expr = expr
	return nil
}

// Active reports whether this region's effects should apply this tick.
// A region with no predicate is always active.
func (r *Region) Active() (bool, error) {
	if r.expr == nil {
		return true, nil
	}
	result, err := r.expr.Evaluate(r.Variables)
	if err != nil {
		return false, fmt.Errorf("effects: evaluating region predicate %q: %w", r.Predicate, err)
	}
	active, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("effects: region predicate %q did not evaluate to a boolean", r.Predicate)
	}
	return active, nil
}
