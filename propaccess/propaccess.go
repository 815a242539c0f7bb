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

// Package propaccess narrows the scripting/reflection layer's dynamic
// Property/Variant/Type metasystem (out of scope for this core, per the
// specification's collaborator boundary) down to the small capability set
// the replicator actually needs: read a named property off an owner,
// write one back, and know its Variant Type. Concrete games wire a
// propaccess.Accessor per property name; this core never reflects over
// arbitrary Go structs itself.
package propaccess

import "github.com/replicore/engine/variant"

// Owner is any object whose named properties can be read and written by
// an Accessor. It stands in for the scene graph's Cog in the out-of-scope
// reflection layer.
type Owner interface {
	// OwnerID is an opaque identifier used only for logging/diagnostics.
	OwnerID() uint64
}

// Accessor is the per-property capability set a channel uses to move a
// value between a game object and the wire, without the replicator ever
// needing to know the property's concrete Go type.
type Accessor interface {
	// Name is the property's name as it appears in channel configuration
	// and diagnostics.
	Name() string
	// Type is the Variant Type this property serializes as.
	Type() variant.Type
	// EnumCardinality is consulted only when Type()==variant.TypeEnum.
	EnumCardinality() variant.EnumCardinality
	// Get reads the current value off owner.
	Get(owner Owner) variant.Variant
	// Set writes value onto owner.
	Set(owner Owner, value variant.Variant)
	// IsNetProperty reports whether this property participates in
	// replication at all (attribute query mirroring the reflection
	// layer's isNetProperty).
	IsNetProperty() bool
	// IsNetPeerID reports whether this property holds a peer id needing
	// peer-relative remapping rather than plain value replication.
	IsNetPeerID() bool
}

// Func adapts a pair of getter/setter closures into an Accessor, the
// common case for game code wiring up a property without defining a type.
type Func struct {
	PropName     string
	PropType     variant.Type
	Cardinality  variant.EnumCardinality
	GetFunc      func(Owner) variant.Variant
	SetFunc      func(Owner, variant.Variant)
	NetProperty  bool
	NetPeerIDTag bool
}

// Name implements Accessor.
func (f Func) Name() string { return f.PropName }

// Type implements Accessor.
func (f Func) Type() variant.Type { return f.PropType }

// EnumCardinality implements Accessor.
func (f Func) EnumCardinality() variant.EnumCardinality { return f.Cardinality }

// Get implements Accessor.
func (f Func) Get(owner Owner) variant.Variant { return f.GetFunc(owner) }

// Set implements Accessor.
func (f Func) Set(owner Owner, value variant.Variant) { f.SetFunc(owner, value) }

// IsNetProperty implements Accessor.
func (f Func) IsNetProperty() bool { return f.NetProperty }

// IsNetPeerID implements Accessor.
func (f Func) IsNetPeerID() bool { return f.NetPeerIDTag }
