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

package replica

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/replicore/engine/bitstream"
	"github.com/replicore/engine/physics/vecmath"
	"github.com/replicore/engine/propaccess"
	"github.com/replicore/engine/variant"
)

type fakeOwner struct {
	id       uint64
	position variant.Variant
}

func (o *fakeOwner) OwnerID() uint64 { return o.id }

func positionAccessor() propaccess.Accessor {
	return propaccess.Func{
		PropName: "Position",
		PropType: variant.TypeVector3,
		GetFunc:  func(o propaccess.Owner) variant.Variant { return o.(*fakeOwner).position },
		SetFunc:  func(o propaccess.Owner, v variant.Variant) { o.(*fakeOwner).position = v },
	}
}

func TestNewPropertyRejectsHalfFloatAndQuantizedTogether(t *testing.T) {
	_, err := NewProperty(positionAccessor(), Config{HalfFloat: true, Quantized: true})
	require.Error(t, err)
}

func TestChannelChangedModeWritesOnlyChangedProperties(t *testing.T) {
	owner := &fakeOwner{position: variant.Vector3(vecmath.Vec3{})}
	p, err := NewProperty(positionAccessor(), Config{DeltaThreshold: 0.001})
	require.NoError(t, err)

	ch := NewChannel(ChannelConfig{
		Name:              "Pose",
		Detection:         Automatic,
		AwakeDuration:     10,
		ReplicateOnChange: true,
	}, p)

	ch.Sample(owner, 0) // establish baseline (first sample always "changed")

	owner.position = variant.Vector3(vecmath.Vec3{X: 1, Y: 2, Z: 3})
	changed := ch.Sample(owner, 1)
	require.True(t, changed)

	mask := []bool{true}
	s := bitstream.New()
	require.NoError(t, ch.Serialize(s, owner, 1, mask))

	ch2 := NewChannel(ch.Config, func() *ReplicaProperty {
		p2, _ := NewProperty(positionAccessor(), p.Config)
		return p2
	}())
	require.NoError(t, ch2.Deserialize(s, 1, 0))
	require.Len(t, ch2.Properties[0].History(), 1)
}

func TestChannelNapsAfterAwakeDuration(t *testing.T) {
	owner := &fakeOwner{}
	p, _ := NewProperty(positionAccessor(), Config{})
	ch := NewChannel(ChannelConfig{Name: "Still", Detection: Automatic, AwakeDuration: 3, AwakeDetectionInterval: 0.1, NapDetectionInterval: 1}, p)

	for i := 0; i < 3; i++ {
		ch.Sample(owner, SampleTime(i))
	}
	require.False(t, ch.IsNapping())
	ch.Sample(owner, SampleTime(4))
	require.True(t, ch.IsNapping())
}

func TestReplicaLifecycleTransitions(t *testing.T) {
	r := New(Identity{})
	require.Equal(t, Invalid, r.State())

	require.NoError(t, r.MakeValid())
	require.Error(t, r.MakeValid(), "double MakeValid should be rejected")

	require.NoError(t, r.MakeLive(42))
	require.NoError(t, r.MakeLive(42), "replaying the same creation message must be idempotent")
	require.Error(t, r.MakeLive(99), "a conflicting live id must be rejected")

	onlineFired := false
	r.OnOnline(func(*Replica) { onlineFired = true })
	require.NoError(t, r.GoOnline(1))
	require.True(t, onlineFired)
	require.NoError(t, r.GoOnline(2), "replaying online confirmation must be idempotent")

	offlineFired := false
	r.OnOffline(func(*Replica) { offlineFired = true })
	require.NoError(t, r.TakeOffline(2))
	require.True(t, offlineFired)
	require.Error(t, r.TakeOffline(3), "cannot take offline twice")
}

func TestFamilyTreeDeferredAttachSurvivesReorder(t *testing.T) {
	tree := NewFamilyTree(1)
	root := New(Identity{ObjectID: 1})
	require.NoError(t, root.MakeValid())
	require.NoError(t, root.MakeLive(1))
	require.NoError(t, tree.AddRoot(root))

	child := New(Identity{ObjectID: 2})
	child.ParentID = 1
	require.NoError(t, tree.AddDescendant(child))

	// parent not yet online: child should be deferred, not lost.
	require.NoError(t, root.GoOnline(0))
	released := tree.AttachDeferred(1)
	require.Len(t, released, 1, "deferred child lost across reorder, tree: %s", spew.Sdump(tree))
	require.Equal(t, ObjectID(2), released[0].Identity.ObjectID)
}

func TestFamilyTreeEmptyWhenAllSlotsNulled(t *testing.T) {
	tree := NewFamilyTree(1)
	root := New(Identity{ObjectID: 1})
	require.NoError(t, tree.AddRoot(root))
	require.False(t, tree.IsEmpty())
	tree.Remove(1)
	require.True(t, tree.IsEmpty())
}
