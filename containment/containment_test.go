/*
 * Copyright (c) 2013-2019, Jeremy Bingham (<jeremy@goiardi.gl>)
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package containment

import (
	"encoding/gob"
	"sync"
	"testing"

	"github.com/portiere/portiere/catalog"
)

func init() {
	gob.Register(new(catalog.Workspace))
	gob.Register(new(catalog.Layer))
	gob.Register(new(catalog.LayerGroup))
}

// build a little catalog: workspace cws with layers a and b, group inner
// holding a, group outer holding inner and b.
func seedCatalog(t *testing.T) {
	if _, err := catalog.GetWorkspace("cws"); err == nil {
		return
	}
	w, err := catalog.NewWorkspace("cws")
	if err != nil {
		t.Fatalf("seeding the catalog gave an error: %s", err.Error())
	}
	w.Save()
	for _, name := range []string{"a", "b", "c"} {
		l, lerr := catalog.NewLayer("cws", name)
		if lerr != nil {
			t.Fatalf("seeding layer %s gave an error: %s", name, lerr.Error())
		}
		l.Save()
	}
	inner, _ := catalog.NewLayerGroup("cws", "inner")
	inner.AddMember("cws:a")
	inner.Save()
	outer, _ := catalog.NewLayerGroup("cws", "outer")
	outer.AddMember("cws:inner")
	outer.AddMember("cws:b")
	outer.Save()
}

func freshIndex(t *testing.T) *Index {
	seedCatalog(t)
	if err := Initialize(); err != nil {
		t.Fatalf("initializing the index gave an error: %s", err.Error())
	}
	return GetIndex()
}

func sliceEq(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInitialClosure(t *testing.T) {
	idx := freshIndex(t)
	if got := idx.GroupsContaining("cws:a"); !sliceEq(got, []string{"cws:inner", "cws:outer"}) {
		t.Errorf("layer a should be in inner and, transitively, outer; got %v", got)
	}
	if got := idx.GroupsContaining("cws:b"); !sliceEq(got, []string{"cws:outer"}) {
		t.Errorf("layer b should be in outer only; got %v", got)
	}
	if got := idx.GroupsContaining("cws:inner"); !sliceEq(got, []string{"cws:outer"}) {
		t.Errorf("group inner should itself be in outer; got %v", got)
	}
	if got := idx.GroupsContaining("cws:c"); len(got) != 0 {
		t.Errorf("layer c is in no group, got %v", got)
	}
	if got := idx.GroupsContaining("cws:nothere"); len(got) != 0 {
		t.Errorf("an unknown id should be in no group, got %v", got)
	}
}

func TestResourceAdded(t *testing.T) {
	idx := freshIndex(t)
	idx.ResourceAdded("cws:c", []string{"cws:inner"})
	if got := idx.GroupsContaining("cws:c"); !sliceEq(got, []string{"cws:inner", "cws:outer"}) {
		t.Errorf("after adding c to inner, c should be in inner and outer; got %v", got)
	}
}

func TestResourceRemoved(t *testing.T) {
	idx := freshIndex(t)
	idx.ResourceRemoved("cws:a")
	if got := idx.GroupsContaining("cws:a"); len(got) != 0 {
		t.Errorf("a removed resource should be in no group, got %v", got)
	}
	if members := idx.DirectMembers("cws:inner"); len(members) != 0 {
		t.Errorf("inner should have no members after a was removed, got %v", members)
	}
}

func TestGroupRemoved(t *testing.T) {
	idx := freshIndex(t)
	idx.ResourceRemoved("cws:inner")
	if got := idx.GroupsContaining("cws:a"); len(got) != 0 {
		t.Errorf("removing inner should orphan a entirely, got %v", got)
	}
	if got := idx.GroupsContaining("cws:b"); !sliceEq(got, []string{"cws:outer"}) {
		t.Errorf("removing inner should not touch b, got %v", got)
	}
}

func TestEdgeRemoved(t *testing.T) {
	idx := freshIndex(t)
	idx.EdgeRemoved("cws:a", "cws:inner")
	if got := idx.GroupsContaining("cws:a"); len(got) != 0 {
		t.Errorf("a left its only group, so it should be in none; got %v", got)
	}
	if members := idx.DirectMembers("cws:inner"); len(members) != 0 {
		t.Errorf("inner should have no members after a left, got %v", members)
	}
	if got := idx.GroupsContaining("cws:inner"); !sliceEq(got, []string{"cws:outer"}) {
		t.Errorf("inner itself should still sit in outer, got %v", got)
	}
	if got := idx.GroupsContaining("cws:b"); !sliceEq(got, []string{"cws:outer"}) {
		t.Errorf("b's closure should be untouched, got %v", got)
	}
}

func TestGroupEdgeRemoved(t *testing.T) {
	idx := freshIndex(t)
	// cut outer -> inner; a loses outer transitively but keeps inner
	idx.EdgeRemoved("cws:inner", "cws:outer")
	if got := idx.GroupsContaining("cws:a"); !sliceEq(got, []string{"cws:inner"}) {
		t.Errorf("a should keep inner and lose outer, got %v", got)
	}
	if got := idx.GroupsContaining("cws:inner"); len(got) != 0 {
		t.Errorf("inner should no longer be in any group, got %v", got)
	}
	if got := idx.GroupsContaining("cws:b"); !sliceEq(got, []string{"cws:outer"}) {
		t.Errorf("b stayed in outer, got %v", got)
	}
	if members := idx.DirectMembers("cws:outer"); !sliceEq(members, []string{"cws:b"}) {
		t.Errorf("outer should hold only b now, got %v", members)
	}
}

func TestResourceRenamed(t *testing.T) {
	idx := freshIndex(t)
	before := idx.GroupsContaining("cws:a")
	idx.ResourceRenamed("cws:a", "cws:a2")
	if got := idx.GroupsContaining("cws:a2"); !sliceEq(got, before) {
		t.Errorf("a rename should carry the closure over: had %v, got %v", before, got)
	}
	if got := idx.GroupsContaining("cws:a"); len(got) != 0 {
		t.Errorf("the old id should resolve to nothing after a rename, got %v", got)
	}
	if members := idx.DirectMembers("cws:inner"); !sliceEq(members, []string{"cws:a2"}) {
		t.Errorf("inner should now hold a2, got %v", members)
	}
}

func TestGroupRenamed(t *testing.T) {
	idx := freshIndex(t)
	idx.ResourceRenamed("cws:inner", "cws:renamed")
	if got := idx.GroupsContaining("cws:a"); !sliceEq(got, []string{"cws:outer", "cws:renamed"}) {
		t.Errorf("a's closure should follow the group rename, got %v", got)
	}
	if got := idx.GroupsContaining("cws:renamed"); !sliceEq(got, []string{"cws:outer"}) {
		t.Errorf("the renamed group should still sit in outer, got %v", got)
	}
	if members := idx.DirectMembers("cws:outer"); len(members) != 2 {
		t.Errorf("outer should still have two members, got %v", members)
	}
}

func TestMembershipCycle(t *testing.T) {
	idx := freshIndex(t)
	// outer already contains inner; wire inner back around to outer
	idx.ResourceAdded("cws:outer", []string{"cws:inner"})
	got := idx.GroupsContaining("cws:a")
	for _, g := range got {
		if g == "cws:a" {
			t.Errorf("a resource should never contain itself, got %v", got)
		}
	}
	if len(got) == 0 {
		t.Errorf("a should still be contained somewhere despite the cycle")
	}
}

func TestConcurrentReads(t *testing.T) {
	idx := freshIndex(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got := idx.GroupsContaining("cws:a")
				// either both inner and outer or, mid-removal, nothing;
				// never a torn single-element state for this graph
				if len(got) == 1 && got[0] == "cws:inner" {
					t.Errorf("saw a half-updated closure: %v", got)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 20; j++ {
			idx.ResourceRemoved("cws:a")
			idx.ResourceAdded("cws:a", []string{"cws:inner"})
		}
	}()
	wg.Wait()
}

func TestDegraded(t *testing.T) {
	idx := freshIndex(t)
	if idx.Degraded() {
		t.Errorf("a freshly built index should not be degraded")
	}
}
