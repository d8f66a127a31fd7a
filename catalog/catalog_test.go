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

package catalog

import (
	"encoding/gob"
	"testing"
)

func init() {
	gob.Register(new(Workspace))
	gob.Register(new(Layer))
	gob.Register(new(LayerGroup))
}

func TestWorkspaceLifecycle(t *testing.T) {
	w, err := NewWorkspace("topp")
	if err != nil {
		t.Fatalf("creating a workspace gave an error: %s", err.Error())
	}
	if gerr := w.Save(); gerr != nil {
		t.Fatalf("saving a workspace gave an error: %s", gerr.Error())
	}
	if _, err = NewWorkspace("topp"); err == nil {
		t.Errorf("creating a duplicate workspace should fail")
	}
	w2, err := GetWorkspace("topp")
	if err != nil {
		t.Fatalf("getting a workspace gave an error: %s", err.Error())
	}
	if w2.Name != "topp" {
		t.Errorf("got the wrong workspace back: %s", w2.Name)
	}
	if _, err = NewWorkspace("bad name"); err == nil {
		t.Errorf("a workspace name with a space should not validate")
	}
}

func TestLayerLifecycle(t *testing.T) {
	w, _ := NewWorkspace("sf")
	w.Save()
	l, err := NewLayer("sf", "roads")
	if err != nil {
		t.Fatalf("creating a layer gave an error: %s", err.Error())
	}
	if gerr := l.Save(); gerr != nil {
		t.Fatalf("saving a layer gave an error: %s", gerr.Error())
	}
	if l.ResourceID() != "sf:roads" {
		t.Errorf("wrong layer id %s", l.ResourceID())
	}
	if _, err = NewLayer("nowhere", "roads"); err == nil {
		t.Errorf("a layer in a nonexistent workspace should not create")
	}
	l2, err := GetLayerID("sf:roads")
	if err != nil {
		t.Fatalf("getting a layer by id gave an error: %s", err.Error())
	}
	if l2.Name != "roads" || l2.Workspace != "sf" {
		t.Errorf("got the wrong layer back: %+v", l2)
	}
	lays := GetLayerList("sf")
	if len(lays) != 1 || lays[0] != "sf:roads" {
		t.Errorf("layer list for sf came back wrong: %v", lays)
	}
	if gerr := w.Delete(); gerr == nil {
		t.Errorf("a workspace with layers in it should not delete")
	}
}

func TestLayerRename(t *testing.T) {
	w, _ := NewWorkspace("ren")
	w.Save()
	l, _ := NewLayer("ren", "before")
	l.Save()
	if gerr := l.Rename("after"); gerr != nil {
		t.Fatalf("renaming a layer gave an error: %s", gerr.Error())
	}
	if _, err := GetLayer("ren", "before"); err == nil {
		t.Errorf("the old layer name should be gone after a rename")
	}
	if _, err := GetLayer("ren", "after"); err != nil {
		t.Errorf("the new layer name should resolve after a rename: %s", err.Error())
	}
}

func TestLayerGroupLifecycle(t *testing.T) {
	w, _ := NewWorkspace("grp")
	w.Save()
	la, _ := NewLayer("grp", "alpha")
	la.Save()
	lb, _ := NewLayer("grp", "beta")
	lb.Save()
	lg, err := NewLayerGroup("grp", "both")
	if err != nil {
		t.Fatalf("creating a layer group gave an error: %s", err.Error())
	}
	if gerr := lg.AddMember("grp:alpha"); gerr != nil {
		t.Fatalf("adding a member gave an error: %s", gerr.Error())
	}
	lg.AddMember("grp:beta")
	lg.AddMember("grp:beta")
	if len(lg.Members) != 2 {
		t.Errorf("adding the same member twice should be a no-op, got %v", lg.Members)
	}
	if gerr := lg.AddMember("grp:nothere"); gerr == nil {
		t.Errorf("adding a nonexistent member should fail")
	}
	if gerr := lg.AddMember(lg.ResourceID()); gerr == nil {
		t.Errorf("a group should not contain itself")
	}
	if gerr := lg.Save(); gerr != nil {
		t.Fatalf("saving a layer group gave an error: %s", gerr.Error())
	}
	if !IsComposite("grp:both") {
		t.Errorf("a layer group id should be composite")
	}
	if IsComposite("grp:alpha") {
		t.Errorf("a plain layer id should not be composite")
	}
	lg.RemoveMember("grp:beta")
	if lg.HasMember("grp:beta") {
		t.Errorf("removed member is still in the group")
	}
}

func TestGlobalLayerGroup(t *testing.T) {
	lg, err := NewLayerGroup("", "basemaps")
	if err != nil {
		t.Fatalf("creating a global layer group gave an error: %s", err.Error())
	}
	if lg.ResourceID() != "basemaps" {
		t.Errorf("a global group id should be unqualified, got %s", lg.ResourceID())
	}
	lg.Save()
	if _, err = GetLayerGroupID("basemaps"); err != nil {
		t.Errorf("getting a global group by id gave an error: %s", err.Error())
	}
}

func TestLayerGroupRename(t *testing.T) {
	w, _ := NewWorkspace("grpren")
	w.Save()
	l, _ := NewLayer("grpren", "one")
	l.Save()
	inner, _ := NewLayerGroup("grpren", "inner")
	inner.AddMember("grpren:one")
	inner.Save()
	outer, _ := NewLayerGroup("grpren", "outer")
	outer.AddMember("grpren:inner")
	outer.Save()

	if gerr := inner.Rename("renamed"); gerr != nil {
		t.Fatalf("renaming a layer group gave an error: %s", gerr.Error())
	}
	if _, err := GetLayerGroup("grpren", "inner"); err == nil {
		t.Errorf("the old group name should be gone after a rename")
	}
	ren, err := GetLayerGroup("grpren", "renamed")
	if err != nil {
		t.Fatalf("the renamed group should resolve: %s", err.Error())
	}
	if !ren.HasMember("grpren:one") {
		t.Errorf("the renamed group lost its members: %v", ren.Members)
	}
	outer2, _ := GetLayerGroup("grpren", "outer")
	if !outer2.HasMember("grpren:renamed") || outer2.HasMember("grpren:inner") {
		t.Errorf("the containing group should point at the new id, got %v", outer2.Members)
	}
}
