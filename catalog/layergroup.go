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
	"database/sql"
	"net/http"

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/datastore"
	"github.com/portiere/portiere/util"
)

// LayerGroup is a composite resource aggregating layers and other layer
// groups. Members are stored as qualified ids; a group with an empty
// Workspace is global.
type LayerGroup struct {
	Name      string   `json:"name"`
	Workspace string   `json:"workspace"`
	Members   []string `json:"members"`
}

// NewLayerGroup creates a new layer group. A workspace-scoped group needs its
// workspace to exist first; a global group passes "" for the workspace.
func NewLayerGroup(workspace string, name string) (*LayerGroup, util.Gerror) {
	var found bool
	if !util.ValidateName(name) {
		return nil, util.Errorf("invalid name '%s' for layer group", name)
	}
	if workspace != "" {
		if _, err := GetWorkspace(workspace); err != nil {
			return nil, err
		}
	}
	if config.UsingDB() {
		var err error
		found, err = checkForLayerGroupSQL(datastore.Dbh, workspace, name)
		if err != nil {
			gerr := util.Errorf(err.Error())
			gerr.SetStatus(http.StatusInternalServerError)
			return nil, gerr
		}
	} else {
		ds := datastore.New()
		_, found = ds.Get(KindLayerGroup, GroupID(workspace, name))
	}
	if found {
		err := util.Errorf("Layer group %s already exists", GroupID(workspace, name))
		err.SetStatus(http.StatusConflict)
		return nil, err
	}
	lg := &LayerGroup{Name: name, Workspace: workspace, Members: []string{}}
	return lg, nil
}

// GetLayerGroup gets a layer group by workspace and name.
func GetLayerGroup(workspace string, name string) (*LayerGroup, util.Gerror) {
	var group *LayerGroup
	var found bool

	if config.UsingDB() {
		var err error
		group, err = getLayerGroupSQL(workspace, name)
		if err != nil {
			if err == sql.ErrNoRows {
				found = false
			} else {
				return nil, util.CastErr(err)
			}
		} else {
			found = true
		}
	} else {
		ds := datastore.New()
		var g interface{}
		g, found = ds.Get(KindLayerGroup, GroupID(workspace, name))
		if g != nil {
			group = g.(*LayerGroup)
		}
	}
	if !found {
		err := util.Errorf("layer group '%s' not found", GroupID(workspace, name))
		err.SetStatus(http.StatusNotFound)
		return nil, err
	}
	return group, nil
}

// GetLayerGroupID gets a layer group by its qualified id.
func GetLayerGroupID(id string) (*LayerGroup, util.Gerror) {
	ws, name := SplitID(id)
	return GetLayerGroup(ws, name)
}

// Save the layer group.
func (lg *LayerGroup) Save() util.Gerror {
	if config.UsingDB() {
		if err := lg.saveSQL(); err != nil {
			return util.CastErr(err)
		}
		return nil
	}
	ds := datastore.New()
	ds.Set(KindLayerGroup, lg.ResourceID(), lg)
	return nil
}

// Delete the layer group.
func (lg *LayerGroup) Delete() util.Gerror {
	if config.UsingDB() {
		if err := lg.deleteSQL(); err != nil {
			return util.CastErr(err)
		}
		return nil
	}
	ds := datastore.New()
	ds.Delete(KindLayerGroup, lg.ResourceID())
	return nil
}

// AddMember adds a resource to the group by qualified id. The resource must
// exist, and a group cannot contain itself.
func (lg *LayerGroup) AddMember(id string) util.Gerror {
	if id == lg.ResourceID() {
		err := util.Errorf("layer group %s cannot contain itself", id)
		err.SetStatus(http.StatusBadRequest)
		return err
	}
	if _, err := GetLayerID(id); err != nil {
		if _, gerr := GetLayerGroupID(id); gerr != nil {
			nerr := util.Errorf("no layer or layer group with id '%s' to add to %s", id, lg.ResourceID())
			nerr.SetStatus(http.StatusNotFound)
			return nerr
		}
	}
	if util.StringPresentInSlice(id, lg.Members) {
		return nil
	}
	lg.Members = append(lg.Members, id)
	return nil
}

// RemoveMember takes a resource out of the group.
func (lg *LayerGroup) RemoveMember(id string) {
	for i, m := range lg.Members {
		if m == id {
			lg.Members = util.DelSliceElement(i, lg.Members)
			return
		}
	}
}

// HasMember checks for a direct member with the given id.
func (lg *LayerGroup) HasMember(id string) bool {
	return util.StringPresentInSlice(id, lg.Members)
}

// Rename the layer group, keeping its members. Groups elsewhere in the
// catalog that list this group as a member are rewritten to the new id.
func (lg *LayerGroup) Rename(newName string) util.Gerror {
	if !util.ValidateName(newName) {
		return util.Errorf("invalid name '%s' for layer group", newName)
	}
	if _, err := GetLayerGroup(lg.Workspace, newName); err == nil {
		gerr := util.Errorf("Layer group %s already exists", GroupID(lg.Workspace, newName))
		gerr.SetStatus(http.StatusConflict)
		return gerr
	}
	oldID := lg.ResourceID()
	if config.UsingDB() {
		if err := lg.renameSQL(newName); err != nil {
			return util.CastErr(err)
		}
		lg.Name = newName
	} else {
		ds := datastore.New()
		ds.Delete(KindLayerGroup, oldID)
		lg.Name = newName
		ds.Set(KindLayerGroup, lg.ResourceID(), lg)
	}
	newID := lg.ResourceID()
	for _, gid := range GetLayerGroupList() {
		if gid == newID {
			continue
		}
		g, err := GetLayerGroupID(gid)
		if err != nil {
			continue
		}
		if g.HasMember(oldID) {
			g.RemoveMember(oldID)
			g.Members = append(g.Members, newID)
			if err = g.Save(); err != nil {
				return err
			}
		}
	}
	return nil
}

// RenameMemberRefs rewrites every group's reference to a renamed resource.
// The group rename method does this itself; this is for layer renames.
func RenameMemberRefs(oldID string, newID string) util.Gerror {
	for _, gid := range GetLayerGroupList() {
		g, err := GetLayerGroupID(gid)
		if err != nil {
			continue
		}
		if g.HasMember(oldID) {
			g.RemoveMember(oldID)
			g.Members = append(g.Members, newID)
			if err = g.Save(); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveMemberRefs strips a deleted resource out of every group that lists
// it.
func RemoveMemberRefs(id string) util.Gerror {
	for _, gid := range GetLayerGroupList() {
		g, err := GetLayerGroupID(gid)
		if err != nil {
			continue
		}
		if g.HasMember(id) {
			g.RemoveMember(id)
			if err = g.Save(); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetLayerGroupList returns the qualified ids of every layer group.
func GetLayerGroupList() []string {
	if config.UsingDB() {
		return getLayerGroupListSQL()
	}
	ds := datastore.New()
	return ds.GetList(KindLayerGroup)
}

// AllLayerGroups returns every layer group in the catalog. The containment
// index walks this at startup.
func AllLayerGroups() ([]*LayerGroup, util.Gerror) {
	ids := GetLayerGroupList()
	groups := make([]*LayerGroup, 0, len(ids))
	for _, id := range ids {
		lg, err := GetLayerGroupID(id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, lg)
	}
	return groups, nil
}

// GetName returns the layer group's name.
func (lg *LayerGroup) GetName() string {
	return lg.Name
}

// URLType returns the base element of a layer group's URL.
func (lg *LayerGroup) URLType() string {
	return "layergroups"
}

// ResourceID returns the layer group's qualified id.
func (lg *LayerGroup) ResourceID() string {
	return GroupID(lg.Workspace, lg.Name)
}

// Kind identifies layer groups in the data store.
func (lg *LayerGroup) Kind() string {
	return KindLayerGroup
}
