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

// Layer is an atomic catalog resource living inside a workspace.
type Layer struct {
	Name      string `json:"name"`
	Workspace string `json:"workspace"`
	Title     string `json:"title"`
}

// NewLayer creates a new layer in the given workspace. The workspace must
// exist first.
func NewLayer(workspace string, name string) (*Layer, util.Gerror) {
	var found bool
	if !util.ValidateName(name) {
		return nil, util.Errorf("invalid name '%s' for layer", name)
	}
	if _, err := GetWorkspace(workspace); err != nil {
		return nil, err
	}
	if config.UsingDB() {
		var err error
		found, err = checkForLayerSQL(datastore.Dbh, workspace, name)
		if err != nil {
			gerr := util.Errorf(err.Error())
			gerr.SetStatus(http.StatusInternalServerError)
			return nil, gerr
		}
	} else {
		ds := datastore.New()
		_, found = ds.Get(KindLayer, LayerID(workspace, name))
	}
	if found {
		err := util.Errorf("Layer %s in workspace %s already exists", name, workspace)
		err.SetStatus(http.StatusConflict)
		return nil, err
	}
	l := &Layer{Name: name, Workspace: workspace}
	return l, nil
}

// GetLayer gets a layer by workspace and name.
func GetLayer(workspace string, name string) (*Layer, util.Gerror) {
	var layer *Layer
	var found bool

	if config.UsingDB() {
		var err error
		layer, err = getLayerSQL(workspace, name)
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
		var l interface{}
		l, found = ds.Get(KindLayer, LayerID(workspace, name))
		if l != nil {
			layer = l.(*Layer)
		}
	}
	if !found {
		err := util.Errorf("layer '%s' not found in workspace %s", name, workspace)
		err.SetStatus(http.StatusNotFound)
		return nil, err
	}
	return layer, nil
}

// GetLayerID gets a layer by its qualified id.
func GetLayerID(id string) (*Layer, util.Gerror) {
	ws, name := SplitID(id)
	if ws == "" {
		err := util.Errorf("layer id '%s' has no workspace qualifier", id)
		err.SetStatus(http.StatusBadRequest)
		return nil, err
	}
	return GetLayer(ws, name)
}

// Save the layer.
func (l *Layer) Save() util.Gerror {
	if config.UsingDB() {
		if err := l.saveSQL(); err != nil {
			return util.CastErr(err)
		}
		return nil
	}
	ds := datastore.New()
	ds.Set(KindLayer, l.ResourceID(), l)
	return nil
}

// Delete the layer.
func (l *Layer) Delete() util.Gerror {
	if config.UsingDB() {
		if err := l.deleteSQL(); err != nil {
			return util.CastErr(err)
		}
		return nil
	}
	ds := datastore.New()
	ds.Delete(KindLayer, l.ResourceID())
	return nil
}

// Rename the layer. The layer keeps its identity; any group memberships are
// the containment index's business and are transferred by the caller.
func (l *Layer) Rename(newName string) util.Gerror {
	if !util.ValidateName(newName) {
		return util.Errorf("invalid name '%s' for layer", newName)
	}
	if _, err := GetLayer(l.Workspace, newName); err == nil {
		gerr := util.Errorf("Layer %s in workspace %s already exists", newName, l.Workspace)
		gerr.SetStatus(http.StatusConflict)
		return gerr
	}
	if config.UsingDB() {
		if err := l.renameSQL(newName); err != nil {
			return util.CastErr(err)
		}
		l.Name = newName
		return nil
	}
	ds := datastore.New()
	ds.Delete(KindLayer, l.ResourceID())
	l.Name = newName
	ds.Set(KindLayer, l.ResourceID(), l)
	return nil
}

// GetLayerList returns the qualified ids of all layers in a workspace, or of
// every layer when the workspace is empty.
func GetLayerList(workspace string) []string {
	if config.UsingDB() {
		return getLayerListSQL(workspace)
	}
	ds := datastore.New()
	all := ds.GetList(KindLayer)
	if workspace == "" {
		return all
	}
	lays := make([]string, 0, len(all))
	prefix := workspace + ":"
	for _, id := range all {
		if len(id) > len(prefix) && id[:len(prefix)] == prefix {
			lays = append(lays, id)
		}
	}
	return lays
}

// GetName returns the layer's name.
func (l *Layer) GetName() string {
	return l.Name
}

// URLType returns the base element of a layer's URL.
func (l *Layer) URLType() string {
	return "layers"
}

// ResourceID returns the layer's qualified id.
func (l *Layer) ResourceID() string {
	return LayerID(l.Workspace, l.Name)
}

// Kind identifies layers in the data store.
func (l *Layer) Kind() string {
	return KindLayer
}
