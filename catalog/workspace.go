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

// Workspace is a namespace for layers. It holds no members itself; layers
// point at it by name.
type Workspace struct {
	Name string `json:"name"`
}

// NewWorkspace creates a new workspace, if one with that name does not exist
// already.
func NewWorkspace(name string) (*Workspace, util.Gerror) {
	var found bool
	if !util.ValidateName(name) {
		return nil, util.Errorf("invalid name '%s' for workspace", name)
	}
	if config.UsingDB() {
		var err error
		found, err = checkForWorkspaceSQL(datastore.Dbh, name)
		if err != nil {
			gerr := util.Errorf(err.Error())
			gerr.SetStatus(http.StatusInternalServerError)
			return nil, gerr
		}
	} else {
		ds := datastore.New()
		_, found = ds.Get(KindWorkspace, name)
	}
	if found {
		err := util.Errorf("Workspace %s already exists", name)
		err.SetStatus(http.StatusConflict)
		return nil, err
	}
	w := &Workspace{Name: name}
	return w, nil
}

// GetWorkspace gets a workspace by name.
func GetWorkspace(name string) (*Workspace, util.Gerror) {
	var workspace *Workspace
	var found bool

	if config.UsingDB() {
		var err error
		workspace, err = getWorkspaceSQL(name)
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
		var w interface{}
		w, found = ds.Get(KindWorkspace, name)
		if w != nil {
			workspace = w.(*Workspace)
		}
	}
	if !found {
		err := util.Errorf("workspace '%s' not found", name)
		err.SetStatus(http.StatusNotFound)
		return nil, err
	}
	return workspace, nil
}

// Save the workspace.
func (w *Workspace) Save() util.Gerror {
	if config.UsingDB() {
		if err := w.saveSQL(); err != nil {
			return util.CastErr(err)
		}
		return nil
	}
	ds := datastore.New()
	ds.Set(KindWorkspace, w.Name, w)
	return nil
}

// Delete the workspace. A workspace that still holds layers cannot be
// deleted.
func (w *Workspace) Delete() util.Gerror {
	if lay := GetLayerList(w.Name); len(lay) != 0 {
		err := util.Errorf("workspace %s still contains %d layers", w.Name, len(lay))
		err.SetStatus(http.StatusConflict)
		return err
	}
	if config.UsingDB() {
		if err := w.deleteSQL(); err != nil {
			return util.CastErr(err)
		}
		return nil
	}
	ds := datastore.New()
	ds.Delete(KindWorkspace, w.Name)
	return nil
}

// GetWorkspaceList returns a list of workspace names.
func GetWorkspaceList() []string {
	if config.UsingDB() {
		return getWorkspaceListSQL()
	}
	ds := datastore.New()
	return ds.GetList(KindWorkspace)
}

// GetName returns the workspace's name.
func (w *Workspace) GetName() string {
	return w.Name
}

// URLType returns the base element of a workspace's URL.
func (w *Workspace) URLType() string {
	return "workspaces"
}

// ResourceID returns the workspace's qualified id, which is just its name.
func (w *Workspace) ResourceID() string {
	return w.Name
}

// Kind identifies workspaces in the data store.
func (w *Workspace) Kind() string {
	return KindWorkspace
}
