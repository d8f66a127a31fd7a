/* Layer functions */

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

package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/portiere/portiere/adminacl"
	"github.com/portiere/portiere/catalog"
	"github.com/portiere/portiere/containment"
	"github.com/portiere/portiere/util"
)

func layersListHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	vars := mux.Vars(r)
	wsName := vars["workspace"]

	switch r.Method {
	case "GET", "HEAD":
		if !checkAdminPerm(w, r, adminacl.Catalog, "read") {
			return
		}
		if _, err := catalog.GetWorkspace(wsName); err != nil {
			headOrErrReport(w, r, err.Error(), err.Status())
			return
		}
		if r.Method == "HEAD" {
			headResponse(w, r, http.StatusOK)
			return
		}
		layerList := catalog.GetLayerList(wsName)
		enc := json.NewEncoder(w)
		if err := enc.Encode(&layerList); err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
		}
	case "POST":
		if !checkAdminPerm(w, r, adminacl.Catalog, "create") {
			return
		}
		layerData, jerr := parseObjJSON(r.Body)
		if jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusBadRequest)
			return
		}
		name, sterr := util.ValidateAsString(layerData["name"])
		if sterr != nil {
			jsonErrorReport(w, r, sterr.Error(), sterr.Status())
			return
		}
		l, nerr := catalog.NewLayer(wsName, name)
		if nerr != nil {
			jsonErrorReport(w, r, nerr.Error(), nerr.Status())
			return
		}
		if t, ok := layerData["title"]; ok {
			title, terr := util.ValidateAsString(t)
			if terr != nil {
				jsonErrorReport(w, r, terr.Error(), terr.Status())
				return
			}
			l.Title = title
		}
		if serr := l.Save(); serr != nil {
			jsonErrorReport(w, r, serr.Error(), serr.Status())
			return
		}
		announceChange("catalog-change", map[string]string{"layer": l.ResourceID(), "action": "create"})
		w.WriteHeader(http.StatusCreated)
		enc := json.NewEncoder(w)
		if err := enc.Encode(&l); err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
		}
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}

func layerHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	vars := mux.Vars(r)
	wsName := vars["workspace"]
	layerName := vars["layer"]

	switch r.Method {
	case "GET", "HEAD":
		if !checkAdminPerm(w, r, adminacl.Catalog, "read") {
			return
		}
		l, err := catalog.GetLayer(wsName, layerName)
		if err != nil {
			headOrErrReport(w, r, err.Error(), err.Status())
			return
		}
		if r.Method == "HEAD" {
			headResponse(w, r, http.StatusOK)
			return
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&l); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	case "PUT":
		// renames only; a layer's workspace never changes
		if !checkAdminPerm(w, r, adminacl.Catalog, "update") {
			return
		}
		l, err := catalog.GetLayer(wsName, layerName)
		if err != nil {
			jsonErrorReport(w, r, err.Error(), err.Status())
			return
		}
		layerData, jerr := parseObjJSON(r.Body)
		if jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusBadRequest)
			return
		}
		newName, sterr := util.ValidateAsString(layerData["name"])
		if sterr != nil {
			jsonErrorReport(w, r, sterr.Error(), sterr.Status())
			return
		}
		oldID := l.ResourceID()
		if newName != l.Name {
			if rerr := l.Rename(newName); rerr != nil {
				jsonErrorReport(w, r, rerr.Error(), rerr.Status())
				return
			}
			if rerr := catalog.RenameMemberRefs(oldID, l.ResourceID()); rerr != nil {
				jsonErrorReport(w, r, rerr.Error(), rerr.Status())
				return
			}
			if idx := containment.GetIndex(); idx != nil {
				idx.ResourceRenamed(oldID, l.ResourceID())
			}
			announceChange("catalog-change", map[string]string{"layer": l.ResourceID(), "action": "rename"})
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&l); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	case "DELETE":
		if !checkAdminPerm(w, r, adminacl.Catalog, "delete") {
			return
		}
		l, err := catalog.GetLayer(wsName, layerName)
		if err != nil {
			jsonErrorReport(w, r, err.Error(), err.Status())
			return
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&l); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
			return
		}
		if derr := l.Delete(); derr != nil {
			jsonErrorReport(w, r, derr.Error(), derr.Status())
			return
		}
		if rerr := catalog.RemoveMemberRefs(l.ResourceID()); rerr != nil {
			jsonErrorReport(w, r, rerr.Error(), rerr.Status())
			return
		}
		if idx := containment.GetIndex(); idx != nil {
			idx.ResourceRemoved(l.ResourceID())
		}
		announceChange("catalog-change", map[string]string{"layer": l.ResourceID(), "action": "delete"})
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}
