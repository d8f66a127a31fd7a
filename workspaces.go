/* Workspace functions */

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
	"github.com/portiere/portiere/util"
)

func workspacesListHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case "GET", "HEAD":
		if !checkAdminPerm(w, r, adminacl.Catalog, "read") {
			return
		}
		if r.Method == "HEAD" {
			headResponse(w, r, http.StatusOK)
			return
		}
		wsList := catalog.GetWorkspaceList()
		enc := json.NewEncoder(w)
		if err := enc.Encode(&wsList); err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
		}
	case "POST":
		if !checkAdminPerm(w, r, adminacl.Catalog, "create") {
			return
		}
		wsData, jerr := parseObjJSON(r.Body)
		if jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusBadRequest)
			return
		}
		name, sterr := util.ValidateAsString(wsData["name"])
		if sterr != nil {
			jsonErrorReport(w, r, sterr.Error(), sterr.Status())
			return
		}
		ws, nerr := catalog.NewWorkspace(name)
		if nerr != nil {
			jsonErrorReport(w, r, nerr.Error(), nerr.Status())
			return
		}
		if serr := ws.Save(); serr != nil {
			jsonErrorReport(w, r, serr.Error(), serr.Status())
			return
		}
		announceChange("catalog-change", map[string]string{"workspace": ws.Name, "action": "create"})
		w.WriteHeader(http.StatusCreated)
		enc := json.NewEncoder(w)
		if err := enc.Encode(&ws); err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
		}
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}

func workspaceHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	vars := mux.Vars(r)
	wsName := vars["workspace"]

	switch r.Method {
	case "GET", "HEAD":
		if !checkAdminPerm(w, r, adminacl.Catalog, "read") {
			return
		}
		ws, err := catalog.GetWorkspace(wsName)
		if err != nil {
			headOrErrReport(w, r, err.Error(), err.Status())
			return
		}
		if r.Method == "HEAD" {
			headResponse(w, r, http.StatusOK)
			return
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&ws); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	case "DELETE":
		if !checkAdminPerm(w, r, adminacl.Catalog, "delete") {
			return
		}
		ws, err := catalog.GetWorkspace(wsName)
		if err != nil {
			jsonErrorReport(w, r, err.Error(), err.Status())
			return
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&ws); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
			return
		}
		// an empty workspace only; Delete itself refuses otherwise
		if derr := ws.Delete(); derr != nil {
			jsonErrorReport(w, r, derr.Error(), derr.Status())
			return
		}
		announceChange("catalog-change", map[string]string{"workspace": ws.Name, "action": "delete"})
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}
