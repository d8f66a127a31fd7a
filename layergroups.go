/* Layer group functions */

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

func layerGroupsListHandler(w http.ResponseWriter, r *http.Request) {
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
		groupList := catalog.GetLayerGroupList()
		enc := json.NewEncoder(w)
		if err := enc.Encode(&groupList); err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
		}
	case "POST":
		if !checkAdminPerm(w, r, adminacl.Catalog, "create") {
			return
		}
		groupData, jerr := parseObjJSON(r.Body)
		if jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusBadRequest)
			return
		}
		name, sterr := util.ValidateAsString(groupData["name"])
		if sterr != nil {
			jsonErrorReport(w, r, sterr.Error(), sterr.Status())
			return
		}
		var wsName string
		if ws, ok := groupData["workspace"]; ok {
			var wserr util.Gerror
			wsName, wserr = util.ValidateAsString(ws)
			if wserr != nil {
				jsonErrorReport(w, r, wserr.Error(), wserr.Status())
				return
			}
		}
		lg, nerr := catalog.NewLayerGroup(wsName, name)
		if nerr != nil {
			jsonErrorReport(w, r, nerr.Error(), nerr.Status())
			return
		}
		if m, ok := groupData["members"]; ok {
			members, merr := validateStringSlice(m)
			if merr != nil {
				jsonErrorReport(w, r, merr.Error(), merr.Status())
				return
			}
			for _, mid := range members {
				if aerr := lg.AddMember(mid); aerr != nil {
					jsonErrorReport(w, r, aerr.Error(), aerr.Status())
					return
				}
			}
		}
		if serr := lg.Save(); serr != nil {
			jsonErrorReport(w, r, serr.Error(), serr.Status())
			return
		}
		if idx := containment.GetIndex(); idx != nil {
			for _, mid := range lg.Members {
				idx.ResourceAdded(mid, []string{lg.ResourceID()})
			}
		}
		announceChange("catalog-change", map[string]string{"layergroup": lg.ResourceID(), "action": "create"})
		w.WriteHeader(http.StatusCreated)
		enc := json.NewEncoder(w)
		if err := enc.Encode(&lg); err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
		}
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}

func layerGroupHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	vars := mux.Vars(r)
	groupID := vars["group"]

	switch r.Method {
	case "GET", "HEAD":
		if !checkAdminPerm(w, r, adminacl.Catalog, "read") {
			return
		}
		lg, err := catalog.GetLayerGroupID(groupID)
		if err != nil {
			headOrErrReport(w, r, err.Error(), err.Status())
			return
		}
		if r.Method == "HEAD" {
			headResponse(w, r, http.StatusOK)
			return
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&lg); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	case "PUT":
		// renames only; members move through the member endpoint
		if !checkAdminPerm(w, r, adminacl.Catalog, "update") {
			return
		}
		lg, err := catalog.GetLayerGroupID(groupID)
		if err != nil {
			jsonErrorReport(w, r, err.Error(), err.Status())
			return
		}
		groupData, jerr := parseObjJSON(r.Body)
		if jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusBadRequest)
			return
		}
		newName, sterr := util.ValidateAsString(groupData["name"])
		if sterr != nil {
			jsonErrorReport(w, r, sterr.Error(), sterr.Status())
			return
		}
		oldID := lg.ResourceID()
		if newName != lg.Name {
			if rerr := lg.Rename(newName); rerr != nil {
				jsonErrorReport(w, r, rerr.Error(), rerr.Status())
				return
			}
			if idx := containment.GetIndex(); idx != nil {
				idx.ResourceRenamed(oldID, lg.ResourceID())
			}
			announceChange("catalog-change", map[string]string{"layergroup": lg.ResourceID(), "action": "rename"})
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&lg); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	case "DELETE":
		if !checkAdminPerm(w, r, adminacl.Catalog, "delete") {
			return
		}
		lg, err := catalog.GetLayerGroupID(groupID)
		if err != nil {
			jsonErrorReport(w, r, err.Error(), err.Status())
			return
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&lg); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
			return
		}
		if derr := lg.Delete(); derr != nil {
			jsonErrorReport(w, r, derr.Error(), derr.Status())
			return
		}
		if rerr := catalog.RemoveMemberRefs(lg.ResourceID()); rerr != nil {
			jsonErrorReport(w, r, rerr.Error(), rerr.Status())
			return
		}
		if idx := containment.GetIndex(); idx != nil {
			idx.ResourceRemoved(lg.ResourceID())
		}
		announceChange("catalog-change", map[string]string{"layergroup": lg.ResourceID(), "action": "delete"})
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}

func layerGroupMemberHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	vars := mux.Vars(r)
	groupID := vars["group"]
	memberID := vars["member"]

	lg, err := catalog.GetLayerGroupID(groupID)
	if err != nil {
		headOrErrReport(w, r, err.Error(), err.Status())
		return
	}

	switch r.Method {
	case "HEAD":
		if !checkAdminPerm(w, r, adminacl.Catalog, "read") {
			return
		}
		if !lg.HasMember(memberID) {
			headResponse(w, r, http.StatusNotFound)
			return
		}
		headResponse(w, r, http.StatusOK)
	case "PUT":
		if !checkAdminPerm(w, r, adminacl.Catalog, "update") {
			return
		}
		if aerr := lg.AddMember(memberID); aerr != nil {
			jsonErrorReport(w, r, aerr.Error(), aerr.Status())
			return
		}
		if serr := lg.Save(); serr != nil {
			jsonErrorReport(w, r, serr.Error(), serr.Status())
			return
		}
		if idx := containment.GetIndex(); idx != nil {
			idx.ResourceAdded(memberID, []string{lg.ResourceID()})
		}
		announceChange("catalog-change", map[string]string{"layergroup": lg.ResourceID(), "member": memberID, "action": "add-member"})
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&lg); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	case "DELETE":
		if !checkAdminPerm(w, r, adminacl.Catalog, "update") {
			return
		}
		if !lg.HasMember(memberID) {
			jsonErrorReport(w, r, "not a member of this layer group", http.StatusNotFound)
			return
		}
		lg.RemoveMember(memberID)
		if serr := lg.Save(); serr != nil {
			jsonErrorReport(w, r, serr.Error(), serr.Status())
			return
		}
		if idx := containment.GetIndex(); idx != nil {
			idx.EdgeRemoved(memberID, lg.ResourceID())
		}
		announceChange("catalog-change", map[string]string{"layergroup": lg.ResourceID(), "member": memberID, "action": "remove-member"})
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&lg); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}
