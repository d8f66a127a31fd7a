/* Decision log endpoints */

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
	"strconv"

	"github.com/gorilla/mux"
	"github.com/portiere/portiere/adminacl"
	"github.com/portiere/portiere/declog"
)

func decLogListHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case "GET", "HEAD":
		if !checkAdminPerm(w, r, adminacl.DecisionLog, "read") {
			return
		}
		if r.Method == "HEAD" {
			headResponse(w, r, http.StatusOK)
			return
		}
		searchParams := make(map[string]string)
		for _, k := range []string{"from", "until", "user", "target", "outcome"} {
			if v := r.FormValue(k); v != "" {
				searchParams[k] = v
			}
		}
		var limits []int
		if o := r.FormValue("offset"); o != "" {
			offset, err := strconv.Atoi(o)
			if err != nil {
				jsonErrorReport(w, r, err.Error(), http.StatusBadRequest)
				return
			}
			limits = append(limits, offset)
			if l := r.FormValue("limit"); l != "" {
				limit, lerr := strconv.Atoi(l)
				if lerr != nil {
					jsonErrorReport(w, r, lerr.Error(), http.StatusBadRequest)
					return
				}
				limits = append(limits, limit)
			}
		}
		drs, err := declog.GetDecisionRecords(searchParams, limits...)
		if err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&drs); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}

func decLogHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	vars := mux.Vars(r)
	recordID := vars["id"]

	switch r.Method {
	case "HEAD":
		if !checkAdminPerm(w, r, adminacl.DecisionLog, "read") {
			return
		}
		found, gerr := declog.DoesExist(recordID)
		if gerr != nil {
			headResponse(w, r, gerr.Status())
			return
		}
		if !found {
			headResponse(w, r, http.StatusNotFound)
			return
		}
		headResponse(w, r, http.StatusOK)
	case "GET":
		if !checkAdminPerm(w, r, adminacl.DecisionLog, "read") {
			return
		}
		id, cerr := strconv.Atoi(recordID)
		if cerr != nil {
			jsonErrorReport(w, r, cerr.Error(), http.StatusBadRequest)
			return
		}
		dr, err := declog.Get(id)
		if err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusNotFound)
			return
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&dr); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	case "DELETE":
		if !checkAdminPerm(w, r, adminacl.DecisionLog, "delete") {
			return
		}
		id, cerr := strconv.Atoi(recordID)
		if cerr != nil {
			jsonErrorReport(w, r, cerr.Error(), http.StatusBadRequest)
			return
		}
		dr, err := declog.Get(id)
		if err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusNotFound)
			return
		}
		if derr := dr.Delete(); derr != nil {
			jsonErrorReport(w, r, derr.Error(), http.StatusInternalServerError)
			return
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&dr); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}
