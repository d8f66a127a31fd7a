/* Access snapshot administration */

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
	"strings"
	"time"

	"github.com/portiere/portiere/adminacl"
	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/util"
)

// accessConfigHandler reads and swaps the access snapshot. A swap replaces
// the whole snapshot at once; requests already in flight finish under the
// old one.
func accessConfigHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case "GET", "HEAD":
		if !checkAdminPerm(w, r, adminacl.AccessConfig, "read") {
			return
		}
		if r.Method == "HEAD" {
			headResponse(w, r, http.StatusOK)
			return
		}
		acc := config.CurrentAccess()
		enc := json.NewEncoder(w)
		if err := enc.Encode(&acc); err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
		}
	case "PUT":
		if !checkAdminPerm(w, r, adminacl.AccessConfig, "update") {
			return
		}
		accData, jerr := parseObjJSON(r.Body)
		if jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusBadRequest)
			return
		}
		cur := config.CurrentAccess()
		next := &config.Access{
			ServiceURL:                cur.ServiceURL,
			GrantWriteToAuthenticated: cur.GrantWriteToAuthenticated,
			ServiceTimeout:            cur.ServiceTimeout,
		}
		if v, ok := accData["service_url"]; ok {
			u, sterr := util.ValidateAsString(v)
			if sterr != nil {
				jsonErrorReport(w, r, sterr.Error(), sterr.Status())
				return
			}
			if strings.TrimSpace(u) == "" {
				jsonErrorReport(w, r, "service_url must not be empty", http.StatusBadRequest)
				return
			}
			next.ServiceURL = u
		}
		if v, ok := accData["grant_write_to_authenticated"]; ok {
			g, berr := util.ValidateAsBool(v)
			if berr != nil {
				jsonErrorReport(w, r, berr.Error(), berr.Status())
				return
			}
			next.GrantWriteToAuthenticated = g
		}
		if v, ok := accData["service_timeout"]; ok {
			ts, sterr := util.ValidateAsString(v)
			if sterr != nil {
				jsonErrorReport(w, r, sterr.Error(), sterr.Status())
				return
			}
			d, derr := time.ParseDuration(ts)
			if derr != nil {
				jsonErrorReport(w, r, derr.Error(), http.StatusBadRequest)
				return
			}
			// zero would mean no timeout at all on the remote oracle
			if d <= 0 {
				jsonErrorReport(w, r, "service_timeout must be a positive duration", http.StatusBadRequest)
				return
			}
			next.ServiceTimeout = d
		}
		config.SwapAccess(next)
		announceChange("access-change", map[string]string{"service_url": next.ServiceURL})
		enc := json.NewEncoder(w)
		if err := enc.Encode(&next); err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
		}
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}
