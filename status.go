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

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/containment"
	"github.com/portiere/portiere/rule"
)

// statusHandler reports process health: the rule source in use, the size of
// the local rule store, and whether the containment index is serving stale
// data. It is deliberately unauthenticated so load balancers can poll it.
func statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case "HEAD":
		headResponse(w, r, http.StatusOK)
		return
	case "GET":
		acc := config.CurrentAccess()
		status := make(map[string]interface{}, 6)
		status["version"] = config.Version
		status["rule_source"] = acc.ServiceURL
		status["rule_count"] = len(rule.GetList())
		status["using_db"] = config.UsingDB()
		if idx := containment.GetIndex(); idx != nil {
			status["containment_degraded"] = idx.Degraded()
		} else {
			status["containment_degraded"] = true
		}
		enc := json.NewEncoder(w)
		if err := enc.Encode(&status); err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
		}
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}
