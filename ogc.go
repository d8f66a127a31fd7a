/* The gated service surface. */

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

	"github.com/portiere/portiere/engine"
)

// ogcHandler renders the decision the intercept handler already made. A
// request only reaches this point when it was permitted; denials were
// answered at the interception point. For filtered group listings the
// response carries the member list the caller may actually see.
func ogcHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	d, ok := r.Context().Value(decisionKey).(*engine.Decision)
	if !ok {
		jsonErrorReport(w, r, "no decision was made for this request", http.StatusInternalServerError)
		return
	}

	resp := make(map[string]interface{}, 2)
	resp["decision"] = d.Outcome.String()
	if d.Outcome == engine.OutcomeAllowFiltered {
		resp["members"] = d.Members
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(resp); err != nil {
		jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
	}
}
