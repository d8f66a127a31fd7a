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
	"net/http"

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/serfin"
	"github.com/tideland/golib/logger"
)

// Functions for HEAD responses for the various endpoints. HEAD should be
// present everywhere GET is, even if the HEAD request isn't particularly
// meaningful.

func headResponse(w http.ResponseWriter, r *http.Request, status int) {
	logger.Debugf("HEAD response status %d for %s", status, r.URL.Path)
	w.WriteHeader(status)
	return
}

// headOrErrReport answers a miss: a bare status for HEAD requests, the usual
// JSON error body for everything else.
func headOrErrReport(w http.ResponseWriter, r *http.Request, errorStr string, status int) {
	if r.Method == "HEAD" {
		headResponse(w, r, status)
		return
	}
	jsonErrorReport(w, r, errorStr, status)
}

// announceChange broadcasts an administrative change over serf, when both
// serf and event announcements are configured.
func announceChange(eventName string, payload interface{}) {
	if !config.Config.UseSerf || !config.Config.SerfEventAnnounce {
		return
	}
	go serfin.SendEvent(eventName, payload)
}
