/* The interception point. Every inbound request passes through here exactly
 * once before reaching a handler. */

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
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/declog"
	"github.com/portiere/portiere/engine"
	"github.com/portiere/portiere/gerror"
	"github.com/portiere/portiere/principal"
	"github.com/portiere/portiere/reqctx"
	"github.com/raintank/met"
	"github.com/tideland/golib/logger"
)

type interceptHandler struct {
	router *mux.Router
}

type apiTimerInfo struct {
	elapsed time.Duration
	path    string
	method  string
}

type decisionCtxKey string

// decisionKey is the context key for the decision the intercept handler made
// for a gated request.
var decisionKey decisionCtxKey = "decision"

func (h *interceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// experimental - track time of api requests
	defer trackAPITiming(time.Now(), r)

	logger.Debugf("Serving %s -- %s", r.URL.Path, r.Method)

	// block /debug/pprof if not localhost
	if strings.HasPrefix(r.URL.Path, "/debug") {
		remoteIP, _, rerr := net.SplitHostPort(r.RemoteAddr)
		if rerr != nil || !net.ParseIP(remoteIP).IsLoopback() {
			http.Error(w, "Forbidden!", http.StatusForbidden)
			return
		}
	}

	if r.Method != "CONNECT" {
		if p := cleanPath(r.URL.Path); p != r.URL.Path {
			r.URL.Path = p
		}
	}

	if r.ContentLength > config.Config.JSONReqMaxSize {
		logger.Debugf("Content length was too long for %s", r.URL.Path)
		http.Error(w, "Content-length too long!", http.StatusRequestEntityTooLarge)
		io.Copy(ioutil.Discard, r.Body)
		r.Body.Close()
		return
	}

	w.Header().Set("X-Portiere", "yes")
	w.Header().Set("X-Portiere-Version", config.Version)

	// The upstream auth layer hands us the caller's identity in headers;
	// no user header at all means anonymous, which is never an error.
	p, perr := principal.FromRequest(r)
	if perr != nil {
		w.Header().Set("Content-Type", "application/json")
		jsonErrorReport(w, r, perr.Error(), http.StatusBadRequest)
		return
	}
	ctx := context.WithValue(r.Context(), reqctx.PrincipalKey, p)

	// The gated surface gets its decision here, once, so a handler can
	// never be reached without one having been made.
	if strings.HasPrefix(r.URL.Path, "/ogc/") {
		key, kerr := reqctx.Build(p, rawOpFromRequest(r))
		if kerr != nil {
			w.Header().Set("Content-Type", "application/json")
			jsonErrorReport(w, r, kerr.Error(), kerr.Status())
			return
		}
		d := engine.Decide(ctx, key)
		if lerr := declog.LogDecision(key, d, config.CurrentAccess().ServiceURL); lerr != nil {
			logger.Errorf("could not log decision: %s", lerr.Error())
		}
		if !d.Permitted() {
			w.Header().Set("Content-Type", "application/json")
			status := http.StatusForbidden
			if d.Kind == gerror.KindServiceUnavailable || d.Kind == gerror.KindIndexUnavailable {
				status = http.StatusServiceUnavailable
			}
			jsonErrorReport(w, r, d.Reason, status)
			return
		}
		ctx = context.WithValue(ctx, reqctx.AccessRequestKey, key)
		ctx = context.WithValue(ctx, decisionKey, d)
	}

	h.router.ServeHTTP(w, r.WithContext(ctx))
}

// rawOpFromRequest maps an OGC-ish request onto the raw operation the
// context builder normalizes. The service comes from the path, the operation
// and target from the query string.
func rawOpFromRequest(r *http.Request) *reqctx.RawOperation {
	pathArray := splitPath(r.URL.Path)
	var service string
	if len(pathArray) > 1 {
		service = strings.ToUpper(pathArray[1])
	}
	q := r.URL.Query()
	raw := &reqctx.RawOperation{
		Service:   service,
		Operation: firstQueryParam(q, "request", "REQUEST"),
	}

	target := firstQueryParam(q, "layers", "LAYERS", "layer", "LAYER", "typenames", "TYPENAMES", "typename", "TYPENAME")
	if target != "" {
		if i := strings.Index(target, ":"); i != -1 {
			ws := target[:i]
			name := target[i+1:]
			raw.Workspace = &ws
			raw.Layer = &name
		} else {
			raw.Layer = &target
		}
	}
	if ws := firstQueryParam(q, "workspace", "WORKSPACE"); ws != "" && raw.Workspace == nil {
		raw.Workspace = &ws
	}
	if sub := firstQueryParam(q, "propertyname", "PROPERTYNAME"); sub != "" {
		raw.Subfield = &sub
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		raw.SourceAddress = &host
	}
	return raw
}

func firstQueryParam(q map[string][]string, names ...string) string {
	for _, n := range names {
		if vals, ok := q[n]; ok && len(vals) != 0 {
			return vals[0]
		}
	}
	return ""
}

func cleanPath(p string) string {
	/* Borrowing cleanPath from net/http */
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	// path.Clean removes trailing slash except for root;
	// put the trailing slash back if necessary.
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

func trackAPITiming(start time.Time, r *http.Request) {
	if !config.Config.UseStatsd {
		return
	}
	elapsed := time.Since(start)
	apiChan <- &apiTimerInfo{elapsed: elapsed, path: r.URL.Path, method: r.Method}
}

func apiTimerMaster(apiChan chan *apiTimerInfo, metricsBackend met.Backend) {
	if !config.Config.UseStatsd {
		return
	}
	metrics := make(map[string]met.Timer)
	for timeInfo := range apiChan {
		p := path.Clean(timeInfo.path)
		pathTmp := strings.Split(p, "/")
		if len(pathTmp) > 1 {
			p = pathTmp[1]
		} else {
			p = "root"
		}
		metricStr := fmt.Sprintf("api.timing.%s.%s", p, strings.ToLower(timeInfo.method))
		if _, ok := metrics[metricStr]; !ok {
			metrics[metricStr] = metricsBackend.NewTimer(metricStr, 0)
		}
		metrics[metricStr].Value(timeInfo.elapsed)

		logger.Debugf("in apiChan %s: %d microseconds %s %s", metricStr, timeInfo.elapsed/time.Microsecond, timeInfo.path, timeInfo.method)
	}
}
