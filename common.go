/* Some common definitions and helpers for the handlers. */

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
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/portiere/portiere/adminacl"
	"github.com/portiere/portiere/principal"
	"github.com/portiere/portiere/reqctx"
	"github.com/portiere/portiere/util"
)

func parseObjJSON(data io.ReadCloser) (map[string]interface{}, error) {
	objData := make(map[string]interface{})
	dec := json.NewDecoder(data)
	dec.UseNumber()

	if err := dec.Decode(&objData); err != nil {
		return nil, err
	}
	return objData, nil
}

func splitPath(path string) []string {
	sp := strings.Split(path[1:], "/")
	return sp
}

func jsonErrorReport(w http.ResponseWriter, r *http.Request, errorStr string, status int) {
	util.JSONErrorReport(w, r, errorStr, status)
	return
}

func jsonErrorNonArrayReport(w http.ResponseWriter, r *http.Request, errorStr string, status int) {
	util.JSONErrorNonArrayReport(w, r, errorStr, status)
	return
}

func checkAccept(w http.ResponseWriter, r *http.Request, acceptType string) error {
	for _, at := range r.Header["Accept"] {
		if at == "*/*" {
			return nil // we accept all types in this case
		} else if at == acceptType {
			return nil
		}
	}
	err := fmt.Errorf("Client cannot accept content type %s", acceptType)
	return err
}

// reqPrincipal pulls the principal the intercept handler stashed in the
// request context back out, reporting an error to the client itself if that
// somehow fails.
func reqPrincipal(w http.ResponseWriter, r *http.Request) (*principal.Principal, bool) {
	p, err := reqctx.CtxPrincipal(r.Context())
	if err != nil {
		jsonErrorReport(w, r, err.Error(), err.Status())
		return nil, false
	}
	return p, true
}

// checkAdminPerm runs an admin surface perm check and writes the error
// response itself when the caller doesn't pass.
func checkAdminPerm(w http.ResponseWriter, r *http.Request, item adminacl.ACLItem, perm string) bool {
	p, ok := reqPrincipal(w, r)
	if !ok {
		return false
	}
	chk, gerr := adminacl.CheckPerm(p, item, perm)
	if gerr != nil {
		jsonErrorReport(w, r, gerr.Error(), gerr.Status())
		return false
	}
	if !chk {
		jsonErrorReport(w, r, "You are not allowed to perform this action", http.StatusForbidden)
		return false
	}
	return true
}
