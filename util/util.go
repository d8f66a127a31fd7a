/* Utility functions and methods used across portiere. */

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

/*
Package util contains various utility functions that are useful across all of
portiere, along with convenience wrappers for the gerror Error type.
*/
package util

import (
	"encoding/json"
	"net/http"

	"github.com/portiere/portiere/gerror"
	"github.com/tideland/golib/logger"
)

// Gerror is a convenience alias for the gerror Error interface, so callers
// don't need to import both packages.
type Gerror gerror.Error

// Anything that implements these functions is a portiere object, like a
// workspace, layer, or rule, and can use the common URL helpers.
type Obj interface {
	GetName() string
	URLType() string
}

// Errorf creates a new Gerror with a formatted error string.
func Errorf(format string, a ...interface{}) Gerror {
	return gerror.Errorf(format, a...)
}

// CastErr casts a different kind of error to a Gerror.
func CastErr(err error) Gerror {
	return gerror.CastErr(err)
}

// KindErrorf creates a Gerror carrying a specific kind and status.
func KindErrorf(kind gerror.Kind, status int, format string, a ...interface{}) Gerror {
	e := gerror.Errorf(format, a...)
	e.SetStatus(status)
	e.SetKind(kind)
	return e
}

// JSONErrorReport sends a JSON error report to the client, following the
// { "error": [ msgs ] } form the catalog clients expect.
func JSONErrorReport(w http.ResponseWriter, r *http.Request, errorStr string, status int) {
	logger.Infof(errorStr)
	jsonError := map[string][]string{"error": {errorStr}}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if err := enc.Encode(&jsonError); err != nil {
		logger.Errorf(err.Error())
	}
}

// JSONErrorNonArrayReport sends a JSON error report where the error field is a
// plain string rather than an array of them.
func JSONErrorNonArrayReport(w http.ResponseWriter, r *http.Request, errorStr string, status int) {
	logger.Infof(errorStr)
	jsonError := map[string]string{"error": errorStr}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if err := enc.Encode(&jsonError); err != nil {
		logger.Errorf(err.Error())
	}
}
