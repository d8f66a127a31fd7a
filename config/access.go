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

package config

import (
	"sync/atomic"
	"time"
)

// LocalServiceURL is the special service-url value selecting the in-process
// rule store instead of a remote authorization service.
const LocalServiceURL = "internal"

// Access holds the access policy options the decision engine consults on
// every call. It is immutable once published; the admin surface replaces the
// whole snapshot rather than mutating fields, so a reader always sees either
// the old config or the new one, never a mix.
type Access struct {
	ServiceURL                string        `json:"service_url"`
	GrantWriteToAuthenticated bool          `json:"grant_write_to_authenticated"`
	ServiceTimeout            time.Duration `json:"service_timeout"`
}

var accessVal atomic.Value

// CurrentAccess returns the current access policy snapshot. The returned
// value must not be modified.
func CurrentAccess() *Access {
	a, ok := accessVal.Load().(*Access)
	if !ok {
		// before ParseConfigOptions has run (i.e. in tests), fall back
		// to a fail-closed default.
		return &Access{ServiceURL: LocalServiceURL, ServiceTimeout: 2 * time.Second}
	}
	return a
}

// SwapAccess atomically replaces the access policy snapshot.
func SwapAccess(a *Access) {
	accessVal.Store(a)
}

// UsingLocalRules reports whether the current snapshot points at the
// in-process rule store.
func (a *Access) UsingLocalRules() bool {
	return a.ServiceURL == LocalServiceURL
}
