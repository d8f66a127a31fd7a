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
Package principal identifies who is asking for access. A principal is either
an authenticated user with some set of roles, or the anonymous principal when
the request carries no identity at all. Authentication itself happens upstream
of portiere; we trust the identity headers the front proxy sets.
*/
package principal

import (
	"net/http"
	"sort"
	"strings"

	"github.com/portiere/portiere/util"
)

// Request headers the front proxy sets for us.
const (
	UserHeader  = "X-Portiere-User"
	RolesHeader = "X-Portiere-Roles"
)

// AnonymousName is the name the anonymous principal carries around.
const AnonymousName = "anonymous"

// Principal is an identity attached to an incoming request.
type Principal struct {
	Name      string   `json:"name"`
	Roles     []string `json:"roles"`
	Anonymous bool     `json:"anonymous"`
}

// New creates a principal with the given name and roles. The roles are
// deduplicated and sorted so principals compare predictably.
func New(name string, roles []string) (*Principal, util.Gerror) {
	if !util.ValidateUserName(name) {
		return nil, util.Errorf("invalid user name '%s'", name)
	}
	cleaned := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !util.ValidateRoleName(r) {
			return nil, util.Errorf("invalid role name '%s' for user %s", r, name)
		}
		cleaned = append(cleaned, r)
	}
	sort.Strings(cleaned)
	cleaned = util.RemoveDupStrings(cleaned)
	p := &Principal{Name: name, Roles: cleaned, Anonymous: false}
	return p, nil
}

// Anonymous returns the anonymous principal. It has no roles.
func Anonymous() *Principal {
	return &Principal{Name: AnonymousName, Roles: []string{}, Anonymous: true}
}

// FromRequest builds a principal from the identity headers on an incoming
// request. A request with no user header is anonymous, never an error; a
// request with a malformed user or role name is an error, since a mangled
// identity must not quietly turn into the anonymous one.
func FromRequest(r *http.Request) (*Principal, util.Gerror) {
	name := strings.TrimSpace(r.Header.Get(UserHeader))
	if name == "" {
		return Anonymous(), nil
	}
	var roles []string
	if rh := r.Header.Get(RolesHeader); rh != "" {
		roles = strings.Split(rh, ",")
	}
	return New(name, roles)
}

// HasRole checks if the principal holds the given role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the principal holds at least one of the given roles.
// An empty requirement is satisfied by any principal.
func (p *Principal) HasAnyRole(roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// IsAuthenticated is true for any principal other than the anonymous one.
func (p *Principal) IsAuthenticated() bool {
	return !p.Anonymous
}

// GetName returns the principal's name.
func (p *Principal) GetName() string {
	return p.Name
}

// URLType returns the base element of a principal's URL.
func (p *Principal) URLType() string {
	return "principals"
}
