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

package principal

import (
	"net/http"
	"testing"
)

func TestNewPrincipal(t *testing.T) {
	p, err := New("pivotal", []string{"editor", "viewer", "editor"})
	if err != nil {
		t.Fatalf("creating a valid principal gave an error: %s", err.Error())
	}
	if len(p.Roles) != 2 {
		t.Errorf("duplicate roles should have been dropped, got %v", p.Roles)
	}
	if p.Roles[0] != "editor" || p.Roles[1] != "viewer" {
		t.Errorf("roles should come back sorted, got %v", p.Roles)
	}
	if p.Anonymous {
		t.Errorf("a named principal should not be anonymous")
	}
}

func TestNewPrincipalBadNames(t *testing.T) {
	if _, err := New("bad name", nil); err == nil {
		t.Errorf("a user name with a space should not validate")
	}
	if _, err := New("fine", []string{"bad role"}); err == nil {
		t.Errorf("a role name with a space should not validate")
	}
}

func TestAnonymous(t *testing.T) {
	p := Anonymous()
	if !p.Anonymous {
		t.Errorf("the anonymous principal should say so")
	}
	if p.IsAuthenticated() {
		t.Errorf("the anonymous principal must not count as authenticated")
	}
	if p.Roles == nil || len(p.Roles) != 0 {
		t.Errorf("the anonymous principal should have an empty role list, got %v", p.Roles)
	}
}

func TestFromRequest(t *testing.T) {
	req, _ := http.NewRequest("GET", "/workspaces/topp/layers/states", nil)
	p, err := FromRequest(req)
	if err != nil {
		t.Fatalf("a request with no identity headers gave an error: %s", err.Error())
	}
	if !p.Anonymous {
		t.Errorf("a request with no identity headers should be anonymous")
	}

	req.Header.Set(UserHeader, "jdoe")
	req.Header.Set(RolesHeader, "viewer, editor")
	p, err = FromRequest(req)
	if err != nil {
		t.Fatalf("a request with identity headers gave an error: %s", err.Error())
	}
	if p.Name != "jdoe" {
		t.Errorf("wrong principal name %s", p.Name)
	}
	if !p.HasRole("editor") || !p.HasRole("viewer") {
		t.Errorf("principal is missing roles from the header, got %v", p.Roles)
	}

	req.Header.Set(UserHeader, "not a name")
	if _, err = FromRequest(req); err == nil {
		t.Errorf("a mangled user header should be an error, not anonymous")
	}
}

func TestHasAnyRole(t *testing.T) {
	p, _ := New("jdoe", []string{"viewer"})
	if !p.HasAnyRole(nil) {
		t.Errorf("an empty role requirement should pass for anyone")
	}
	if !p.HasAnyRole([]string{"editor", "viewer"}) {
		t.Errorf("principal holds viewer, requirement should pass")
	}
	if p.HasAnyRole([]string{"admin"}) {
		t.Errorf("principal does not hold admin, requirement should fail")
	}
}
