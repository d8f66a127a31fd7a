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

package adminacl

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/principal"
)

func policyDir(t *testing.T) func() {
	dir, err := ioutil.TempDir("", "adminacl-test")
	if err != nil {
		t.Fatalf("making a temp policy dir gave an error: %s", err.Error())
	}
	config.Config.PolicyRoot = dir
	return func() { os.RemoveAll(dir) }
}

func TestAdminPerms(t *testing.T) {
	defer policyDir(t)()
	adm, err := principal.New("admin", nil)
	if err != nil {
		t.Fatalf("building the admin principal gave an error: %s", err.Error())
	}
	for _, item := range []ACLItem{Rules, Catalog, AccessConfig, DecisionLog} {
		chk, gerr := CheckPerm(adm, item, "read")
		if gerr != nil {
			t.Fatalf("checking a perm gave an error: %s", gerr.Error())
		}
		if !chk {
			t.Errorf("admin should be able to read %s", aclLookup[item])
		}
	}
	if chk, _ := CheckPerm(adm, Rules, "delete"); !chk {
		t.Errorf("admin should be able to delete rules")
	}
}

func TestRoleBasedPerm(t *testing.T) {
	defer policyDir(t)()
	p, err := principal.New("jdoe", []string{"ROLE_ADMINISTRATOR"})
	if err != nil {
		t.Fatalf("building the test principal gave an error: %s", err.Error())
	}
	if chk, gerr := CheckPerm(p, Rules, "update"); gerr != nil || !chk {
		t.Errorf("a caller holding ROLE_ADMINISTRATOR should be able to update rules")
	}
}

func TestUnprivileged(t *testing.T) {
	defer policyDir(t)()
	p, err := principal.New("rando", []string{"viewer"})
	if err != nil {
		t.Fatalf("building the test principal gave an error: %s", err.Error())
	}
	if chk, _ := CheckPerm(p, Rules, "update"); chk {
		t.Errorf("an unprivileged caller must not be able to update rules")
	}
	if chk, _ := CheckPerm(p, DecisionLog, "read"); chk {
		t.Errorf("an unprivileged caller must not be able to read the decision log")
	}
}

func TestAnonymousCheck(t *testing.T) {
	defer policyDir(t)()
	if chk, gerr := CheckPerm(principal.Anonymous(), Rules, "read"); chk || gerr == nil {
		t.Errorf("an anonymous caller must never pass an admin perm check")
	}
}

func TestPolicyFileCreated(t *testing.T) {
	cleanup := policyDir(t)
	defer cleanup()
	adm, _ := principal.New("admin", nil)
	if _, gerr := CheckPerm(adm, Rules, "read"); gerr != nil {
		t.Fatalf("checking a perm gave an error: %s", gerr.Error())
	}
	if !adminPolicyExists() {
		t.Errorf("the first perm check should write the default policy file")
	}
}
