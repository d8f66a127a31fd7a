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

package util

import (
	"testing"
)

func TestValidateName(t *testing.T) {
	goodNames := []string{"topp", "sf_roads", "tiger-ny", "states.v2"}
	badNames := []string{"", "to pp", "top:p", "näme"}
	for _, n := range goodNames {
		if !ValidateName(n) {
			t.Errorf("name %s should have validated", n)
		}
	}
	for _, n := range badNames {
		if ValidateName(n) {
			t.Errorf("name %q should not have validated", n)
		}
	}
}

func TestValidateRulePattern(t *testing.T) {
	if !ValidateRulePattern("*") {
		t.Errorf("the wildcard pattern should validate")
	}
	if !ValidateRulePattern("topp") {
		t.Errorf("a plain name pattern should validate")
	}
	if ValidateRulePattern("to*pp") {
		t.Errorf("an embedded wildcard should not validate")
	}
}

func TestValidateRoleName(t *testing.T) {
	if !ValidateRoleName("ROLE_ONE") {
		t.Errorf("ROLE_ONE should have validated")
	}
	if ValidateRoleName("") {
		t.Errorf("an empty role name should not validate")
	}
	if ValidateRoleName("ROLE ONE") {
		t.Errorf("a role name with a space should not validate")
	}
}
