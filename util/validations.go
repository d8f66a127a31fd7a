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
	"regexp"
)

/* Validations for different types and input. */

// ValidateName checks a catalog resource name (workspace, layer, or layer
// group). Same character set catalog clients use for qualified layer names,
// minus the colon separator.
func ValidateName(name string) bool {
	if name == "" {
		return false
	}
	m, _ := regexp.MatchString("[^A-Za-z0-9_.-]", name)
	return !m
}

// ValidateUserName checks a principal name coming in from upstream auth.
func ValidateUserName(name string) bool {
	m, _ := regexp.MatchString("[^a-z0-9_.-]", name)
	return !m
}

// ValidateRoleName checks a role name from a rule or a principal's role set.
func ValidateRoleName(name string) bool {
	if name == "" {
		return false
	}
	m, _ := regexp.MatchString("[^A-Za-z0-9_-]", name)
	return !m
}

// ValidateRulePattern checks a workspace or layer pattern in a rule; either
// the wildcard "*" or a plain resource name.
func ValidateRulePattern(pat string) bool {
	if pat == "*" {
		return true
	}
	return ValidateName(pat)
}

// ValidateAsString validates that a JSON field value really is a string.
func ValidateAsString(str interface{}) (string, Gerror) {
	switch str := str.(type) {
	case string:
		return str, nil
	case nil:
		err := Errorf("Field 'name' missing")
		return "", err
	default:
		err := Errorf("Field 'name' invalid")
		return "", err
	}
}

// ValidateAsBool validates that a JSON field value is a bool.
func ValidateAsBool(b interface{}) (bool, Gerror) {
	switch b := b.(type) {
	case bool:
		return b, nil
	default:
		err := Errorf("Invalid bool")
		return false, err
	}
}

// ValidateAsInt validates that a JSON field value is an integer-ish number.
func ValidateAsInt(n interface{}) (int, Gerror) {
	switch n := n.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		err := Errorf("Invalid number")
		return 0, err
	}
}
