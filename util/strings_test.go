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
	"sort"
	"testing"
)

func TestJoinStr(t *testing.T) {
	j := JoinStr("topp", ":", "states")
	if j != "topp:states" {
		t.Errorf("JoinStr came out wrong: %s", j)
	}
}

func TestRemoveDupStrings(t *testing.T) {
	strs := []string{"topp", "sf", "topp", "nurc", "sf", "sf"}
	sort.Strings(strs)
	strs = RemoveDupStrings(strs)
	if len(strs) != 3 {
		t.Errorf("expected 3 strings after removing dupes, got %d: %v", len(strs), strs)
	}
	for i, v := range strs {
		for q, u := range strs {
			if i != q && v == u {
				t.Errorf("string %s is still duplicated", v)
			}
		}
	}
}

func TestStringPresentInSlice(t *testing.T) {
	chk := []string{"ROLE_ONE", "ROLE_TWO"}
	if !StringPresentInSlice("ROLE_ONE", chk) {
		t.Errorf("ROLE_ONE should have been in the slice")
	}
	if StringPresentInSlice("ROLE_ADMIN", chk) {
		t.Errorf("ROLE_ADMIN should not have been in the slice")
	}
}

func TestTrimStringMax(t *testing.T) {
	s := "averyveryverylongstring"
	if ts := TrimStringMax(s, 5); ts != "avery" {
		t.Errorf("trimmed string came out as %s", ts)
	}
	if ts := TrimStringMax(s, 0); ts != s {
		t.Errorf("a max length of 0 should leave the string alone, got %s", ts)
	}
}
