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

package rule

import (
	"encoding/gob"
	"testing"

	"github.com/portiere/portiere/principal"
	"github.com/portiere/portiere/reqctx"
)

func init() {
	gob.Register(new(Rule))
}

func strPtr(s string) *string {
	return &s
}

func buildKey(user string, roles []string, service string, operation string, workspace string, layer string) *reqctx.AccessRequest {
	var p *principal.Principal
	if user != "" {
		p, _ = principal.New(user, roles)
	}
	raw := &reqctx.RawOperation{Service: service, Operation: operation}
	if workspace != "" {
		raw.Workspace = strPtr(workspace)
	}
	if layer != "" {
		raw.Layer = strPtr(layer)
	}
	ar, _ := reqctx.Build(p, raw)
	return ar
}

func TestRuleLifecycle(t *testing.T) {
	r, err := New("lifecycle-rule")
	if err != nil {
		t.Fatalf("creating a rule gave an error: %s", err.Error())
	}
	r.Workspace = "topp"
	r.Layer = "states"
	if gerr := r.Save(); gerr != nil {
		t.Fatalf("saving a rule gave an error: %s", gerr.Error())
	}
	if _, err = New("lifecycle-rule"); err == nil {
		t.Errorf("creating a duplicate rule should fail")
	}
	r2, err := Get("lifecycle-rule")
	if err != nil {
		t.Fatalf("getting a rule gave an error: %s", err.Error())
	}
	if r2.Workspace != "topp" || r2.Layer != "states" {
		t.Errorf("got the wrong rule back: %+v", r2)
	}
	if gerr := r2.Delete(); gerr != nil {
		t.Errorf("deleting a rule gave an error: %s", gerr.Error())
	}
	if _, err = Get("lifecycle-rule"); err == nil {
		t.Errorf("a deleted rule should not come back")
	}
}

func TestRuleValidation(t *testing.T) {
	r, _ := New("validation-rule")
	r.Mode = "SCRIBBLE"
	if gerr := r.Save(); gerr == nil {
		t.Errorf("an invalid access mode should not validate")
	}
	r.Mode = string(ModeWrite)
	r.Policy = "maybe"
	if gerr := r.Save(); gerr == nil {
		t.Errorf("an invalid policy should not validate")
	}
	r.Policy = string(PolicyDeny)
	r.Priority = -1
	if gerr := r.Save(); gerr == nil {
		t.Errorf("a negative priority should not validate")
	}
	r.Priority = 0
	r.Workspace = "bad pattern"
	if gerr := r.Save(); gerr == nil {
		t.Errorf("a workspace pattern with a space should not validate")
	}
}

func TestRuleMatching(t *testing.T) {
	r, _ := New("match-rule")
	r.Service = "WMS"
	r.Workspace = "topp"
	r.Layer = Wildcard

	key := buildKey("jdoe", []string{"viewer"}, "WMS", "GETMAP", "topp", "states")
	if !r.Matches(key) {
		t.Errorf("rule should match a key inside its patterns")
	}
	other := buildKey("jdoe", []string{"viewer"}, "WFS", "GETFEATURE", "topp", "states")
	if r.Matches(other) {
		t.Errorf("rule should not match a different service")
	}
	noWs := buildKey("jdoe", []string{"viewer"}, "WMS", "GETMAP", "", "")
	if r.Matches(noWs) {
		t.Errorf("an exact workspace pattern should not match an unset workspace")
	}
	r.Workspace = Wildcard
	if !r.Matches(noWs) {
		t.Errorf("a wildcard workspace pattern should match an unset workspace")
	}
}

func TestRuleAppliesTo(t *testing.T) {
	r, _ := New("roles-rule")
	r.Roles = []string{"ROLE_ONE"}
	with := buildKey("jdoe", []string{"ROLE_ONE", "ROLE_TWO"}, "WMS", "GETMAP", "topp", "states")
	without := buildKey("jdoe", []string{"ROLE_TWO"}, "WMS", "GETMAP", "topp", "states")
	anon := buildKey("", nil, "WMS", "GETMAP", "topp", "states")
	if !r.AppliesTo(with) {
		t.Errorf("a caller holding a required role should match")
	}
	if r.AppliesTo(without) {
		t.Errorf("a caller lacking the required role should not match")
	}
	if r.AppliesTo(anon) {
		t.Errorf("an anonymous caller should not match a role-restricted rule")
	}
	r.Roles = []string{}
	if !r.AppliesTo(anon) {
		t.Errorf("a rule with no role requirement should apply to anyone")
	}
}

func TestSortRules(t *testing.T) {
	exact := &Rule{ID: "zz-exact", Service: "WMS", Workspace: "topp", Layer: "states", Priority: 0}
	loose := &Rule{ID: "aa-loose", Service: Wildcard, Workspace: Wildcard, Layer: Wildcard, Priority: 99}
	mid1 := &Rule{ID: "bb-mid", Service: Wildcard, Workspace: "topp", Layer: Wildcard, Priority: 5}
	mid2 := &Rule{ID: "aa-mid", Service: Wildcard, Workspace: "topp", Layer: Wildcard, Priority: 5}
	rules := []*Rule{loose, mid1, exact, mid2}
	SortRules(rules)
	if rules[0] != exact {
		t.Errorf("the most specific rule should sort first, got %s", rules[0].ID)
	}
	if rules[3] != loose {
		t.Errorf("the all-wildcard rule should sort last, got %s", rules[3].ID)
	}
	if rules[1] != mid2 || rules[2] != mid1 {
		t.Errorf("equal specificity and priority should tie-break on ascending id, got %s then %s", rules[1].ID, rules[2].ID)
	}
}

func TestMatchingRules(t *testing.T) {
	ra, _ := New("store-a")
	ra.Workspace = "matchws"
	ra.Save()
	rb, _ := New("store-b")
	rb.Workspace = "matchws"
	rb.Layer = "roads"
	rb.Save()
	rc, _ := New("store-c")
	rc.Workspace = "elsewhere"
	rc.Save()

	key := buildKey("jdoe", nil, "WMS", "GETMAP", "matchws", "roads")
	matched, err := MatchingRules(key)
	if err != nil {
		t.Fatalf("MatchingRules gave an error: %s", err.Error())
	}
	if len(matched) != 2 {
		t.Fatalf("expected 2 matching rules, got %d", len(matched))
	}
	if matched[0].ID != "store-b" {
		t.Errorf("the more specific rule should come first, got %s", matched[0].ID)
	}
	// same key, same store, same order
	again, _ := MatchingRules(key)
	for i := range matched {
		if matched[i].ID != again[i].ID {
			t.Errorf("matching order was not stable: %s vs %s at %d", matched[i].ID, again[i].ID, i)
		}
	}
}

func TestLoadRules(t *testing.T) {
	tomlIn := []byte(`
[[rule]]
id = "file-one"
workspace = "topp"
layer = "states"
mode = "READ"
roles = ["ROLE_ONE"]
priority = 1

[[rule]]
id = "file-two"
policy = "deny"
mode = "WRITE"
`)
	if err := loadRules(tomlIn, "test.toml"); err != nil {
		t.Fatalf("loading rules gave an error: %s", err.Error())
	}
	one, err := Get("file-one")
	if err != nil {
		t.Fatalf("rule file-one did not load: %s", err.Error())
	}
	if one.Workspace != "topp" || len(one.Roles) != 1 {
		t.Errorf("rule file-one loaded wrong: %+v", one)
	}
	two, err := Get("file-two")
	if err != nil {
		t.Fatalf("rule file-two did not load: %s", err.Error())
	}
	if two.Workspace != Wildcard || !two.DenyPolicy() {
		t.Errorf("rule file-two should have defaulted to wildcards and kept its deny policy: %+v", two)
	}

	dupIn := []byte("[[rule]]\nid = \"dup\"\n\n[[rule]]\nid = \"dup\"\n")
	if err := loadRules(dupIn, "dup.toml"); err == nil {
		t.Errorf("a rule file with duplicate ids should not load")
	}
	if err := loadRules([]byte("[[rule]]\nworkspace = \"topp\"\n"), "noid.toml"); err == nil {
		t.Errorf("a rule with no id should not load")
	}
}

func TestModeForOperation(t *testing.T) {
	checks := map[string]AccessMode{
		"GETMAP":       ModeRead,
		"getmap":       ModeRead,
		"GETFEATURE":   ModeRead,
		"TRANSACTION":  ModeWrite,
		"Transaction":  ModeWrite,
		"CONFIGURE":    ModeAdmin,
		"SOMETHINGNEW": ModeRead,
	}
	for op, expected := range checks {
		if m := ModeForOperation(op); m != expected {
			t.Errorf("operation %s should need %s, got %s", op, expected, m)
		}
	}
}
