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

package reqctx

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/portiere/portiere/principal"
)

func strPtr(s string) *string {
	return &s
}

func TestBuildAnonymous(t *testing.T) {
	raw := &RawOperation{Service: "WMS", Operation: "GETMAP", Workspace: strPtr("topp"), Layer: strPtr("states")}
	ar, err := Build(nil, raw)
	if err != nil {
		t.Fatalf("building an anonymous request gave an error: %s", err.Error())
	}
	if ar.User.IsSet() {
		t.Errorf("an anonymous request should have no user, got %s", ar.User.Value())
	}
	if ar.Roles == nil || len(ar.Roles) != 0 {
		t.Errorf("an anonymous request should have an empty role set, got %v", ar.Roles)
	}
	if !ar.Anonymous() {
		t.Errorf("Anonymous() should be true for a request with no user")
	}
	ar2, _ := Build(principal.Anonymous(), raw)
	if !ar.Equal(ar2) {
		t.Errorf("a nil principal and the anonymous principal should build equal requests")
	}
}

func TestBuildWithPrincipal(t *testing.T) {
	p, _ := principal.New("jdoe", []string{"viewer", "editor"})
	raw := &RawOperation{Service: "WMS", Operation: "GETMAP", Workspace: strPtr("topp"), Layer: strPtr("states")}
	ar, err := Build(p, raw)
	if err != nil {
		t.Fatalf("building a request gave an error: %s", err.Error())
	}
	if !ar.User.IsSet() || ar.User.Value() != "jdoe" {
		t.Errorf("wrong user on built request: %s", ar.User.String())
	}
	if len(ar.Roles) != 2 || ar.Roles[0] != "editor" {
		t.Errorf("roles should come back sorted, got %v", ar.Roles)
	}
	if !ar.HasRole("viewer") || ar.HasRole("admin") {
		t.Errorf("HasRole misbehaved for %v", ar.Roles)
	}
}

func TestBuildMissingFields(t *testing.T) {
	if _, err := Build(nil, nil); err == nil {
		t.Errorf("a nil raw operation should not build")
	}
	if _, err := Build(nil, &RawOperation{Service: "WMS"}); err == nil {
		t.Errorf("a raw operation with no operation name should not build")
	}
}

func TestUnsetVsEmpty(t *testing.T) {
	raw := &RawOperation{Service: "WMS", Operation: "GETMAP"}
	unset, _ := Build(nil, raw)
	raw2 := &RawOperation{Service: "WMS", Operation: "GETMAP", Workspace: strPtr("")}
	empty, _ := Build(nil, raw2)
	if unset.Workspace.IsSet() {
		t.Errorf("a missing workspace should be unset")
	}
	if !empty.Workspace.IsSet() {
		t.Errorf("an empty workspace string is still a set field")
	}
	if unset.Equal(empty) {
		t.Errorf("unset and empty-string fields must not compare equal")
	}
}

func TestFieldJSON(t *testing.T) {
	type wrap struct {
		W Field `json:"w"`
	}
	b, err := json.Marshal(wrap{W: UnsetField()})
	if err != nil {
		t.Fatalf("marshaling an unset field gave an error: %s", err)
	}
	if string(b) != `{"w":null}` {
		t.Errorf("an unset field should marshal as null, got %s", b)
	}
	b, _ = json.Marshal(wrap{W: SetField("topp")})
	if string(b) != `{"w":"topp"}` {
		t.Errorf("a set field marshaled wrong: %s", b)
	}
	var rt wrap
	if err = json.Unmarshal([]byte(`{"w":null}`), &rt); err != nil {
		t.Fatalf("unmarshaling null gave an error: %s", err)
	}
	if rt.W.IsSet() {
		t.Errorf("null should unmarshal to an unset field")
	}
	if err = json.Unmarshal([]byte(`{"w":""}`), &rt); err != nil {
		t.Fatalf("unmarshaling an empty string gave an error: %s", err)
	}
	if !rt.W.IsSet() {
		t.Errorf("an empty string should unmarshal to a set field")
	}
}

func TestCtxStash(t *testing.T) {
	p, _ := principal.New("jdoe", []string{"viewer"})
	raw := &RawOperation{Service: "WMS", Operation: "GETMAP"}
	ar, _ := Build(p, raw)
	ctx := context.WithValue(context.Background(), PrincipalKey, p)
	ctx = context.WithValue(ctx, AccessRequestKey, ar)
	cp, err := CtxPrincipal(ctx)
	if err != nil {
		t.Fatalf("CtxPrincipal gave an error: %s", err.Error())
	}
	if cp.Name != "jdoe" {
		t.Errorf("wrong principal out of the context: %s", cp.Name)
	}
	car, err := CtxAccessRequest(ctx)
	if err != nil {
		t.Fatalf("CtxAccessRequest gave an error: %s", err.Error())
	}
	if !car.Equal(ar) {
		t.Errorf("the access request changed on the way through the context")
	}
	if _, err = CtxPrincipal(context.Background()); err == nil {
		t.Errorf("an empty context should not yield a principal")
	}
}
