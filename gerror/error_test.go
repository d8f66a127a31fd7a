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

package gerror

import (
	"errors"
	"net/http"
	"testing"
)

func TestDefaults(t *testing.T) {
	e := New("borken")
	if e.Status() != http.StatusBadRequest {
		t.Errorf("default status should have been %d, got %d", http.StatusBadRequest, e.Status())
	}
	if e.Kind() != KindGeneral {
		t.Errorf("default kind should have been KindGeneral, got %s", e.Kind())
	}
	if e.Error() != "borken" {
		t.Errorf("error message came through wrong: %s", e.Error())
	}
}

func TestSetStatusAndKind(t *testing.T) {
	e := Errorf("no route to %s", "oracle")
	e.SetStatus(http.StatusServiceUnavailable)
	e.SetKind(KindServiceUnavailable)
	if e.Status() != http.StatusServiceUnavailable {
		t.Errorf("status was %d", e.Status())
	}
	if e.Kind() != KindServiceUnavailable {
		t.Errorf("kind was %s", e.Kind())
	}
	if e.Error() != "no route to oracle" {
		t.Errorf("formatted message was wrong: %s", e.Error())
	}
}

func TestCastErrPreservesKind(t *testing.T) {
	orig := KindError("index build failed", http.StatusInternalServerError, KindIndexUnavailable)
	cast := CastErr(orig)
	if cast.Kind() != KindIndexUnavailable {
		t.Errorf("casting an Error lost its kind, got %s", cast.Kind())
	}
	plain := CastErr(errors.New("some plain error"))
	if plain.Kind() != KindGeneral {
		t.Errorf("casting a plain error should give KindGeneral, got %s", plain.Kind())
	}
}

func TestKindStrings(t *testing.T) {
	checks := map[Kind]string{
		KindGeneral:            "general",
		KindInvalidContext:     "invalid_context",
		KindNoMatchingRule:     "no_matching_rule",
		KindServiceUnavailable: "service_unavailable",
		KindIndexUnavailable:   "index_unavailable",
	}
	for k, expected := range checks {
		if k.String() != expected {
			t.Errorf("expected %s for kind %d, got %s", expected, k, k.String())
		}
	}
}
