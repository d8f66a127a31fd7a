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
	"testing"
	"time"
)

func TestAccessSnapshotDefaults(t *testing.T) {
	a := CurrentAccess()
	if a == nil {
		t.Fatalf("CurrentAccess returned nil")
	}
	if !a.UsingLocalRules() {
		t.Errorf("default access snapshot should use the local rule store, got %s", a.ServiceURL)
	}
	if a.GrantWriteToAuthenticated {
		t.Errorf("default access snapshot should not blanket-grant writes")
	}
}

func TestAccessSnapshotSwap(t *testing.T) {
	orig := CurrentAccess()
	repl := &Access{
		ServiceURL:                "http://oracle.local:4646",
		GrantWriteToAuthenticated: true,
		ServiceTimeout:            5 * time.Second,
	}
	SwapAccess(repl)
	cur := CurrentAccess()
	if cur.UsingLocalRules() {
		t.Errorf("swapped snapshot should be remote, got %s", cur.ServiceURL)
	}
	if !cur.GrantWriteToAuthenticated {
		t.Errorf("swapped snapshot lost the write grant flag")
	}
	if cur.ServiceTimeout != 5*time.Second {
		t.Errorf("swapped snapshot has wrong timeout %s", cur.ServiceTimeout)
	}
	// the old snapshot must be unaffected by the swap
	if orig.GrantWriteToAuthenticated {
		t.Errorf("the old snapshot was mutated by the swap")
	}
	SwapAccess(&Access{ServiceURL: LocalServiceURL, ServiceTimeout: 2 * time.Second})
}

func TestLogLevelFromString(t *testing.T) {
	checks := map[string]int{"debug": 4, "info": 3, "warning": 2, "error": 1, "critical": 0, "fatal": 0}
	for lvl, expected := range checks {
		n, err := logLevelFromString(lvl)
		if err != nil {
			t.Errorf("log level %s should have parsed: %s", lvl, err.Error())
		}
		if n != expected {
			t.Errorf("log level %s parsed to %d, expected %d", lvl, n, expected)
		}
	}
	if _, err := logLevelFromString("shouting"); err == nil {
		t.Errorf("an invalid log level should not parse")
	}
}
