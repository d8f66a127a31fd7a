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

package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/gerror"
	"github.com/portiere/portiere/reqctx"
	"github.com/portiere/portiere/rule"
)

func testKey(t *testing.T) *reqctx.AccessRequest {
	ws := "topp"
	lay := "states"
	ar, err := reqctx.Build(nil, &reqctx.RawOperation{Service: "WMS", Operation: "GETMAP", Workspace: &ws, Layer: &lay})
	if err != nil {
		t.Fatalf("building the test key gave an error: %s", err.Error())
	}
	return ar
}

func TestForAccess(t *testing.T) {
	local := &config.Access{ServiceURL: config.LocalServiceURL, ServiceTimeout: 2 * time.Second}
	if _, ok := ForAccess(local).(Local); !ok {
		t.Errorf("service-url 'internal' should pick the local oracle")
	}
	remote := &config.Access{ServiceURL: "http://oracle.local:4646", ServiceTimeout: 2 * time.Second}
	if _, ok := ForAccess(remote).(*Remote); !ok {
		t.Errorf("a real url should pick the remote oracle")
	}
}

func TestRemoteMatchingRules(t *testing.T) {
	var gotKey reqctx.AccessRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rules/match" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&gotKey); err != nil {
			t.Errorf("could not decode the query body: %s", err)
		}
		w.Header().Set(VersionHeader, "1.0.0")
		resp := matchResponse{Rules: []*rule.Rule{
			{ID: "wide", Service: rule.Wildcard, Workspace: rule.Wildcard, Layer: rule.Wildcard, Mode: "READ", Policy: "allow", Priority: 1},
			{ID: "narrow", Service: "WMS", Workspace: "topp", Layer: "states", Mode: "READ", Policy: "allow", Priority: 1},
		}}
		json.NewEncoder(w).Encode(&resp)
	}))
	defer srv.Close()

	rem := NewRemote(&config.Access{ServiceURL: srv.URL, ServiceTimeout: 2 * time.Second})
	matched, err := rem.MatchingRules(context.Background(), testKey(t))
	if err != nil {
		t.Fatalf("remote matching gave an error: %s", err.Error())
	}
	if len(matched) != 2 {
		t.Fatalf("expected 2 rules back, got %d", len(matched))
	}
	if matched[0].ID != "narrow" {
		t.Errorf("rules should come back most specific first, got %s", matched[0].ID)
	}
	if !gotKey.Workspace.IsSet() || gotKey.Workspace.Value() != "topp" {
		t.Errorf("the query body lost the workspace field: %+v", gotKey)
	}
}

func TestRemoteUnreachable(t *testing.T) {
	// a closed server, so the dial fails fast
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	rem := NewRemote(&config.Access{ServiceURL: srv.URL, ServiceTimeout: 500 * time.Millisecond})
	_, err := rem.MatchingRules(context.Background(), testKey(t))
	if err == nil {
		t.Fatalf("an unreachable backend should be an error")
	}
	if err.Kind() != gerror.KindServiceUnavailable {
		t.Errorf("an unreachable backend should be service_unavailable, got %s", err.Kind())
	}
}

func TestRemoteTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	rem := NewRemote(&config.Access{ServiceURL: srv.URL, ServiceTimeout: 100 * time.Millisecond})
	start := time.Now()
	_, err := rem.MatchingRules(context.Background(), testKey(t))
	if err == nil {
		t.Fatalf("a hung backend should be an error")
	}
	if err.Kind() != gerror.KindServiceUnavailable {
		t.Errorf("a timeout should be service_unavailable, got %s", err.Kind())
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("the timeout did not bound the query")
	}
}

func TestRemoteBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	rem := NewRemote(&config.Access{ServiceURL: srv.URL, ServiceTimeout: 2 * time.Second})
	_, err := rem.MatchingRules(context.Background(), testKey(t))
	if err == nil || err.Kind() != gerror.KindServiceUnavailable {
		t.Errorf("a non-200 answer should be service_unavailable")
	}
}

func TestRemoteVersionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(VersionHeader, "9.0.0")
		json.NewEncoder(w).Encode(&matchResponse{Rules: []*rule.Rule{}})
	}))
	defer srv.Close()

	rem := NewRemote(&config.Access{ServiceURL: srv.URL, ServiceTimeout: 2 * time.Second})
	_, err := rem.MatchingRules(context.Background(), testKey(t))
	if err == nil || err.Kind() != gerror.KindServiceUnavailable {
		t.Errorf("a protocol version mismatch should be service_unavailable")
	}
}

func TestCheckOracleVersion(t *testing.T) {
	if err := checkOracleVersion("1.0.0"); err != nil {
		t.Errorf("version 1.0.0 should be acceptable: %s", err.Error())
	}
	if err := checkOracleVersion("1.1.0"); err != nil {
		t.Errorf("version 1.1.0 should be acceptable: %s", err.Error())
	}
	if err := checkOracleVersion("0.9.0"); err == nil {
		t.Errorf("version 0.9.0 should be too old")
	}
	if err := checkOracleVersion(""); err == nil {
		t.Errorf("a missing version header should not pass")
	}
	if err := checkOracleVersion("mud"); err == nil {
		t.Errorf("an unparseable version should not pass")
	}
}

func TestRemoteCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	rem := NewRemote(&config.Access{ServiceURL: srv.URL, ServiceTimeout: 30 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := rem.MatchingRules(ctx, testKey(t))
	if err == nil {
		t.Fatalf("a cancelled query should be an error")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancellation did not abandon the query promptly")
	}
}
