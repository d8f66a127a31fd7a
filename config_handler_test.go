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

package main

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/principal"
	"github.com/portiere/portiere/reqctx"
)

func adminSwapReq(t *testing.T, body string) *http.Request {
	req := httptest.NewRequest("PUT", "/access", strings.NewReader(body))
	adm, err := principal.New("admin", nil)
	if err != nil {
		t.Fatalf("building the admin principal gave an error: %s", err.Error())
	}
	ctx := context.WithValue(req.Context(), reqctx.PrincipalKey, adm)
	return req.WithContext(ctx)
}

func swapTestSetup(t *testing.T) func() {
	dir, err := ioutil.TempDir("", "confighandler-test")
	if err != nil {
		t.Fatalf("making a temp policy dir gave an error: %s", err.Error())
	}
	config.Config.PolicyRoot = dir
	config.SwapAccess(&config.Access{
		ServiceURL:     config.LocalServiceURL,
		ServiceTimeout: 5 * time.Second,
	})
	return func() {
		os.RemoveAll(dir)
		config.SwapAccess(&config.Access{
			ServiceURL:     config.LocalServiceURL,
			ServiceTimeout: 5 * time.Second,
		})
	}
}

func TestAccessSwap(t *testing.T) {
	defer swapTestSetup(t)()
	w := httptest.NewRecorder()
	accessConfigHandler(w, adminSwapReq(t, `{"service_url": "http://oracle.local:9999", "service_timeout": "2s"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("a valid swap should succeed, got status %d: %s", w.Code, w.Body.String())
	}
	acc := config.CurrentAccess()
	if acc.ServiceURL != "http://oracle.local:9999" {
		t.Errorf("the snapshot should carry the new service url, got %s", acc.ServiceURL)
	}
	if acc.ServiceTimeout != 2*time.Second {
		t.Errorf("the snapshot should carry the new timeout, got %s", acc.ServiceTimeout)
	}
}

func TestAccessSwapRejectsZeroTimeout(t *testing.T) {
	defer swapTestSetup(t)()
	for _, ts := range []string{"0s", "-1s"} {
		w := httptest.NewRecorder()
		accessConfigHandler(w, adminSwapReq(t, `{"service_timeout": "`+ts+`"}`))
		if w.Code != http.StatusBadRequest {
			t.Errorf("a timeout of %s should be refused, got status %d", ts, w.Code)
		}
		if acc := config.CurrentAccess(); acc.ServiceTimeout != 5*time.Second {
			t.Errorf("a refused swap must leave the snapshot alone, timeout became %s", acc.ServiceTimeout)
		}
	}
}

func TestAccessSwapRejectsEmptyURL(t *testing.T) {
	defer swapTestSetup(t)()
	for _, body := range []string{`{"service_url": ""}`, `{"service_url": "   "}`} {
		w := httptest.NewRecorder()
		accessConfigHandler(w, adminSwapReq(t, body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("an empty service url should be refused, got status %d", w.Code)
		}
		if acc := config.CurrentAccess(); acc.ServiceURL != config.LocalServiceURL {
			t.Errorf("a refused swap must leave the snapshot alone, url became %s", acc.ServiceURL)
		}
	}
}
