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

// The remote oracle client. Rule queries go out as POST {base}/rules/match
// with the access request as the JSON body; the backend answers with its
// protocol version in the X-Portiere-Oracle-Version header and a JSON body
// of matching rules.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	gversion "github.com/hashicorp/go-version"
	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/gerror"
	"github.com/portiere/portiere/reqctx"
	"github.com/portiere/portiere/rule"
	"github.com/portiere/portiere/secret"
	"github.com/portiere/portiere/util"
	"github.com/tideland/golib/logger"
)

// VersionHeader carries the oracle protocol version in both directions.
const VersionHeader = "X-Portiere-Oracle-Version"

// Remote queries a network-reachable authorization service for matching
// rules.
type Remote struct {
	baseURL string
	client  *retryablehttp.Client
	token   string
}

type matchResponse struct {
	Rules []*rule.Rule `json:"rules"`
}

// NewRemote builds a remote oracle client for the given access snapshot. The
// snapshot's timeout bounds each query; a hung backend turns into
// service_unavailable rather than a hung request.
func NewRemote(a *config.Access) *Remote {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = a.ServiceTimeout
	client := &retryablehttp.Client{
		HTTPClient:   httpClient,
		RetryWaitMin: 50 * time.Millisecond,
		RetryWaitMax: 250 * time.Millisecond,
		RetryMax:     2,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.LinearJitterBackoff,
	}
	r := &Remote{
		baseURL: strings.TrimSuffix(a.ServiceURL, "/"),
		client:  client,
	}
	if config.UsingExternalSecrets() {
		tok, err := secret.GetOracleToken()
		if err != nil {
			logger.Errorf("could not fetch the oracle token from the secret store: %s", err.Error())
		} else {
			r.token = tok
		}
	}
	return r
}

// MatchingRules runs the rule query against the remote backend. Connectivity
// failures, timeouts, cancellation, non-200 answers, and protocol version
// mismatches all come back as service_unavailable errors; the engine decides
// what that means for the caller.
func (r *Remote) MatchingRules(ctx context.Context, key *reqctx.AccessRequest) ([]*rule.Rule, util.Gerror) {
	body, merr := json.Marshal(key)
	if merr != nil {
		return nil, util.CastErr(merr)
	}
	req, rerr := retryablehttp.NewRequest(http.MethodPost, r.baseURL+"/rules/match", body)
	if rerr != nil {
		return nil, unavailable("building the oracle request failed: %s", rerr.Error())
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(VersionHeader, config.MaxOracleVersion)
	if r.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.token))
	}

	resp, derr := r.client.Do(req)
	if derr != nil {
		logger.Errorf("remote oracle at %s unreachable: %s", r.baseURL, derr.Error())
		return nil, unavailable("the authorization service at %s could not be reached", r.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Errorf("remote oracle at %s answered %d", r.baseURL, resp.StatusCode)
		return nil, unavailable("the authorization service at %s answered with status %d", r.baseURL, resp.StatusCode)
	}
	if err := checkOracleVersion(resp.Header.Get(VersionHeader)); err != nil {
		logger.Errorf("remote oracle at %s: %s", r.baseURL, err.Error())
		return nil, err
	}

	mr := new(matchResponse)
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(mr); err != nil {
		return nil, unavailable("the authorization service at %s sent an unparseable answer: %s", r.baseURL, err.Error())
	}
	matched := mr.Rules
	if matched == nil {
		matched = make([]*rule.Rule, 0)
	}
	// trust but re-sort, so evaluation order is ours either way
	rule.SortRules(matched)
	return matched, nil
}

// Source identifies the remote backend.
func (r *Remote) Source() string {
	return r.baseURL
}

func unavailable(format string, a ...interface{}) util.Gerror {
	return util.KindErrorf(gerror.KindServiceUnavailable, http.StatusServiceUnavailable, format, a...)
}

func checkOracleVersion(verStr string) util.Gerror {
	if verStr == "" {
		return unavailable("the authorization service did not report a protocol version")
	}
	ver, err := gversion.NewVersion(verStr)
	if err != nil {
		return unavailable("the authorization service reported an unparseable protocol version '%s'", verStr)
	}
	constraint := fmt.Sprintf(">= %s, <= %s", config.MinOracleVersion, config.MaxOracleVersion)
	cons, err := gversion.NewConstraint(constraint)
	if err != nil {
		return unavailable("bad oracle version constraint '%s': %s", constraint, err.Error())
	}
	if !cons.Check(ver) {
		return unavailable("the authorization service speaks protocol version %s, this server needs %s", verStr, constraint)
	}
	return nil
}
