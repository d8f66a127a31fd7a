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

/*
Package oracle answers the one question the decision engine asks: which rules
match this access request, in evaluation order. There are two realizations,
picked by the service-url in the current access snapshot. The special url
"internal" queries the local rule store in-process; anything else is taken as
the base url of a remote authorization service speaking the portiere oracle
protocol.

A remote backend that cannot be reached, times out, or speaks the wrong
protocol version reports service_unavailable. It never reports an empty rule
list, since the engine treats those very differently: no rules is a policy
deny, an unreachable backend is an outage.
*/
package oracle

import (
	"context"

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/reqctx"
	"github.com/portiere/portiere/rule"
	"github.com/portiere/portiere/util"
)

// Oracle finds the rules matching an access request.
type Oracle interface {
	// MatchingRules returns every rule covering the given request, most
	// specific first.
	MatchingRules(ctx context.Context, key *reqctx.AccessRequest) ([]*rule.Rule, util.Gerror)
	// Source describes where the rules come from, for logs and the
	// status endpoint.
	Source() string
}

// ForAccess returns the oracle realization the given access snapshot calls
// for.
func ForAccess(a *config.Access) Oracle {
	if a.UsingLocalRules() {
		return Local{}
	}
	return NewRemote(a)
}

// Local answers rule queries from the in-process rule store.
type Local struct{}

// MatchingRules queries the local rule store. The context is unused here;
// the local store doesn't block.
func (l Local) MatchingRules(ctx context.Context, key *reqctx.AccessRequest) ([]*rule.Rule, util.Gerror) {
	return rule.MatchingRules(key)
}

// Source identifies the local rule store.
func (l Local) Source() string {
	return config.LocalServiceURL
}
