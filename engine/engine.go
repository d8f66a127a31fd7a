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
Package engine turns an access request into a decision. The engine itself
holds no state; each call takes the current access snapshot, asks the oracle
that snapshot selects for matching rules, reduces them to a verdict, and for
group listings filters the group's members through the containment index.

The engine fails closed. No matching rule is a deny, an unreachable rule
backend is a deny, and a panic anywhere under evaluation is a deny. The one
loosening is the grant-write-to-authenticated snapshot flag, and an explicit
deny rule still beats it.
*/
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/portiere/portiere/catalog"
	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/containment"
	"github.com/portiere/portiere/gerror"
	"github.com/portiere/portiere/oracle"
	"github.com/portiere/portiere/reqctx"
	"github.com/portiere/portiere/rule"
	"github.com/tideland/golib/logger"
)

// Outcome is the top-level verdict of a decision.
type Outcome uint8

const (
	// OutcomeDeny refuses the operation.
	OutcomeDeny Outcome = iota
	// OutcomeAllow lets the operation through untouched.
	OutcomeAllow
	// OutcomeAllowFiltered lets a group listing through, restricted to
	// the members the caller may see.
	OutcomeAllowFiltered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeAllowFiltered:
		return "allow_filtered"
	default:
		return "deny"
	}
}

// Decision is the engine's answer for one access request. For denials the
// Reason and Kind say why in operator terms; callers pass the caller-facing
// message themselves, so the rule set never leaks outward.
type Decision struct {
	Outcome Outcome
	Reason  string
	Kind    gerror.Kind
	Members []string
}

// Permitted is true for any outcome other than a deny.
func (d *Decision) Permitted() bool {
	return d.Outcome != OutcomeDeny
}

func deny(kind gerror.Kind, reason string) *Decision {
	return &Decision{Outcome: OutcomeDeny, Reason: reason, Kind: kind}
}

// listOps are the operations that enumerate a composite resource's members,
// and so get the filtered treatment.
var listOps = map[string]bool{
	"GETCAPABILITIES": true,
	"LIST":            true,
	"REST-LIST":       true,
}

// IsListOperation reports whether an operation enumerates members of its
// target rather than fetching the target itself.
func IsListOperation(operation string) bool {
	return listOps[strings.ToUpper(operation)]
}

// Decide evaluates an access request against the current access snapshot.
// It always returns a decision; every internal failure mode resolves to a
// deny rather than an error escaping to the caller.
func Decide(ctx context.Context, key *reqctx.AccessRequest) (d *Decision) {
	start := time.Now()
	defer func() {
		if x := recover(); x != nil {
			logger.Errorf("panic evaluating access request %s: %v", key.String(), x)
			d = deny(gerror.KindGeneral, "internal evaluation failure")
		}
		trackDecision(start, d)
	}()

	acc := config.CurrentAccess()
	orc := oracle.ForAccess(acc)
	d = evaluate(ctx, key, acc, orc)
	if d.Permitted() && IsListOperation(key.Operation) {
		if gid := compositeTarget(key); gid != "" {
			d = filterListing(ctx, key, gid, acc, orc)
		}
	}
	return d
}

// evaluate reduces the oracle's matching rules to a plain allow or deny for
// the request's own resource identity.
func evaluate(ctx context.Context, key *reqctx.AccessRequest, acc *config.Access, orc oracle.Oracle) *Decision {
	rules, err := orc.MatchingRules(ctx, key)
	if err != nil {
		if err.Kind() == gerror.KindServiceUnavailable {
			logger.Errorf("denying %s: rule source %s unavailable: %s", key.String(), orc.Source(), err.Error())
			return deny(gerror.KindServiceUnavailable, "authorization service unavailable")
		}
		logger.Errorf("denying %s: rule lookup failed: %s", key.String(), err.Error())
		return deny(gerror.KindGeneral, "rule lookup failed")
	}

	mode := rule.ModeForOperation(key.Operation)
	var top *rule.Rule
	for _, r := range rules {
		if r.Mode == string(mode) && r.AppliesTo(key) {
			top = r
			break
		}
	}

	if top != nil {
		if top.DenyPolicy() {
			return deny(gerror.KindGeneral, "denied by policy")
		}
		return &Decision{Outcome: OutcomeAllow}
	}

	// the blanket write grant, for installations that trust any
	// authenticated caller with a role to edit
	if mode == rule.ModeWrite && acc.GrantWriteToAuthenticated && !key.Anonymous() && len(key.Roles) > 0 {
		return &Decision{Outcome: OutcomeAllow}
	}

	return deny(gerror.KindNoMatchingRule, "no rule permits this operation")
}

// compositeTarget returns the qualified group id when the request's layer
// names a layer group, or "" when it doesn't.
func compositeTarget(key *reqctx.AccessRequest) string {
	if !key.Layer.IsSet() {
		return ""
	}
	var gid string
	if key.Workspace.IsSet() {
		gid = catalog.GroupID(key.Workspace.Value(), key.Layer.Value())
	} else {
		gid = catalog.GroupID("", key.Layer.Value())
	}
	if !catalog.IsComposite(gid) {
		return ""
	}
	return gid
}

// filterListing narrows a group listing to the members the caller may access
// individually. Members that are themselves groups are kept when the caller
// may read the nested group as a resource.
func filterListing(ctx context.Context, key *reqctx.AccessRequest, groupID string, acc *config.Access, orc oracle.Oracle) *Decision {
	idx := containment.GetIndex()
	if idx == nil {
		logger.Errorf("denying listing of %s: no containment index", groupID)
		return deny(gerror.KindIndexUnavailable, "containment index unavailable")
	}
	if idx.Degraded() {
		logger.Warningf("filtering listing of %s against a degraded containment index", groupID)
	}
	members := idx.DirectMembers(groupID)
	allowed := make([]string, 0, len(members))
	for _, mid := range members {
		md := evaluate(ctx, memberKey(key, mid), acc, orc)
		if md.Kind == gerror.KindServiceUnavailable {
			// an outage mid-listing fails the whole listing closed
			return md
		}
		if md.Permitted() {
			allowed = append(allowed, mid)
		}
	}
	return &Decision{Outcome: OutcomeAllowFiltered, Members: allowed}
}

// memberKey derives the access request for one member of a group listing.
// Everything about the caller stays the same; only the target changes.
func memberKey(key *reqctx.AccessRequest, memberID string) *reqctx.AccessRequest {
	ws, name := catalog.SplitID(memberID)
	mk := &reqctx.AccessRequest{
		User:          key.User,
		Roles:         key.Roles,
		Service:       key.Service,
		Operation:     key.Operation,
		Subfield:      key.Subfield,
		SourceAddress: key.SourceAddress,
		Layer:         reqctx.SetField(name),
	}
	if ws != "" {
		mk.Workspace = reqctx.SetField(ws)
	}
	return mk
}
