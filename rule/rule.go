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
Package rule holds access rules and the local rule store. A rule ties a
service/workspace/layer pattern to an access mode, a policy (allow or deny),
the roles a caller must hold for the rule to apply, and a priority for
ordering. Matching returns every rule whose patterns cover an access request,
most specific first; the decision engine reduces that sequence to a verdict.
*/
package rule

import (
	"database/sql"
	"net/http"
	"sort"
	"strings"

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/datastore"
	"github.com/portiere/portiere/reqctx"
	"github.com/portiere/portiere/util"
)

// AccessMode classifies what an operation wants to do to a resource.
type AccessMode string

const (
	ModeRead  AccessMode = "READ"
	ModeWrite AccessMode = "WRITE"
	ModeAdmin AccessMode = "ADMIN"
)

// Policy says whether a matching rule grants or refuses access.
type Policy string

const (
	PolicyAllow Policy = "allow"
	PolicyDeny  Policy = "deny"
)

// Wildcard matches any value in a pattern position, including an unset one.
const Wildcard = "*"

// Rule is one entry in the rule table.
type Rule struct {
	ID        string   `json:"id" toml:"id"`
	Service   string   `json:"service" toml:"service"`
	Workspace string   `json:"workspace" toml:"workspace"`
	Layer     string   `json:"layer" toml:"layer"`
	Mode      string   `json:"mode" toml:"mode"`
	Policy    string   `json:"policy" toml:"policy"`
	Roles     []string `json:"roles" toml:"roles"`
	Priority  int      `json:"priority" toml:"priority"`
}

// New creates a new rule with the given id, if one does not exist already.
// The rule comes back with wildcard patterns, READ mode, and allow policy;
// callers fill in the rest and Validate before saving.
func New(id string) (*Rule, util.Gerror) {
	var found bool
	if !util.ValidateName(id) {
		return nil, util.Errorf("invalid id '%s' for rule", id)
	}
	if config.UsingDB() {
		var err error
		found, err = checkForRuleSQL(datastore.Dbh, id)
		if err != nil {
			gerr := util.Errorf(err.Error())
			gerr.SetStatus(http.StatusInternalServerError)
			return nil, gerr
		}
	} else {
		ds := datastore.New()
		_, found = ds.Get("rule", id)
	}
	if found {
		err := util.Errorf("Rule %s already exists", id)
		err.SetStatus(http.StatusConflict)
		return nil, err
	}
	r := &Rule{
		ID:        id,
		Service:   Wildcard,
		Workspace: Wildcard,
		Layer:     Wildcard,
		Mode:      string(ModeRead),
		Policy:    string(PolicyAllow),
		Roles:     []string{},
	}
	return r, nil
}

// Get gets a rule by id.
func Get(id string) (*Rule, util.Gerror) {
	var rule *Rule
	var found bool

	if config.UsingDB() {
		var err error
		rule, err = getRuleSQL(id)
		if err != nil {
			if err == sql.ErrNoRows {
				found = false
			} else {
				return nil, util.CastErr(err)
			}
		} else {
			found = true
		}
	} else {
		ds := datastore.New()
		var r interface{}
		r, found = ds.Get("rule", id)
		if r != nil {
			rule = r.(*Rule)
		}
	}
	if !found {
		err := util.Errorf("rule '%s' not found", id)
		err.SetStatus(http.StatusNotFound)
		return nil, err
	}
	return rule, nil
}

// Validate checks the rule's patterns, mode, and policy before it's saved.
func (r *Rule) Validate() util.Gerror {
	if !util.ValidateRulePattern(r.Workspace) {
		err := util.Errorf("invalid workspace pattern '%s' for rule %s", r.Workspace, r.ID)
		err.SetStatus(http.StatusBadRequest)
		return err
	}
	if !util.ValidateRulePattern(r.Layer) {
		err := util.Errorf("invalid layer pattern '%s' for rule %s", r.Layer, r.ID)
		err.SetStatus(http.StatusBadRequest)
		return err
	}
	if r.Service != Wildcard && !util.ValidateName(r.Service) {
		err := util.Errorf("invalid service pattern '%s' for rule %s", r.Service, r.ID)
		err.SetStatus(http.StatusBadRequest)
		return err
	}
	switch AccessMode(r.Mode) {
	case ModeRead, ModeWrite, ModeAdmin:
	default:
		err := util.Errorf("invalid access mode '%s' for rule %s", r.Mode, r.ID)
		err.SetStatus(http.StatusBadRequest)
		return err
	}
	switch Policy(r.Policy) {
	case PolicyAllow, PolicyDeny:
	default:
		err := util.Errorf("invalid policy '%s' for rule %s", r.Policy, r.ID)
		err.SetStatus(http.StatusBadRequest)
		return err
	}
	if r.Priority < 0 {
		err := util.Errorf("rule %s has a negative priority", r.ID)
		err.SetStatus(http.StatusBadRequest)
		return err
	}
	for _, role := range r.Roles {
		if !util.ValidateRoleName(role) {
			err := util.Errorf("invalid role name '%s' for rule %s", role, r.ID)
			err.SetStatus(http.StatusBadRequest)
			return err
		}
	}
	if r.Roles == nil {
		r.Roles = []string{}
	}
	return nil
}

// Save the rule.
func (r *Rule) Save() util.Gerror {
	if err := r.Validate(); err != nil {
		return err
	}
	if config.UsingDB() {
		if err := r.saveSQL(); err != nil {
			return util.CastErr(err)
		}
		return nil
	}
	ds := datastore.New()
	ds.Set("rule", r.ID, r)
	return nil
}

// Delete the rule.
func (r *Rule) Delete() util.Gerror {
	if config.UsingDB() {
		if err := r.deleteSQL(); err != nil {
			return util.CastErr(err)
		}
		return nil
	}
	ds := datastore.New()
	ds.Delete("rule", r.ID)
	return nil
}

// GetList returns a list of rule ids.
func GetList() []string {
	if config.UsingDB() {
		return getListSQL()
	}
	ds := datastore.New()
	return ds.GetList("rule")
}

// AllRules returns every rule in the store.
func AllRules() ([]*Rule, util.Gerror) {
	ids := GetList()
	rules := make([]*Rule, 0, len(ids))
	for _, id := range ids {
		r, err := Get(id)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// GetName returns the rule's id.
func (r *Rule) GetName() string {
	return r.ID
}

// URLType returns the base element of a rule's URL.
func (r *Rule) URLType() string {
	return "rules"
}

// DenyPolicy is true for explicit deny rules.
func (r *Rule) DenyPolicy() bool {
	return Policy(r.Policy) == PolicyDeny
}

// Matches reports whether the rule's patterns cover the given access
// request. Role requirements are checked separately by the engine, since a
// rule whose roles the caller lacks simply does not apply to them.
func (r *Rule) Matches(key *reqctx.AccessRequest) bool {
	if r.Service != Wildcard && !strings.EqualFold(r.Service, key.Service) {
		return false
	}
	if !patternMatch(r.Workspace, key.Workspace) {
		return false
	}
	if !patternMatch(r.Layer, key.Layer) {
		return false
	}
	return true
}

// AppliesTo reports whether the caller holds at least one of the rule's
// required roles. A rule with no role requirement applies to everyone,
// anonymous callers included.
func (r *Rule) AppliesTo(key *reqctx.AccessRequest) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, role := range r.Roles {
		if key.HasRole(role) {
			return true
		}
	}
	return false
}

func patternMatch(pattern string, f reqctx.Field) bool {
	if pattern == Wildcard {
		return true
	}
	return f.IsSet() && pattern == f.Value()
}

// Specificity counts the rule's exact (non-wildcard) pattern positions.
// Rules with more exact positions are evaluated before looser ones.
func (r *Rule) Specificity() int {
	var n int
	if r.Service != Wildcard {
		n++
	}
	if r.Workspace != Wildcard {
		n++
	}
	if r.Layer != Wildcard {
		n++
	}
	return n
}

// SortRules orders rules for evaluation: most specific first, then higher
// priority, then ascending rule id so the order is stable across runs.
func SortRules(rules []*Rule) {
	sort.Slice(rules, func(i, j int) bool {
		si, sj := rules[i].Specificity(), rules[j].Specificity()
		if si != sj {
			return si > sj
		}
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}

// MatchingRules returns every stored rule whose patterns match the given
// access request, in evaluation order.
func MatchingRules(key *reqctx.AccessRequest) ([]*Rule, util.Gerror) {
	all, err := AllRules()
	if err != nil {
		return nil, err
	}
	matched := make([]*Rule, 0, len(all))
	for _, r := range all {
		if r.Matches(key) {
			matched = append(matched, r)
		}
	}
	SortRules(matched)
	return matched, nil
}

// writeOps are the operations that modify data rather than read it.
// Unlisted operations are reads.
var writeOps = map[string]bool{
	"TRANSACTION": true,
	"INSERT":      true,
	"UPDATE":      true,
	"DELETE":      true,
	"LOCKFEATURE": true,
	"PUTSTYLE":    true,
	"EXECUTE":     true,
	"PUBLISH":     true,
	"REMOVE":      true,
	"REST-WRITE":  true,
}

var adminOps = map[string]bool{
	"CONFIGURE":  true,
	"REST-ADMIN": true,
}

// ModeForOperation maps an operation name to the access mode it requires.
// Unknown operations are treated as reads; rules still have to allow them.
func ModeForOperation(operation string) AccessMode {
	op := strings.ToUpper(operation)
	if adminOps[op] {
		return ModeAdmin
	}
	if writeOps[op] {
		return ModeWrite
	}
	return ModeRead
}
