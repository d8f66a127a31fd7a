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

// Package reqctx normalizes a raw inbound operation into the canonical access
// request the decision engine evaluates, and carries the principal and the
// built request around in the request's context.
package reqctx

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/portiere/portiere/gerror"
	"github.com/portiere/portiere/principal"
)

// Field is an optional string value. An unset field is distinct from a field
// set to the empty string, and the zero Field is unset. Fields are plain
// values, so access requests built from them compare with Equal without any
// pointer chasing.
type Field struct {
	val string
	ok  bool
}

// SetField returns a Field holding the given value.
func SetField(s string) Field {
	return Field{val: s, ok: true}
}

// UnsetField returns a Field with no value.
func UnsetField() Field {
	return Field{}
}

// IsSet reports whether the field holds a value.
func (f Field) IsSet() bool {
	return f.ok
}

// Value returns the field's value, which is "" when the field is unset.
func (f Field) Value() string {
	return f.val
}

// String renders the field for logs. Unset fields come out as "-" so they
// can't be confused with an empty value.
func (f Field) String() string {
	if !f.ok {
		return "-"
	}
	return f.val
}

// MarshalJSON encodes an unset field as null, never as the string "null".
func (f Field) MarshalJSON() ([]byte, error) {
	if !f.ok {
		return []byte("null"), nil
	}
	return json.Marshal(f.val)
}

// UnmarshalJSON decodes null back into an unset field.
func (f *Field) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Field{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = Field{val: s, ok: true}
	return nil
}

// RawOperation is the unnormalized description of an inbound operation, as
// the web layer sees it. Any of the pointer fields may be nil when the
// request did not carry that piece of information.
type RawOperation struct {
	Service       string
	Operation     string
	Workspace     *string
	Layer         *string
	Subfield      *string
	SourceAddress *string
}

// AccessRequest is the canonical decision key: who is asking to do what to
// which resource. It is built once per inbound operation and never mutated
// afterwards.
type AccessRequest struct {
	User          Field    `json:"user"`
	Roles         []string `json:"roles"`
	Service       string   `json:"service"`
	Operation     string   `json:"operation"`
	Workspace     Field    `json:"workspace"`
	Layer         Field    `json:"layer"`
	Subfield      Field    `json:"subfield"`
	SourceAddress Field    `json:"source_address"`
}

// Build normalizes a principal and a raw operation into an access request.
// An anonymous (or nil) principal yields an unset user and an empty role set.
// No side effects, and nothing is allocated beyond the returned request.
func Build(p *principal.Principal, raw *RawOperation) (*AccessRequest, gerror.Error) {
	if raw == nil {
		err := gerror.KindError("no operation info provided for this request", 400, gerror.KindInvalidContext)
		return nil, err
	}
	if strings.TrimSpace(raw.Service) == "" || strings.TrimSpace(raw.Operation) == "" {
		err := gerror.KindError("an operation must name its service and operation", 400, gerror.KindInvalidContext)
		return nil, err
	}
	ar := &AccessRequest{
		Service:   raw.Service,
		Operation: raw.Operation,
		Roles:     []string{},
	}
	if p != nil && !p.Anonymous {
		ar.User = SetField(p.Name)
		ar.Roles = make([]string, len(p.Roles))
		copy(ar.Roles, p.Roles)
		sort.Strings(ar.Roles)
	}
	ar.Workspace = fieldFrom(raw.Workspace)
	ar.Layer = fieldFrom(raw.Layer)
	ar.Subfield = fieldFrom(raw.Subfield)
	ar.SourceAddress = fieldFrom(raw.SourceAddress)
	return ar, nil
}

func fieldFrom(s *string) Field {
	if s == nil {
		return UnsetField()
	}
	return SetField(*s)
}

// HasRole checks if the request's role set holds the given role.
func (ar *AccessRequest) HasRole(role string) bool {
	for _, r := range ar.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Anonymous is true when the request carries no user at all.
func (ar *AccessRequest) Anonymous() bool {
	return !ar.User.IsSet()
}

// Equal compares two access requests field by field. Unset fields only equal
// other unset fields.
func (ar *AccessRequest) Equal(other *AccessRequest) bool {
	if other == nil {
		return false
	}
	if ar.User != other.User || ar.Service != other.Service || ar.Operation != other.Operation {
		return false
	}
	if ar.Workspace != other.Workspace || ar.Layer != other.Layer || ar.Subfield != other.Subfield || ar.SourceAddress != other.SourceAddress {
		return false
	}
	if len(ar.Roles) != len(other.Roles) {
		return false
	}
	for i, r := range ar.Roles {
		if other.Roles[i] != r {
			return false
		}
	}
	return true
}

// String renders the request compactly for logs and the decision trail.
func (ar *AccessRequest) String() string {
	var sb strings.Builder
	sb.WriteString(ar.User.String())
	sb.WriteString("[")
	sb.WriteString(strings.Join(ar.Roles, ","))
	sb.WriteString("] ")
	sb.WriteString(ar.Service)
	sb.WriteString(":")
	sb.WriteString(ar.Operation)
	sb.WriteString(" ")
	sb.WriteString(ar.Workspace.String())
	sb.WriteString("/")
	sb.WriteString(ar.Layer.String())
	if ar.Subfield.IsSet() {
		sb.WriteString("#")
		sb.WriteString(ar.Subfield.Value())
	}
	return sb.String()
}

// PrincipalCtxKey is a string type for a key for setting and fetching the
// request principal in the request's context.
type PrincipalCtxKey string

// PrincipalKey is the default context key for the principal stored in a
// request context.
var PrincipalKey PrincipalCtxKey = "principal"

// AccessRequestCtxKey is a string type for a key for setting and fetching the
// built access request in the request's context.
type AccessRequestCtxKey string

// AccessRequestKey is the default context key for the access request stored
// in a request context.
var AccessRequestKey AccessRequestCtxKey = "accessRequest"

// CtxPrincipal returns the principal associated with this context.
func CtxPrincipal(ctx context.Context) (*principal.Principal, gerror.Error) {
	p, ok := ctx.Value(PrincipalKey).(*principal.Principal)
	if !ok {
		err := gerror.New("Surprisingly, there was no principal for this request, and there should have been.")
		return nil, err
	}
	return p, nil
}

// CtxAccessRequest returns the access request associated with this context.
func CtxAccessRequest(ctx context.Context) (*AccessRequest, gerror.Error) {
	ar, ok := ctx.Value(AccessRequestKey).(*AccessRequest)
	if !ok {
		err := gerror.New("Surprisingly, there was no access request for this request, and there should have been.")
		return nil, err
	}
	return ar, nil
}
