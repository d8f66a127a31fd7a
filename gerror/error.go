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

// Package gerror defines a custom error type with an HTTP status code and an
// error kind for portiere. The kind lets the decision engine tell a plain
// denial apart from a backend being unreachable without anybody parsing
// error strings. For convenience there are wrappers for the Error interface
// in the util package, since they're called all over the place.
package gerror

import (
	"fmt"
	"net/http"
)

// Kind classifies an error beyond its HTTP status. Most errors are
// KindGeneral; the other kinds match the failure conditions the access
// decision path cares about.
type Kind uint8

const (
	// KindGeneral is every error without a more specific classification.
	KindGeneral Kind = iota
	// KindInvalidContext - the raw operation info could not be normalized.
	KindInvalidContext
	// KindNoMatchingRule - no rule matched the decision key. Not a fault,
	// but carried as a kind so deny reasons stay machine readable.
	KindNoMatchingRule
	// KindServiceUnavailable - the authorization backend could not be
	// reached, timed out, or spoke an unsupported protocol version.
	KindServiceUnavailable
	// KindIndexUnavailable - the containment index could not be built or
	// refreshed.
	KindIndexUnavailable
)

var kindStrings = map[Kind]string{
	KindGeneral:            "general",
	KindInvalidContext:     "invalid_context",
	KindNoMatchingRule:     "no_matching_rule",
	KindServiceUnavailable: "service_unavailable",
	KindIndexUnavailable:   "index_unavailable",
}

func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return "unknown"
}

// the private error struct
type gerror struct {
	msg    string
	status int
	kind   Kind
}

// Error is an error type that includes an HTTP status code (defaults to
// http.StatusBadRequest) and an error kind (defaults to KindGeneral).
type Error interface {
	String() string
	Error() string
	Status() int
	SetStatus(int)
	Kind() Kind
	SetKind(Kind)
}

// New makes a new Error. Usually you want Errorf.
func New(text string) Error {
	return &gerror{msg: text,
		status: http.StatusBadRequest,
	}
}

// Errorf creates a new Error, with a formatted error string.
func Errorf(format string, a ...interface{}) Error {
	return New(fmt.Sprintf(format, a...))
}

// CastErr will easily cast a different kind of error to a portiere Error.
func CastErr(err error) Error {
	if gerr, ok := err.(Error); ok {
		return gerr
	}
	return Errorf(err.Error())
}

// Error returns the error message.
func (e *gerror) Error() string {
	return e.msg
}

// String returns the msg as a string.
func (e *gerror) String() string {
	return e.msg
}

// SetStatus sets the Error HTTP status code.
func (e *gerror) SetStatus(s int) {
	e.status = s
}

// Status returns the Error's HTTP status code.
func (e *gerror) Status() int {
	return e.status
}

// SetKind classifies the error.
func (e *gerror) SetKind(k Kind) {
	e.kind = k
}

// Kind returns the error's classification.
func (e *gerror) Kind() Kind {
	return e.kind
}

// StatusError makes an error with a string and a HTTP status code.
func StatusError(msg string, status int) Error {
	e := &gerror{msg: msg, status: status}
	return e
}

// KindError makes an error with a string, an HTTP status code, and a kind,
// for the places that know exactly what went wrong.
func KindError(msg string, status int, kind Kind) Error {
	e := &gerror{msg: msg, status: status, kind: kind}
	return e
}
