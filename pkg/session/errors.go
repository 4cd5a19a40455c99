// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned when an operation other than Close or
	// Closed is attempted on a closed session.
	ErrSessionClosed = errors.New("session: handle has been closed")

	// ErrConnClosed is returned when a shared connection is used after
	// Close.
	ErrConnClosed = errors.New("session: shared connection has been closed")
)

// ProtocolError reports a URL whose scheme is neither http nor https.
type ProtocolError struct {
	URL string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("session: invalid protocol in url %q", e.URL)
}

// MethodError reports an unrecognized HTTP method. Name is set when the
// method came from a string (e.g. CLI input); otherwise Method holds the
// out-of-range value.
type MethodError struct {
	Method Method
	Name   string
}

func (e *MethodError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("session: invalid http method %q", e.Name)
	}
	return fmt.Sprintf("session: invalid http method %d", int(e.Method))
}

// HeaderError reports a stored header line that lacks the "name: value"
// separator.
type HeaderError struct {
	Line string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("session: malformed header line %q", e.Line)
}
