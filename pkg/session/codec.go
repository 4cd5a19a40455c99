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

import "strings"

// Param is one ordered name/value pair, used for both form fields and
// request headers.
type Param struct {
	Name  string
	Value string
}

// EncodeFields renders fields as "name=value&name=value" with no trailing
// separator. An empty slice encodes to "".
func EncodeFields(fields []Param) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}

// DecodeFields is the inverse of EncodeFields with a lenient policy:
// empty segments are skipped and segments without '=' are dropped
// silently.
func DecodeFields(s string) []Param {
	var fields []Param
	for _, seg := range strings.Split(s, "&") {
		if seg == "" {
			continue
		}
		name, value, found := strings.Cut(seg, "=")
		if !found {
			continue
		}
		fields = append(fields, Param{Name: name, Value: value})
	}
	return fields
}

// ParseHeaderLine parses a stored "Name: value" header line strictly: the
// two-byte ": " separator must be present, otherwise a *HeaderError is
// returned. This is the accessor-path parser.
func ParseHeaderLine(line string) (Param, error) {
	name, value, found := strings.Cut(line, ": ")
	if !found {
		return Param{}, &HeaderError{Line: line}
	}
	return Param{Name: name, Value: value}, nil
}

// SplitHeaderLine splits a header line at the first ':' and never fails;
// a line with no ':' becomes a name with an empty value. This is the
// diagnostics-path parser. It deliberately disagrees with ParseHeaderLine
// about lines missing the space after the colon; the two behaviors are
// kept as distinct operations.
func SplitHeaderLine(line string) Param {
	name, value, _ := strings.Cut(line, ":")
	return Param{Name: name, Value: value}
}
