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
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/tombee/conduit/pkg/transport"
)

// OptionStore records the last-applied string representation of every
// option set on a session. It exists for introspection and diagnostics
// only; nothing reads it back for correctness.
type OptionStore struct {
	values map[transport.Option]string
}

// NewOptionStore returns an empty store.
func NewOptionStore() *OptionStore {
	return &OptionStore{values: make(map[transport.Option]string)}
}

// Set records the stringified value for an option.
func (s *OptionStore) Set(opt transport.Option, value any) {
	s.values[opt] = optionValueString(value)
}

// Value returns the recorded string for an option and whether it exists.
func (s *OptionStore) Value(opt transport.Option) (string, bool) {
	v, ok := s.values[opt]
	return v, ok
}

// Delete removes the record for an option.
func (s *OptionStore) Delete(opt transport.Option) {
	delete(s.values, opt)
}

// Len returns the number of recorded options.
func (s *OptionStore) Len() int { return len(s.values) }

// Clear removes all recorded options.
func (s *OptionStore) Clear() {
	s.values = make(map[transport.Option]string)
}

// Each calls fn for every recorded option in ascending option order.
func (s *OptionStore) Each(fn func(opt transport.Option, value string)) {
	opts := make([]transport.Option, 0, len(s.values))
	for opt := range s.values {
		opts = append(opts, opt)
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i] < opts[j] })
	for _, opt := range opts {
		fn(opt, s.values[opt])
	}
}

// optionValueString renders an option value for the store. Pointer-like
// values (sinks, header lists) are stored as opaque addresses: they are
// meaningful for diagnostics, never for round-tripping.
func optionValueString(value any) string {
	switch v := value.(type) {
	case nil:
		return "0"
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case time.Duration:
		return strconv.FormatInt(int64(v), 10)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Chan, reflect.Map, reflect.Slice, reflect.UnsafePointer:
		return fmt.Sprintf("0x%x", rv.Pointer())
	}
	return fmt.Sprint(value)
}
