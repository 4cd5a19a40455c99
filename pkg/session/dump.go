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
	"io"

	"github.com/tombee/conduit/pkg/transport"
)

// WriteOptions writes a human-readable dump of every applied option, one
// per line, for diagnostics. Form fields are decoded into pairs, header
// lines are split leniently, and pointer-valued options print as opaque
// addresses. Allowed on a closed session (the store may have been cleared
// by then).
func (s *Session) WriteOptions(w io.Writer) error {
	var err error
	s.opts.Each(func(opt transport.Option, value string) {
		if err != nil {
			return
		}
		switch opt {
		case transport.OptionPostFields:
			if _, err = fmt.Fprintf(w, "\t%s:\n", opt); err != nil {
				return
			}
			for _, f := range DecodeFields(value) {
				if _, err = fmt.Fprintf(w, "\t\t%s\t%s\n", f.Name, f.Value); err != nil {
					return
				}
			}
		case transport.OptionHTTPHeader:
			if _, err = fmt.Fprintf(w, "\t%s:\n", opt); err != nil {
				return
			}
			for _, line := range s.headers.Lines() {
				p := SplitHeaderLine(line)
				if _, err = fmt.Fprintf(w, "\t\t%s\t%s\n", p.Name, p.Value); err != nil {
					return
				}
			}
		default:
			if _, err = fmt.Fprintf(w, "\t%s\t%s\n", opt, value); err != nil {
				return
			}
		}
	})
	return err
}
