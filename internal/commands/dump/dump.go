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

// Package dump implements the "conduit dump" command, which stages a
// request without executing it and prints the accumulated options.
package dump

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/conduit/internal/commands/shared"
	"github.com/tombee/conduit/pkg/session"
)

// NewCommand creates the dump command.
func NewCommand(st *shared.State) *cobra.Command {
	var (
		methodStr string
		headers   []string
		data      string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dump URL",
		Short: "Stage a request and print its options without sending it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meth, err := session.ParseMethod(methodStr)
			if err != nil {
				return err
			}

			sess, err := session.NewHTTP(args[0], meth)
			if err != nil {
				return err
			}
			defer sess.Close()

			if len(headers) > 0 {
				params := make([]session.Param, 0, len(headers))
				for _, h := range headers {
					p := session.SplitHeaderLine(h)
					params = append(params, session.Param{
						Name:  strings.TrimSpace(p.Name),
						Value: strings.TrimSpace(p.Value),
					})
				}
				if err := sess.AddHeaders(params); err != nil {
					return err
				}
			}
			if data != "" {
				if err := sess.SetFields(data); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = st.Config.Request.Timeout
			}
			if timeout > 0 {
				if err := sess.SetTimeout(timeout); err != nil {
					return err
				}
			}

			return sess.WriteOptions(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&methodStr, "method", "X", "GET", "HTTP method (GET, POST, PUT, DELETE)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header as 'Name: value' (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "raw url-encoded request body")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "whole-request timeout (0 disables)")

	return cmd
}
