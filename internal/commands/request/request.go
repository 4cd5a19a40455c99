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

// Package request implements the "conduit request" command.
package request

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tombee/conduit/internal/commands/shared"
	"github.com/tombee/conduit/internal/log"
	"github.com/tombee/conduit/pkg/session"
)

// NewCommand creates the request command.
func NewCommand(st *shared.State) *cobra.Command {
	var (
		methodStr string
		headers   []string
		fields    []string
		data      string
		timeout   time.Duration
		contextID int
		include   bool
		retries   int
	)

	cmd := &cobra.Command{
		Use:   "request URL",
		Short: "Execute an HTTP request through a shared connection",
		Long: `Execute a single HTTP request through a pooled shared connection.

Requests against the same context key share one underlying session and
are serialized; different keys execute independently.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meth, err := session.ParseMethod(methodStr)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("timeout") {
				timeout = st.Config.Request.Timeout
			}
			if !cmd.Flags().Changed("context") {
				contextID = st.Config.Request.Context
			}
			if !cmd.Flags().Changed("retries") {
				retries = st.Config.Request.Retries
			}

			conn, err := session.NewShared(args[0], meth, contextID)
			if err != nil {
				return err
			}
			defer conn.Close()

			if len(headers) > 0 {
				conn.SetHeaders(parseHeaderFlags(headers))
			}

			body := data
			if body == "" && len(fields) > 0 {
				body = session.EncodeFields(parseFieldFlags(fields))
			}
			conn.SetTimeout(timeout)

			requestID := uuid.NewString()
			logger := log.WithRequestID(slog.Default(), requestID)

			// Pending fields are consumed by each execute, so every
			// attempt restages them.
			attempt := func(ctx context.Context) (*session.Result, error) {
				if body != "" {
					conn.SetFields(body)
				}
				return conn.ExecuteContext(ctx, include)
			}

			var res *session.Result
			if retries > 0 {
				retryCfg := session.DefaultRetryConfig()
				retryCfg.MaxAttempts = retries + 1
				res, err = session.Retry(cmd.Context(), retryCfg, attempt)
			} else {
				res, err = attempt(cmd.Context())
			}
			if err != nil {
				return err
			}

			logger.Info("request complete",
				slog.Int(log.ContextIDKey, contextID),
				slog.String(log.MethodKey, meth.String()),
				slog.String(log.URLKey, args[0]),
				slog.Int(log.StatusKey, res.Status))

			if include {
				cmd.Print(res.Header)
			}
			cmd.Print(string(res.Body))
			if len(res.Body) > 0 && res.Body[len(res.Body)-1] != '\n' {
				cmd.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&methodStr, "method", "X", "GET", "HTTP method (GET, POST, PUT, DELETE)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header as 'Name: value' (repeatable)")
	cmd.Flags().StringArrayVarP(&fields, "field", "F", nil, "form field as 'name=value' (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "raw url-encoded request body (overrides --field)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "whole-request timeout (0 disables)")
	cmd.Flags().IntVar(&contextID, "context", 0, "shared connection context key")
	cmd.Flags().BoolVarP(&include, "include", "i", false, "include response headers in output")
	cmd.Flags().IntVar(&retries, "retries", 0, "additional attempts for transient failures")

	return cmd
}

func parseHeaderFlags(raw []string) []session.Param {
	params := make([]session.Param, 0, len(raw))
	for _, h := range raw {
		p := session.SplitHeaderLine(h)
		params = append(params, session.Param{
			Name:  strings.TrimSpace(p.Name),
			Value: strings.TrimSpace(p.Value),
		})
	}
	return params
}

func parseFieldFlags(raw []string) []session.Param {
	params := make([]session.Param, 0, len(raw))
	for _, f := range raw {
		name, value, _ := strings.Cut(f, "=")
		params = append(params, session.Param{Name: name, Value: value})
	}
	return params
}
