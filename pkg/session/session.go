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

// Package session provides a configurable HTTP session built on a single
// transport handle, an HTTP-aware session with method and protocol
// semantics, and a process-wide registry that multiplexes many logical
// connections onto pooled sessions with reference counting and
// per-context mutual exclusion.
package session

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tombee/conduit/internal/log"
	"github.com/tombee/conduit/pkg/transport"
)

// DefaultEncoding is the response encoding requested by HTTP sessions
// unless overridden.
const DefaultEncoding = "gzip"

// Result is the outcome of one executed request. CompletedAt is captured
// immediately after the transport call returns, before the status code is
// read, so it reflects "request finished" rather than "result parsed".
type Result struct {
	Status      int
	Body        []byte
	Header      string
	CompletedAt time.Time
}

// Session owns exactly one transport handle and executes one blocking
// request at a time. A Session must not be copied: the handle is a unique
// resource. Ownership can be transferred with Adopt. A closed Session
// rejects everything except Close, Closed, Options and WriteOptions.
//
// Session is not safe for concurrent use; SharedConn provides the
// serialized multi-owner surface.
type Session struct {
	handle  transport.Handle
	headers *transport.HeaderList
	opts    *OptionStore
	logger  *slog.Logger
}

// New returns an open session with a fresh transport handle.
func New() *Session {
	return NewWithHandle(transport.New())
}

// NewWithHandle returns an open session owning the given handle. The
// session takes exclusive ownership; the caller must not use the handle
// directly afterwards.
func NewWithHandle(h transport.Handle) *Session {
	return &Session{
		handle: h,
		opts:   NewOptionStore(),
		logger: log.WithComponent(slog.Default(), "session"),
	}
}

// SetLogger replaces the session's logger.
func (s *Session) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetOption applies a single transport option and records its stringified
// value. It returns ErrSessionClosed on a closed session and the
// transport's *OptionError when the value is rejected.
func (s *Session) SetOption(opt transport.Option, value any) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	if err := s.handle.SetOption(opt, value); err != nil {
		return err
	}
	s.opts.Set(opt, value)
	return nil
}

// Execute performs the configured request, blocking until it completes.
// See ExecuteContext.
func (s *Session) Execute(returnHeaders bool) (*Result, error) {
	return s.ExecuteContext(context.Background(), returnHeaders)
}

// ExecuteContext performs the configured request synchronously. The body
// (and, when returnHeaders is set, the raw response header text) is
// captured into in-memory sinks wired to the handle. Transport failures
// surface as *transport.PerformError; the session's configuration still
// reflects the attempted request afterwards.
func (s *Session) ExecuteContext(ctx context.Context, returnHeaders bool) (*Result, error) {
	if s.Closed() {
		return nil, ErrSessionClosed
	}

	var body bytes.Buffer
	if err := s.SetOption(transport.OptionWriteSink, &body); err != nil {
		return nil, err
	}

	var head bytes.Buffer
	if returnHeaders {
		if err := s.SetOption(transport.OptionHeaderSink, &head); err != nil {
			return nil, err
		}
	} else {
		if err := s.SetOption(transport.OptionHeaderSink, nil); err != nil {
			return nil, err
		}
	}

	requestID := uuid.NewString()
	url, _ := s.opts.Value(transport.OptionURL)
	s.logger.DebugContext(ctx, "executing request",
		slog.String(log.RequestIDKey, requestID),
		slog.String(log.URLKey, url))

	start := time.Now()
	err := s.handle.Perform(ctx)
	completed := time.Now()
	if err != nil {
		s.logger.DebugContext(ctx, "request failed",
			slog.String(log.RequestIDKey, requestID),
			log.Error(err),
			log.Duration(log.DurationKey, completed.Sub(start)))
		return nil, err
	}

	status := s.handle.ResponseCode()
	s.logger.DebugContext(ctx, "request complete",
		slog.String(log.RequestIDKey, requestID),
		slog.Int(log.StatusKey, status),
		log.Duration(log.DurationKey, completed.Sub(start)))

	return &Result{
		Status:      status,
		Body:        body.Bytes(),
		Header:      head.String(),
		CompletedAt: completed,
	}, nil
}

// Close releases the header list and the transport handle and clears the
// option store. Close is idempotent.
func (s *Session) Close() {
	if s.headers != nil {
		s.headers.Free()
		s.headers = nil
	}
	if s.handle != nil {
		s.handle.Free()
		s.handle = nil
	}
	s.opts.Clear()
}

// Closed reports whether the session's handle has been released.
func (s *Session) Closed() bool { return s.handle == nil }

// Adopt transfers ownership of the donor's handle, header list and option
// store into s, releasing s's current resources first. The donor is left
// closed. Adopting a session with the same underlying resources is a
// no-op.
func (s *Session) Adopt(donor *Session) {
	if donor == nil || s.Equal(donor) {
		return
	}
	s.Close()
	s.handle = donor.handle
	s.headers = donor.headers
	s.opts = donor.opts
	donor.handle = nil
	donor.headers = nil
	donor.opts = NewOptionStore()
}

// Equal reports whether both sessions own the same underlying resources.
// Its only intended use is guarding against self-adoption.
func (s *Session) Equal(o *Session) bool {
	if o == nil {
		return false
	}
	return s.handle == o.handle && s.headers == o.headers
}

// AddHeaders appends "name: value" lines to the session's header list and
// applies the list as a single option. An empty slice is a no-op. A
// failed append surfaces as *transport.OptionError.
func (s *Session) AddHeaders(headers []Param) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	if len(headers) == 0 {
		return nil
	}
	for _, h := range headers {
		line := h.Name + ": " + h.Value
		list := transport.Append(s.headers, line)
		if list == nil {
			return &transport.OptionError{Option: transport.OptionHTTPHeader, Value: line}
		}
		s.headers = list
	}
	return s.SetOption(transport.OptionHTTPHeader, s.headers)
}

// Headers parses the current header list back into pairs using the strict
// "name: value" form; a malformed stored line yields a *HeaderError.
func (s *Session) Headers() ([]Param, error) {
	var headers []Param
	for _, line := range s.headers.Lines() {
		p, err := ParseHeaderLine(line)
		if err != nil {
			return nil, err
		}
		headers = append(headers, p)
	}
	return headers, nil
}

// HasHeaders reports whether any headers have been added.
func (s *Session) HasHeaders() bool { return s.headers != nil }

// ResetHeaders releases the header list and clears the staged header
// option. Idempotent; allowed on a closed session only insofar as the
// list itself is concerned.
func (s *Session) ResetHeaders() error {
	if s.headers != nil {
		s.headers.Free()
		s.headers = nil
	}
	s.opts.Delete(transport.OptionHTTPHeader)
	if s.Closed() {
		return nil
	}
	return s.handle.SetOption(transport.OptionHTTPHeader, nil)
}

// ResetOptions clears the header list and every applied option, restoring
// transport defaults.
func (s *Session) ResetOptions() error {
	if err := s.ResetHeaders(); err != nil {
		return err
	}
	if s.handle != nil {
		s.handle.Reset()
	}
	s.opts.Clear()
	return nil
}

// SetURL sets the request URL.
func (s *Session) SetURL(url string) error {
	return s.SetOption(transport.OptionURL, url)
}

// URL returns the last URL applied, or "".
func (s *Session) URL() string {
	v, _ := s.opts.Value(transport.OptionURL)
	return v
}

// SetSSLVerify toggles certificate chain and hostname verification.
func (s *Session) SetSSLVerify(on bool) error {
	if err := s.SetOption(transport.OptionSSLVerifyPeer, on); err != nil {
		return err
	}
	host := int64(0)
	if on {
		host = 2
	}
	return s.SetOption(transport.OptionSSLVerifyHost, host)
}

// SetSSLVerifyCABundle enables verification against a PEM bundle file.
func (s *Session) SetSSLVerifyCABundle(path string) error {
	if err := s.SetSSLVerify(true); err != nil {
		return err
	}
	return s.SetOption(transport.OptionCAInfo, path)
}

// SetSSLVerifyCACerts enables verification against a directory of PEM
// certificate files.
func (s *Session) SetSSLVerifyCACerts(dir string) error {
	if err := s.SetSSLVerify(true); err != nil {
		return err
	}
	return s.SetOption(transport.OptionCAPath, dir)
}

// SetEncoding sets the requested response encoding.
func (s *Session) SetEncoding(enc string) error {
	return s.SetOption(transport.OptionAcceptEncoding, enc)
}

// SetKeepAlive toggles connection keep-alive.
func (s *Session) SetKeepAlive(on bool) error {
	return s.SetOption(transport.OptionTCPKeepAlive, on)
}

// SetTimeout sets the whole-request timeout. Non-positive durations
// disable the timeout.
func (s *Session) SetTimeout(d time.Duration) error {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return s.SetOption(transport.OptionTimeoutMS, ms)
}

// Timeout returns the configured timeout, or zero when unset.
func (s *Session) Timeout() time.Duration {
	v, ok := s.opts.Value(transport.OptionTimeoutMS)
	if !ok {
		return 0
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// SetFields sets the url-encoded request body. An empty string is a
// no-op.
func (s *Session) SetFields(fields string) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	if fields == "" {
		return nil
	}
	return s.SetOption(transport.OptionPostFields, fields)
}

// SetFieldParams encodes the pairs and sets them as the request body.
func (s *Session) SetFieldParams(fields []Param) error {
	return s.SetFields(EncodeFields(fields))
}

// Options returns the option store for introspection. The store reflects
// every option ever applied to the session since the last reset.
func (s *Session) Options() *OptionStore { return s.opts }
