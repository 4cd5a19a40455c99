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
	"strings"

	"github.com/tombee/conduit/pkg/transport"
)

// Method is the HTTP request method of an HTTP session.
type Method int

const (
	MethodGet Method = iota
	MethodPost
	MethodPut
	MethodDelete
)

// String returns the method verb, or "INVALID" for out-of-range values.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	}
	return "INVALID"
}

// ParseMethod converts a verb string (case-insensitive) into a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(s) {
	case "GET":
		return MethodGet, nil
	case "POST":
		return MethodPost, nil
	case "PUT":
		return MethodPut, nil
	case "DELETE":
		return MethodDelete, nil
	}
	return 0, &MethodError{Name: s}
}

// Protocol is the URL scheme state of an HTTP session.
type Protocol int

const (
	ProtocolNone Protocol = iota
	ProtocolHTTP
	ProtocolHTTPS
)

// HTTPSession layers HTTP semantics onto a Session: method selection,
// default compression and keep-alive, and protocol-aware TLS verification
// derived from the URL scheme.
type HTTPSession struct {
	*Session
	proto  Protocol
	method Method

	// certSource supplies the certificate bundle path consulted when the
	// session first enters https. Defaults to the process-wide setting.
	certSource func() string
}

// NewHTTP returns an HTTP session pre-configured with the given URL and
// method, default encoding and keep-alive enabled.
func NewHTTP(url string, meth Method) (*HTTPSession, error) {
	h, err := NewHTTPSession(meth)
	if err != nil {
		return nil, err
	}
	if err := h.SetURL(url); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// NewHTTPSession returns an HTTP session with no URL configured.
func NewHTTPSession(meth Method) (*HTTPSession, error) {
	return newHTTPSessionWith(transport.New(), CertificateBundlePath, meth)
}

func newHTTPSessionWith(handle transport.Handle, certSource func() string, meth Method) (*HTTPSession, error) {
	h := &HTTPSession{
		Session:    NewWithHandle(handle),
		proto:      ProtocolNone,
		certSource: certSource,
	}
	if h.certSource == nil {
		h.certSource = CertificateBundlePath
	}
	if err := h.SetMethod(meth); err != nil {
		h.Close()
		return nil, err
	}
	if err := h.SetEncoding(DefaultEncoding); err != nil {
		h.Close()
		return nil, err
	}
	if err := h.SetKeepAlive(true); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// SetURL determines the scheme by literal prefix match and forwards the
// URL to the transport. On the transition into https, TLS verification is
// enabled exactly once: against the configured certificate bundle when
// one is set, against the system trust store otherwise. Repeated https
// URLs do not re-run the setup; plain http never triggers it. Any other
// prefix fails with *ProtocolError.
func (h *HTTPSession) SetURL(url string) error {
	switch {
	case strings.HasPrefix(url, "https://"):
		if h.proto != ProtocolHTTPS {
			if path := h.certSource(); path == "" {
				if err := h.Session.SetSSLVerify(true); err != nil {
					return err
				}
			} else {
				if err := h.Session.SetSSLVerifyCABundle(path); err != nil {
					return err
				}
			}
			h.proto = ProtocolHTTPS
		}
	case strings.HasPrefix(url, "http://"):
		h.proto = ProtocolHTTP
	default:
		return &ProtocolError{URL: url}
	}
	return h.Session.SetURL(url)
}

// SetMethod applies the transport option for the given method: the GET
// and POST switches for those verbs, a custom request verb for PUT and
// DELETE.
func (h *HTTPSession) SetMethod(meth Method) error {
	switch meth {
	case MethodGet:
		if err := h.SetOption(transport.OptionHTTPGet, true); err != nil {
			return err
		}
	case MethodPost:
		if err := h.SetOption(transport.OptionPost, true); err != nil {
			return err
		}
	case MethodPut, MethodDelete:
		if err := h.SetOption(transport.OptionCustomRequest, meth.String()); err != nil {
			return err
		}
	default:
		return &MethodError{Method: meth}
	}
	h.method = meth
	return nil
}

// Method returns the session's current method.
func (h *HTTPSession) Method() Method { return h.method }

// Protocol returns the scheme state derived from the last accepted URL.
func (h *HTTPSession) Protocol() Protocol { return h.proto }
