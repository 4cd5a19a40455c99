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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/conduit/pkg/transport"
)

func noCerts() string { return "" }

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"GET", MethodGet, false},
		{"get", MethodGet, false},
		{"Post", MethodPost, false},
		{"PUT", MethodPut, false},
		{"delete", MethodDelete, false},
		{"PATCH", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMethod(tt.in)
			if tt.wantErr {
				var me *MethodError
				require.ErrorAs(t, err, &me)
				assert.Equal(t, tt.in, me.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestMethod_String(t *testing.T) {
	assert.Equal(t, "GET", MethodGet.String())
	assert.Equal(t, "POST", MethodPost.String())
	assert.Equal(t, "PUT", MethodPut.String())
	assert.Equal(t, "DELETE", MethodDelete.String())
	assert.Equal(t, "INVALID", Method(99).String())
}

func TestNewHTTPSession_Defaults(t *testing.T) {
	h := newStubHandle()
	sess, err := newHTTPSessionWith(h, noCerts, MethodGet)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, MethodGet, sess.Method())
	assert.Equal(t, ProtocolNone, sess.Protocol())

	get, _ := h.value(transport.OptionHTTPGet)
	assert.Equal(t, true, get)
	enc, _ := h.value(transport.OptionAcceptEncoding)
	assert.Equal(t, DefaultEncoding, enc)
	ka, _ := h.value(transport.OptionTCPKeepAlive)
	assert.Equal(t, true, ka)
}

func TestNewHTTPSession_SetupFailureClosesHandle(t *testing.T) {
	h := newStubHandle()
	h.rejects = map[transport.Option]error{
		transport.OptionAcceptEncoding: &transport.OptionError{Option: transport.OptionAcceptEncoding},
	}

	_, err := newHTTPSessionWith(h, noCerts, MethodGet)
	require.Error(t, err)
	assert.True(t, h.isFreed(), "failed construction must not leak the handle")
}

func TestHTTPSession_SetMethod(t *testing.T) {
	tests := []struct {
		meth      Method
		wantOpt   transport.Option
		wantValue any
	}{
		{MethodGet, transport.OptionHTTPGet, true},
		{MethodPost, transport.OptionPost, true},
		{MethodPut, transport.OptionCustomRequest, "PUT"},
		{MethodDelete, transport.OptionCustomRequest, "DELETE"},
	}

	for _, tt := range tests {
		t.Run(tt.meth.String(), func(t *testing.T) {
			h := newStubHandle()
			sess, err := newHTTPSessionWith(h, noCerts, MethodGet)
			require.NoError(t, err)
			defer sess.Close()

			require.NoError(t, sess.SetMethod(tt.meth))
			assert.Equal(t, tt.meth, sess.Method())

			v, ok := h.value(tt.wantOpt)
			require.True(t, ok)
			assert.Equal(t, tt.wantValue, v)
		})
	}
}

func TestHTTPSession_SetMethodInvalid(t *testing.T) {
	sess, err := newHTTPSessionWith(newStubHandle(), noCerts, MethodGet)
	require.NoError(t, err)
	defer sess.Close()

	err = sess.SetMethod(Method(42))
	var me *MethodError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, Method(42), me.Method)
	assert.Equal(t, MethodGet, sess.Method(), "failed set leaves method unchanged")
}

func TestHTTPSession_SetURLSchemes(t *testing.T) {
	h := newStubHandle()
	sess, err := newHTTPSessionWith(h, noCerts, MethodGet)
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.SetURL("http://example.com/a"))
	assert.Equal(t, ProtocolHTTP, sess.Protocol())
	assert.Equal(t, "http://example.com/a", sess.URL())

	err = sess.SetURL("ftp://example.com")
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "ftp://example.com", pe.URL)
	// A rejected URL changes nothing.
	assert.Equal(t, ProtocolHTTP, sess.Protocol())
	assert.Equal(t, "http://example.com/a", sess.URL())
}

func TestHTTPSession_HTTPSEnablesVerificationOnce(t *testing.T) {
	h := newStubHandle()
	sess, err := newHTTPSessionWith(h, noCerts, MethodGet)
	require.NoError(t, err)
	defer sess.Close()

	// Plain http never touches TLS options.
	require.NoError(t, sess.SetURL("http://example.com"))
	assert.Equal(t, 0, h.setCount(transport.OptionSSLVerifyPeer))

	// First https URL enables verification.
	require.NoError(t, sess.SetURL("https://example.com/one"))
	assert.Equal(t, ProtocolHTTPS, sess.Protocol())
	assert.Equal(t, 1, h.setCount(transport.OptionSSLVerifyPeer))
	peer, _ := h.value(transport.OptionSSLVerifyPeer)
	assert.Equal(t, true, peer)

	// Subsequent https URLs do not re-run the setup.
	require.NoError(t, sess.SetURL("https://example.com/two"))
	require.NoError(t, sess.SetURL("https://other.example.com"))
	assert.Equal(t, 1, h.setCount(transport.OptionSSLVerifyPeer))

	// Dropping back to http and returning to https runs it again.
	require.NoError(t, sess.SetURL("http://example.com"))
	require.NoError(t, sess.SetURL("https://example.com"))
	assert.Equal(t, 2, h.setCount(transport.OptionSSLVerifyPeer))
}

func TestHTTPSession_HTTPSUsesConfiguredBundle(t *testing.T) {
	h := newStubHandle()
	sess, err := newHTTPSessionWith(h, func() string { return "/etc/ssl/corp.pem" }, MethodGet)
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.SetURL("https://example.com"))

	info, ok := h.value(transport.OptionCAInfo)
	require.True(t, ok)
	assert.Equal(t, "/etc/ssl/corp.pem", info)
	peer, _ := h.value(transport.OptionSSLVerifyPeer)
	assert.Equal(t, true, peer)
}

func TestHTTPSession_BundlePathReadAtTransition(t *testing.T) {
	path := ""
	h := newStubHandle()
	sess, err := newHTTPSessionWith(h, func() string { return path }, MethodGet)
	require.NoError(t, err)
	defer sess.Close()

	// The bundle set after construction but before the https transition is
	// the one that applies.
	path = "/late/bundle.pem"
	require.NoError(t, sess.SetURL("https://example.com"))

	info, _ := h.value(transport.OptionCAInfo)
	assert.Equal(t, "/late/bundle.pem", info)
}

func TestCertificateBundlePath_ProcessWide(t *testing.T) {
	orig := CertificateBundlePath()
	defer SetCertificateBundlePath(orig)

	SetCertificateBundlePath("/tmp/bundle.pem")
	assert.Equal(t, "/tmp/bundle.pem", CertificateBundlePath())

	SetCertificateBundlePath("")
	assert.Equal(t, "", CertificateBundlePath())
}
