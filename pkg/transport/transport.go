// Package transport provides the low-level request handle that sessions
// are built on: an option-driven, synchronous HTTP executor backed by
// net/http. A Handle carries no HTTP semantics of its own: callers stage
// options (URL, verb, headers, body, TLS, timeout, output sinks) and then
// Perform assembles and runs one blocking request.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Handle is one configurable request handle. Implementations are not safe
// for concurrent use; callers serialize access. A freed handle rejects
// every operation with ErrFreed.
type Handle interface {
	// SetOption stages a configuration value. It returns an *OptionError
	// if the value is rejected, or ErrFreed after Free.
	SetOption(opt Option, value any) error

	// Perform assembles a request from the staged options and executes it
	// synchronously, streaming the response body (and, when configured,
	// the raw header text) into the staged sinks. The response status is
	// retrievable via ResponseCode afterwards. Failures are reported as
	// *PerformError.
	Perform(ctx context.Context) error

	// ResponseCode returns the status code of the last completed Perform.
	ResponseCode() int

	// Reset discards all staged options and restores transport defaults.
	Reset()

	// Free releases the handle. Free is idempotent; every other method
	// fails after it.
	Free()
}

// New returns a net/http-backed Handle.
func New() Handle {
	return &easyHandle{opts: make(map[Option]any)}
}

type easyHandle struct {
	opts        map[Option]any
	rootCAs     *x509.CertPool
	client      *http.Client
	clientStale bool
	status      int
	freed       bool
}

func (h *easyHandle) SetOption(opt Option, value any) error {
	if h.freed {
		return ErrFreed
	}
	switch opt {
	case OptionURL, OptionAcceptEncoding, OptionPostFields:
		s, ok := value.(string)
		if !ok {
			return rejectOption(opt, value, nil)
		}
		h.opts[opt] = s

	case OptionCustomRequest:
		s, ok := value.(string)
		if !ok || s == "" {
			return rejectOption(opt, value, nil)
		}
		delete(h.opts, OptionHTTPGet)
		delete(h.opts, OptionPost)
		h.opts[opt] = s

	case OptionCAInfo:
		s, ok := value.(string)
		if !ok {
			return rejectOption(opt, value, nil)
		}
		pool, err := loadCertBundle(s)
		if err != nil {
			return rejectOption(opt, value, err)
		}
		h.rootCAs = pool
		h.clientStale = true
		h.opts[opt] = s

	case OptionCAPath:
		s, ok := value.(string)
		if !ok {
			return rejectOption(opt, value, nil)
		}
		pool, err := loadCertDir(s)
		if err != nil {
			return rejectOption(opt, value, err)
		}
		h.rootCAs = pool
		h.clientStale = true
		h.opts[opt] = s

	case OptionHTTPGet, OptionPost:
		b, ok := toBool(value)
		if !ok {
			return rejectOption(opt, value, nil)
		}
		if b {
			if opt == OptionHTTPGet {
				delete(h.opts, OptionPost)
			} else {
				delete(h.opts, OptionHTTPGet)
			}
			delete(h.opts, OptionCustomRequest)
		}
		h.opts[opt] = b

	case OptionTCPKeepAlive, OptionSSLVerifyPeer:
		b, ok := toBool(value)
		if !ok {
			return rejectOption(opt, value, nil)
		}
		h.opts[opt] = b
		h.clientStale = true

	case OptionSSLVerifyHost:
		n, ok := toInt64(value)
		if !ok || n < 0 || n > 2 {
			return rejectOption(opt, value, nil)
		}
		h.opts[opt] = n
		h.clientStale = true

	case OptionTimeoutMS:
		n, ok := toInt64(value)
		if !ok || n < 0 {
			return rejectOption(opt, value, nil)
		}
		h.opts[opt] = n

	case OptionHTTPHeader:
		if value == nil {
			delete(h.opts, opt)
			return nil
		}
		l, ok := value.(*HeaderList)
		if !ok {
			return rejectOption(opt, value, nil)
		}
		if l == nil {
			delete(h.opts, opt)
			return nil
		}
		h.opts[opt] = l

	case OptionWriteSink, OptionHeaderSink:
		if value == nil {
			delete(h.opts, opt)
			return nil
		}
		w, ok := value.(io.Writer)
		if !ok {
			return rejectOption(opt, value, nil)
		}
		h.opts[opt] = w

	default:
		return rejectOption(opt, value, nil)
	}
	return nil
}

func (h *easyHandle) Perform(ctx context.Context) error {
	if h.freed {
		return ErrFreed
	}
	req, err := h.buildRequest(ctx)
	if err != nil {
		return err
	}

	client := h.httpClient()
	if ms, ok := h.opts[OptionTimeoutMS].(int64); ok && ms > 0 {
		client.Timeout = time.Duration(ms) * time.Millisecond
	} else {
		client.Timeout = 0
	}

	resp, err := client.Do(req)
	if err != nil {
		return classifyError(ctx, err)
	}
	defer resp.Body.Close()

	if w, ok := h.opts[OptionHeaderSink].(io.Writer); ok {
		if err := writeHeaderText(w, resp); err != nil {
			return &PerformError{Code: CodeConnection, Message: "writing header sink: " + err.Error(), Cause: err}
		}
	}

	sink, _ := h.opts[OptionWriteSink].(io.Writer)
	if sink == nil {
		sink = io.Discard
	}
	if _, err := io.Copy(sink, resp.Body); err != nil {
		return classifyError(ctx, err)
	}

	h.status = resp.StatusCode
	return nil
}

func (h *easyHandle) ResponseCode() int { return h.status }

func (h *easyHandle) Reset() {
	if h.freed {
		return
	}
	h.opts = make(map[Option]any)
	h.rootCAs = nil
	h.clientStale = true
	h.status = 0
}

func (h *easyHandle) Free() {
	h.freed = true
	h.opts = nil
	h.client = nil
	h.rootCAs = nil
}

// buildRequest assembles an http.Request from the staged options.
//
// Verb precedence mirrors the staged-option model: an explicit custom
// request wins, then POST, then GET; a staged body with no explicit verb
// implies POST. A body is attached for every verb except GET.
func (h *easyHandle) buildRequest(ctx context.Context) (*http.Request, error) {
	rawURL, _ := h.opts[OptionURL].(string)
	if rawURL == "" {
		return nil, &PerformError{Code: CodeInvalidRequest, Message: "no url configured"}
	}

	fields, _ := h.opts[OptionPostFields].(string)

	method := http.MethodGet
	switch {
	case h.opts[OptionCustomRequest] != nil:
		method = h.opts[OptionCustomRequest].(string)
	case h.opts[OptionPost] == true:
		method = http.MethodPost
	case h.opts[OptionHTTPGet] == true:
		method = http.MethodGet
	case fields != "":
		method = http.MethodPost
	}

	var body io.Reader
	if method != http.MethodGet && fields != "" {
		body = strings.NewReader(fields)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, &PerformError{Code: CodeInvalidRequest, Message: err.Error(), Cause: err}
	}

	if list, ok := h.opts[OptionHTTPHeader].(*HeaderList); ok {
		for _, line := range list.Lines() {
			name, value, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			req.Header.Add(name, strings.TrimLeft(value, " "))
		}
	}

	// "gzip" rides on the client's automatic decode path, the same way a
	// transport-level accept-encoding option decodes transparently.
	if enc, ok := h.opts[OptionAcceptEncoding].(string); ok && enc != "" && !strings.EqualFold(enc, "gzip") {
		req.Header.Set("Accept-Encoding", enc)
	}

	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return req, nil
}

// httpClient returns the cached client, rebuilding it when a staged
// option invalidated the TLS or keep-alive configuration.
func (h *easyHandle) httpClient() *http.Client {
	if h.client != nil && !h.clientStale {
		return h.client
	}

	verifyPeer := true
	if b, ok := h.opts[OptionSSLVerifyPeer].(bool); ok {
		verifyPeer = b
	}
	if n, ok := h.opts[OptionSSLVerifyHost].(int64); ok && n == 0 {
		// Hostname verification cannot be disabled separately from chain
		// verification; treat verify-host 0 as fully insecure.
		verifyPeer = false
	}

	keepAlive := true
	if b, ok := h.opts[OptionTCPKeepAlive].(bool); ok {
		keepAlive = b
	}

	h.client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DisableKeepAlives:   !keepAlive,

			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,

			TLSClientConfig: &tls.Config{
				MinVersion:         tls.VersionTLS12,
				InsecureSkipVerify: !verifyPeer,
				RootCAs:            h.rootCAs,
			},
		},
	}
	h.clientStale = false
	return h.client
}

// writeHeaderText emits response headers in wire format: status line,
// "Name: value" lines sorted by name, then a blank line.
func writeHeaderText(w io.Writer, resp *http.Response) error {
	if _, err := fmt.Fprintf(w, "%s %s\r\n", resp.Proto, resp.Status); err != nil {
		return err
	}
	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range resp.Header[name] {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", name, value); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}

// classifyError maps a client error onto the transport error taxonomy.
func classifyError(ctx context.Context, err error) *PerformError {
	if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
		return &PerformError{Code: CodeCancelled, Message: "request cancelled", Cause: err}
	}

	if isTimeoutError(err) {
		return &PerformError{Code: CodeTimeout, Message: "request timeout", Cause: err}
	}

	if isTLSError(err) {
		return &PerformError{Code: CodeTLS, Message: "tls verification failed", Cause: err}
	}

	return &PerformError{Code: CodeConnection, Message: err.Error(), Cause: err}
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// http.Client reports its own Timeout through a *url.Error whose
	// message names it; cover the case where the net.Error check misses.
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

func isTLSError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return true
	}
	var hostErr x509.HostnameError
	return errors.As(err, &hostErr)
}

func loadCertBundle(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

func loadCertDir(dir string) (*x509.CertPool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	loaded := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pem, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if pool.AppendCertsFromPEM(pem) {
			loaded = true
		}
	}
	if !loaded {
		return nil, fmt.Errorf("no certificates found in %s", dir)
	}
	return pool, nil
}

func rejectOption(opt Option, value any, cause error) error {
	return &OptionError{Option: opt, Value: fmt.Sprint(value), Cause: cause}
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	}
	return false, false
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case time.Duration:
		return int64(v), true
	}
	return 0, false
}
